package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one settlement against an offer.
type Trade struct {
	ID            string          `json:"id" db:"id"`
	OfferID       string          `json:"offer_id" db:"offer_id"`
	BuyerID       string          `json:"buyer_id" db:"buyer_id"`
	SellerID      string          `json:"seller_id" db:"seller_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`         // kWh
	UnitPrice     decimal.Decimal `json:"unit_price" db:"unit_price"` // per kWh
	TotalPrice    decimal.Decimal `json:"total_price" db:"total_price"`
	CarbonSavedKg decimal.Decimal `json:"carbon_saved_kg" db:"carbon_saved_kg"`
	ExecutedAt    time.Time       `json:"executed_at" db:"executed_at"`
}

// TradeFilter narrows trade history queries. Zero values match everything.
type TradeFilter struct {
	AccountID string // buyer or seller
	OfferID   string
	Limit     int
}

// Matches reports whether t satisfies the filter, ignoring Limit.
func (f TradeFilter) Matches(t *Trade) bool {
	if f.AccountID != "" && t.BuyerID != f.AccountID && t.SellerID != f.AccountID {
		return false
	}
	if f.OfferID != "" && t.OfferID != f.OfferID {
		return false
	}
	return true
}
