package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

const (
	OfferActive          OfferStatus = "ACTIVE"
	OfferPartiallyFilled OfferStatus = "PARTIALLY_FILLED"
	OfferSold            OfferStatus = "SOLD"
	OfferExpired         OfferStatus = "EXPIRED"
	OfferCancelled       OfferStatus = "CANCELLED"
)

var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferActive:          {OfferPartiallyFilled, OfferSold, OfferExpired, OfferCancelled},
	OfferPartiallyFilled: {OfferPartiallyFilled, OfferSold, OfferExpired, OfferCancelled},
}

// Open reports whether the offer can still be traded against.
func (s OfferStatus) Open() bool {
	return s == OfferActive || s == OfferPartiallyFilled
}

// Terminal reports whether no transition can leave s.
func (s OfferStatus) Terminal() bool {
	return s == OfferSold || s == OfferExpired || s == OfferCancelled
}

// CanTransition reports whether the state machine allows s -> to.
func (s OfferStatus) CanTransition(to OfferStatus) bool {
	for _, allowed := range offerTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Offer is a seller's standing advertisement of energy at a fixed unit price.
// While open, Remaining is held as locked energy in the seller's account.
type Offer struct {
	ID        string          `json:"id" db:"id"`
	SellerID  string          `json:"seller_id" db:"seller_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Remaining decimal.Decimal `json:"remaining" db:"remaining"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Status    OfferStatus     `json:"status" db:"status"`
	Version   int             `json:"version" db:"version"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt time.Time       `json:"expires_at" db:"expires_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ExpiredAt reports whether the offer's expiry has passed at now.
func (o *Offer) ExpiredAt(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// TransitionTo moves the offer to status to, or returns a *TransitionError.
func (o *Offer) TransitionTo(to OfferStatus, now time.Time) error {
	if !o.Status.CanTransition(to) {
		return &TransitionError{OfferID: o.ID, From: o.Status, To: to}
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// Clone returns a copy that can be mutated without touching the original.
func (o *Offer) Clone() *Offer {
	c := *o
	return &c
}
