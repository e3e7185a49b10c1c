// Package store defines the persistence contract for accounts, offers, trades
// and ledger entries. Engine logic never depends on a concrete backend.
package store

import (
	"context"

	"github.com/ruralpay/energyledger/internal/models"
)

// OfferQuery selects offers by seller and status. Zero values match everything.
type OfferQuery struct {
	SellerID string
	Statuses []models.OfferStatus
}

// Matches reports whether o satisfies the query.
func (q OfferQuery) Matches(o *models.Offer) bool {
	if q.SellerID != "" && o.SellerID != q.SellerID {
		return false
	}
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

// Store is the unified storage interface.
//
// Update methods are compare-and-set: a record is written only if its Version
// still matches the stored one, after which the stored Version is incremented
// and mirrored back onto the argument. A mismatch returns
// models.ErrVersionConflict and writes nothing.
type Store interface {
	// WithinTx runs fn as one atomic unit. Calls made with the ctx passed to
	// fn join the unit; a nested WithinTx joins the outer one.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Account methods
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error)
	UpdateAccounts(ctx context.Context, accounts ...*models.Account) error

	// Offer methods
	CreateOffer(ctx context.Context, o *models.Offer) error
	GetOffer(ctx context.Context, offerID string) (*models.Offer, error)
	ListOffers(ctx context.Context, q OfferQuery) ([]*models.Offer, error)
	UpdateOffer(ctx context.Context, o *models.Offer) error

	// Trade methods
	AppendTrade(ctx context.Context, t *models.Trade) error
	GetTrade(ctx context.Context, tradeID string) (*models.Trade, error)
	ListTrades(ctx context.Context, f models.TradeFilter) ([]*models.Trade, error)

	// Ledger entry methods
	AppendEntries(ctx context.Context, entries ...*models.LedgerEntry) error
	ListEntries(ctx context.Context, accountID string, limit int) ([]*models.LedgerEntry, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
