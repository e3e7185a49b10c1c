// Package memory is an in-process store.Store. It is the default backend for
// tests and single-node deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type txKey struct{}

// tx collects undo actions for writes made inside WithinTx.
type tx struct {
	undo []func()
}

type Store struct {
	mu sync.RWMutex

	accounts map[string]*models.Account
	offers   map[string]*models.Offer
	trades   []*models.Trade
	tradeIdx map[string]int
	entries  []*models.LedgerEntry
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		offers:   make(map[string]*models.Offer),
		trades:   make([]*models.Trade, 0),
		tradeIdx: make(map[string]int),
		entries:  make([]*models.LedgerEntry, 0),
	}
}

// WithinTx runs fn and reverts every write it made if fn returns an error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	t := &tx{}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		s.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// record registers an undo action. Callers hold s.mu.
func (s *Store) record(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

// Account Store implementation
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return models.ErrAlreadyExists
	}
	a.Version = 1
	s.accounts[a.ID] = a.Clone()

	id := a.ID
	s.record(ctx, func() { delete(s.accounts, id) })
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID]; ok {
		return a.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context, limit, offset int) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		result = append(result, a.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return paginate(result, limit, offset), nil
}

func (s *Store) UpdateAccounts(ctx context.Context, accounts ...*models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range accounts {
		current, ok := s.accounts[a.ID]
		if !ok {
			return models.ErrNotFound
		}
		if current.Version != a.Version {
			return models.ErrVersionConflict
		}
	}

	for _, a := range accounts {
		prev := s.accounts[a.ID]
		a.Version++
		s.accounts[a.ID] = a.Clone()
		s.record(ctx, func() { s.accounts[prev.ID] = prev })
	}
	return nil
}

// Offer Store implementation
func (s *Store) CreateOffer(ctx context.Context, o *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.offers[o.ID]; exists {
		return models.ErrAlreadyExists
	}
	o.Version = 1
	s.offers[o.ID] = o.Clone()

	id := o.ID
	s.record(ctx, func() { delete(s.offers, id) })
	return nil
}

func (s *Store) GetOffer(_ context.Context, offerID string) (*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.offers[offerID]; ok {
		return o.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (s *Store) ListOffers(_ context.Context, q store.OfferQuery) ([]*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Offer, 0)
	for _, o := range s.offers {
		if q.Matches(o) {
			result = append(result, o.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateOffer(ctx context.Context, o *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.offers[o.ID]
	if !ok {
		return models.ErrNotFound
	}
	if prev.Version != o.Version {
		return models.ErrVersionConflict
	}

	o.Version++
	s.offers[o.ID] = o.Clone()
	s.record(ctx, func() { s.offers[prev.ID] = prev })
	return nil
}

// Trade Store implementation
func (s *Store) AppendTrade(ctx context.Context, t *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tradeIdx[t.ID]; exists {
		return models.ErrAlreadyExists
	}
	c := *t
	s.trades = append(s.trades, &c)
	s.tradeIdx[t.ID] = len(s.trades) - 1

	s.record(ctx, func() { s.removeTrade(c.ID) })
	return nil
}

// removeTrade drops one trade wherever it sits; other units may have appended
// after it. Callers hold s.mu.
func (s *Store) removeTrade(id string) {
	i, ok := s.tradeIdx[id]
	if !ok {
		return
	}
	s.trades = append(s.trades[:i], s.trades[i+1:]...)
	delete(s.tradeIdx, id)
	for j := i; j < len(s.trades); j++ {
		s.tradeIdx[s.trades[j].ID] = j
	}
}

func (s *Store) GetTrade(_ context.Context, tradeID string) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i, ok := s.tradeIdx[tradeID]; ok {
		c := *s.trades[i]
		return &c, nil
	}
	return nil, models.ErrNotFound
}

// ListTrades returns matching trades, most recent first.
func (s *Store) ListTrades(_ context.Context, f models.TradeFilter) ([]*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Trade, 0)
	for i := len(s.trades) - 1; i >= 0; i-- {
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
		if f.Matches(s.trades[i]) {
			c := *s.trades[i]
			result = append(result, &c)
		}
	}
	return result, nil
}

// Ledger entry implementation
func (s *Store) AppendEntries(ctx context.Context, entries ...*models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make(map[*models.LedgerEntry]bool, len(entries))
	for _, e := range entries {
		c := *e
		s.entries = append(s.entries, &c)
		added[&c] = true
	}
	s.record(ctx, func() { s.removeEntries(added) })
	return nil
}

// removeEntries drops exactly the given rows and keeps the order of the rest.
// Callers hold s.mu.
func (s *Store) removeEntries(rows map[*models.LedgerEntry]bool) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !rows[e] {
			kept = append(kept, e)
		}
	}
	clear(s.entries[len(kept):])
	s.entries = kept
}

// ListEntries returns an account's journal, most recent first.
func (s *Store) ListEntries(_ context.Context, accountID string, limit int) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.LedgerEntry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if s.entries[i].AccountID == accountID {
			c := *s.entries[i]
			result = append(result, &c)
		}
	}
	return result, nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func paginate[T any](items []T, limit, offset int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
