package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/audit"
	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/observability"
	"github.com/ruralpay/energyledger/internal/store"
)

// SortOrder selects how ListActive orders offers.
type SortOrder string

const (
	SortPriceAsc      SortOrder = "price_asc"
	SortNewest        SortOrder = "newest"
	SortRemainingDesc SortOrder = "remaining_desc"
)

// ParseSortOrder maps a query value onto a SortOrder; empty means price ascending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "", SortPriceAsc:
		return SortPriceAsc, nil
	case SortNewest, SortRemainingDesc:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// OfferFilter narrows ListActive. Nil price bounds are unbounded.
type OfferFilter struct {
	SellerID string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     SortOrder
	Limit    int
}

func (f OfferFilter) matches(o *models.Offer) bool {
	if f.MinPrice != nil && o.UnitPrice.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && o.UnitPrice.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

var openStatuses = []models.OfferStatus{models.OfferActive, models.OfferPartiallyFilled}

// OfferConfig holds offer lifetime settings.
type OfferConfig struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	SweepInterval time.Duration
}

func (c OfferConfig) withDefaults() OfferConfig {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 24 * time.Hour
	}
	if c.MaxTTL <= 0 {
		c.MaxTTL = 7 * 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	return c
}

// OfferService manages the offer book. Every open offer is backed by the same
// amount of locked energy in its seller's account.
type OfferService struct {
	store   store.Store
	ledger  *LedgerService
	locks   *KeyedMutex
	cfg     OfferConfig
	audit   *audit.Logger
	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewOfferService(st store.Store, ledger *LedgerService, cfg OfferConfig, opts ...Option) *OfferService {
	d := defaultDeps(opts)
	return &OfferService{
		store:    st,
		ledger:   ledger,
		locks:    NewKeyedMutex(),
		cfg:      cfg.withDefaults(),
		audit:    d.audit,
		metrics:  d.metrics,
		log:      d.log,
		now:      d.now,
		stopChan: make(chan struct{}),
	}
}

// CreateOffer locks amount of the seller's available energy and advertises it
// at unitPrice until now+ttl. A zero ttl uses the configured default. If the
// lock fails no offer exists.
func (s *OfferService) CreateOffer(ctx context.Context, sellerID string, amount, unitPrice decimal.Decimal, ttl time.Duration) (offer *models.Offer, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOp("CREATE_OFFER", start, err) }()

	if err := models.ValidateEnergy(amount); err != nil {
		return nil, fmt.Errorf("offer amount: %w", err)
	}
	if err := models.ValidateMoney(unitPrice); err != nil {
		return nil, fmt.Errorf("offer unit price: %w", err)
	}
	switch {
	case ttl == 0:
		ttl = s.cfg.DefaultTTL
	case ttl < 0 || ttl > s.cfg.MaxTTL:
		return nil, fmt.Errorf("offer ttl %s outside (0, %s]: %w", ttl, s.cfg.MaxTTL, models.ErrInvalidAmount)
	}

	now := s.now()
	o := &models.Offer{
		ID:        newID(),
		SellerID:  sellerID,
		Amount:    amount,
		Remaining: amount,
		UnitPrice: unitPrice,
		Status:    models.OfferActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}

	ctx = WithReference(ctx, o.ID)
	err = runInScope(ctx, s.store, func(ctx context.Context) error {
		if err := s.ledger.LockEnergy(ctx, sellerID, amount); err != nil {
			return err
		}
		return s.store.CreateOffer(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	afterCommit(ctx, func() {
		s.audit.LogOperation(o.ID, sellerID, "OFFER_CREATED", amount.String()+" kWh @ "+unitPrice.String())
	})
	s.log.Info().
		Str("offer_id", o.ID).
		Str("seller_id", sellerID).
		Str("amount", amount.String()).
		Str("unit_price", unitPrice.String()).
		Time("expires_at", o.ExpiresAt).
		Msg("offer created")
	return o, nil
}

// CancelOffer withdraws an open offer and returns its remaining energy to the
// seller's available balance.
func (s *OfferService) CancelOffer(ctx context.Context, offerID, requesterID string) (offer *models.Offer, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOp("CANCEL_OFFER", start, err) }()

	unlock := s.locks.Lock(offerID)
	defer unlock()

	now := s.now()
	o, expired, err := s.expireLocked(ctx, offerID, now)
	if err != nil {
		return nil, err
	}
	if o.SellerID != requesterID {
		return nil, fmt.Errorf("offer %s: %w", offerID, models.ErrNotOwner)
	}
	if expired {
		return nil, &models.TransitionError{OfferID: offerID, From: models.OfferExpired, To: models.OfferCancelled}
	}

	ctx = WithReference(ctx, offerID)
	err = runInScope(ctx, s.store, func(ctx context.Context) error {
		current, err := s.store.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if err := current.TransitionTo(models.OfferCancelled, now); err != nil {
			return err
		}
		if current.Remaining.IsPositive() {
			if err := s.ledger.UnlockEnergy(ctx, current.SellerID, current.Remaining); err != nil {
				return err
			}
		}
		o = current
		return s.store.UpdateOffer(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	released := o.Remaining.String()
	afterCommit(ctx, func() { s.audit.LogOperation(offerID, requesterID, "OFFER_CANCELLED", released+" kWh released") })
	s.log.Info().Str("offer_id", offerID).Str("released", o.Remaining.String()).Msg("offer cancelled")
	return o, nil
}

// GetOffer returns an offer, expiring it first if its time has passed.
func (s *OfferService) GetOffer(ctx context.Context, offerID string) (*models.Offer, error) {
	o, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if o.Status.Open() && o.ExpiredAt(s.now()) {
		o, _, err = s.ExpireOffer(ctx, offerID)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ListBySeller returns every offer a seller has made, oldest first.
func (s *OfferService) ListBySeller(ctx context.Context, sellerID string) ([]*models.Offer, error) {
	return s.store.ListOffers(ctx, store.OfferQuery{SellerID: sellerID})
}

// ListActive yields open, unexpired offers matching f. The sequence reads a
// fresh snapshot each time it is ranged over.
func (s *OfferService) ListActive(ctx context.Context, f OfferFilter) iter.Seq2[models.Offer, error] {
	return func(yield func(models.Offer, error) bool) {
		offers, err := s.store.ListOffers(ctx, store.OfferQuery{
			SellerID: f.SellerID,
			Statuses: openStatuses,
		})
		if err != nil {
			yield(models.Offer{}, err)
			return
		}

		now := s.now()
		selected := offers[:0]
		for _, o := range offers {
			if !o.ExpiredAt(now) && f.matches(o) {
				selected = append(selected, o)
			}
		}
		sortOffers(selected, f.Sort)

		for i, o := range selected {
			if f.Limit > 0 && i >= f.Limit {
				return
			}
			if !yield(*o, nil) {
				return
			}
		}
	}
}

// sortOffers orders by the requested key, then creation time, then id.
func sortOffers(offers []*models.Offer, order SortOrder) {
	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		switch order {
		case SortNewest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case SortRemainingDesc:
			if c := a.Remaining.Cmp(b.Remaining); c != 0 {
				return c > 0
			}
		default:
			if c := a.UnitPrice.Cmp(b.UnitPrice); c != 0 {
				return c < 0
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// ExpireOffer expires the offer if it is open and past its expiry. The bool
// reports whether this call performed the transition.
func (s *OfferService) ExpireOffer(ctx context.Context, offerID string) (*models.Offer, bool, error) {
	unlock := s.locks.Lock(offerID)
	defer unlock()
	return s.expireLocked(ctx, offerID, s.now())
}

// expireLocked is the single expiry transition shared by the sweeper, lazy
// reads, cancellation and trade execution. Callers hold the offer lock.
// Running it on an already expired or closed offer changes nothing.
func (s *OfferService) expireLocked(ctx context.Context, offerID string, now time.Time) (*models.Offer, bool, error) {
	var (
		offer   *models.Offer
		expired bool
	)

	ctx = WithReference(ctx, offerID)
	err := runInScope(ctx, s.store, func(ctx context.Context) error {
		o, err := s.store.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		offer = o
		if !o.Status.Open() || !o.ExpiredAt(now) {
			return nil
		}

		if err := o.TransitionTo(models.OfferExpired, now); err != nil {
			return err
		}
		if o.Remaining.IsPositive() {
			if err := s.ledger.UnlockEnergy(ctx, o.SellerID, o.Remaining); err != nil {
				return err
			}
		}
		if err := s.store.UpdateOffer(ctx, o); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if expired {
		s.metrics.RecordExpired(1)
		seller, released := offer.SellerID, offer.Remaining.String()
		afterCommit(ctx, func() { s.audit.LogOperation(offerID, seller, "OFFER_EXPIRED", released+" kWh released") })
		s.log.Info().Str("offer_id", offerID).Str("released", offer.Remaining.String()).Msg("offer expired")
	}
	return offer, expired, nil
}

// SweepExpired expires every open offer whose time has passed and returns how
// many it transitioned. Failures on one offer do not stop the sweep.
func (s *OfferService) SweepExpired(ctx context.Context) (int, error) {
	offers, err := s.store.ListOffers(ctx, store.OfferQuery{Statuses: openStatuses})
	if err != nil {
		return 0, fmt.Errorf("list open offers: %w", err)
	}

	now := s.now()
	var (
		count int
		errs  []error
	)
	for _, o := range offers {
		if !o.ExpiredAt(now) {
			continue
		}
		_, expired, err := s.ExpireOffer(ctx, o.ID)
		if err != nil {
			s.log.Error().Err(err).Str("offer_id", o.ID).Msg("failed to expire offer")
			errs = append(errs, fmt.Errorf("offer %s: %w", o.ID, err))
			continue
		}
		if expired {
			count++
		}
	}

	s.metrics.SetOpenOffers(len(offers) - count)
	return count, errors.Join(errs...)
}

// Start launches the background expiry sweeper.
func (s *OfferService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.sweepWorker(ctx)

	s.log.Info().Dur("sweep_interval", s.cfg.SweepInterval).Msg("offer sweeper started")
}

// Stop halts the sweeper and waits for an in-flight sweep to finish.
func (s *OfferService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *OfferService) sweepWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("expiry sweep incomplete")
			}
			if n > 0 {
				s.log.Debug().Int("expired", n).Msg("expiry sweep")
			}
		}
	}
}
