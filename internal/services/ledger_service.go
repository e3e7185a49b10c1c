package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/audit"
	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/observability"
	"github.com/ruralpay/energyledger/internal/store"
)

// LedgerService is the only component that changes balances. Every operation
// validates all preconditions before touching any account and commits as one
// storage unit.
type LedgerService struct {
	store   store.Store
	locks   *KeyedMutex
	audit   *audit.Logger
	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures the engine services.
type Option func(*deps)

type deps struct {
	audit     *audit.Logger
	metrics   *observability.Metrics
	log       zerolog.Logger
	now       func() time.Time
	publisher TradePublisher
}

func defaultDeps(opts []Option) deps {
	d := deps{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *deps) { d.log = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

func WithAuditLogger(a *audit.Logger) Option {
	return func(d *deps) { d.audit = a }
}

// WithTradePublisher sends every settled trade to p after commit.
func WithTradePublisher(p TradePublisher) Option {
	return func(d *deps) { d.publisher = p }
}

// WithClock overrides time.Now; tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func NewLedgerService(st store.Store, opts ...Option) *LedgerService {
	d := defaultDeps(opts)
	return &LedgerService{
		store:   st,
		locks:   NewKeyedMutex(),
		audit:   d.audit,
		metrics: d.metrics,
		log:     d.log,
		now:     d.now,
	}
}

// CreditEnergy adds generated energy to an account's available balance.
func (s *LedgerService) CreditEnergy(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return s.single(ctx, models.OpCreditEnergy, accountID, amount, models.ValidateEnergy,
		func(a *models.Account) ([]*models.LedgerEntry, error) {
			if !a.Active {
				return nil, fmt.Errorf("account %s inactive: %w", a.ID, models.ErrInvalidState)
			}
			return []*models.LedgerEntry{
				adjust(a, models.ResourceEnergy, models.BucketAvailable, amount),
			}, nil
		})
}

// CreditMoney adds a confirmed inbound payment to an account's available money.
func (s *LedgerService) CreditMoney(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return s.single(ctx, models.OpCreditMoney, accountID, amount, models.ValidateMoney,
		func(a *models.Account) ([]*models.LedgerEntry, error) {
			if !a.Active {
				return nil, fmt.Errorf("account %s inactive: %w", a.ID, models.ErrInvalidState)
			}
			return []*models.LedgerEntry{
				adjust(a, models.ResourceMoney, models.BucketAvailable, amount),
			}, nil
		})
}

// LockEnergy moves energy from available to locked.
func (s *LedgerService) LockEnergy(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return s.single(ctx, models.OpLockEnergy, accountID, amount, models.ValidateEnergy,
		func(a *models.Account) ([]*models.LedgerEntry, error) {
			if !a.Active {
				return nil, fmt.Errorf("account %s inactive: %w", a.ID, models.ErrInvalidState)
			}
			if a.Energy.Available.LessThan(amount) {
				return nil, fmt.Errorf("account %s has %s kWh available: %w",
					a.ID, a.Energy.Available.String(), models.ErrInsufficientBalance)
			}
			return []*models.LedgerEntry{
				adjust(a, models.ResourceEnergy, models.BucketAvailable, amount.Neg()),
				adjust(a, models.ResourceEnergy, models.BucketLocked, amount),
			}, nil
		})
}

// UnlockEnergy moves energy from locked back to available. Allowed on
// inactive accounts so offers can always be released.
func (s *LedgerService) UnlockEnergy(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return s.single(ctx, models.OpUnlockEnergy, accountID, amount, models.ValidateEnergy,
		func(a *models.Account) ([]*models.LedgerEntry, error) {
			if a.Energy.Locked.LessThan(amount) {
				return nil, fmt.Errorf("account %s has %s kWh locked: %w",
					a.ID, a.Energy.Locked.String(), models.ErrInvalidState)
			}
			return []*models.LedgerEntry{
				adjust(a, models.ResourceEnergy, models.BucketLocked, amount.Neg()),
				adjust(a, models.ResourceEnergy, models.BucketAvailable, amount),
			}, nil
		})
}

// SettleTrade performs the four-way settlement behind a trade: buyer money to
// seller, seller locked energy to buyer available. Both accounts commit or
// neither does.
func (s *LedgerService) SettleTrade(ctx context.Context, buyerID, sellerID string, energy, money decimal.Decimal) (err error) {
	start := time.Now()
	defer func() { s.finish(ctx, models.OpSettleTrade, buyerID, start, err) }()

	if buyerID == sellerID {
		return models.ErrSelfTrade
	}
	if err := models.ValidateEnergy(energy); err != nil {
		return err
	}
	// energy never changes hands for nothing
	if err := models.ValidateSettlement(money); err != nil {
		return err
	}

	err = s.mutate(ctx, models.OpSettleTrade, []string{buyerID, sellerID},
		func(accounts map[string]*models.Account) ([]*models.LedgerEntry, error) {
			buyer, seller := accounts[buyerID], accounts[sellerID]

			// validate every leg before applying any
			if !buyer.Active || !seller.Active {
				return nil, fmt.Errorf("settlement between %s and %s: inactive account: %w",
					buyerID, sellerID, models.ErrInvalidState)
			}
			if buyer.Money.Available.LessThan(money) {
				return nil, fmt.Errorf("buyer %s has %s available: %w",
					buyerID, buyer.Money.Available.String(), models.ErrInsufficientBalance)
			}
			if seller.Energy.Locked.LessThan(energy) {
				return nil, fmt.Errorf("seller %s has %s kWh locked: %w",
					sellerID, seller.Energy.Locked.String(), models.ErrInvalidState)
			}

			return []*models.LedgerEntry{
				adjust(buyer, models.ResourceMoney, models.BucketAvailable, money.Neg()),
				adjust(seller, models.ResourceMoney, models.BucketAvailable, money),
				adjust(seller, models.ResourceEnergy, models.BucketLocked, energy.Neg()),
				adjust(buyer, models.ResourceEnergy, models.BucketAvailable, energy),
			}, nil
		})
	if err == nil {
		ref := referenceFrom(ctx)
		afterCommit(ctx, func() { s.audit.LogTransfer(ref, buyerID, sellerID, energy, money) })
	}
	return err
}

// single runs a one-account operation with metrics, logging and audit.
func (s *LedgerService) single(
	ctx context.Context,
	op, accountID string,
	amount decimal.Decimal,
	validate func(decimal.Decimal) error,
	apply func(a *models.Account) ([]*models.LedgerEntry, error),
) (err error) {
	start := time.Now()
	defer func() { s.finish(ctx, op, accountID, start, err) }()

	if err := validate(amount); err != nil {
		return err
	}

	err = s.mutate(ctx, op, []string{accountID},
		func(accounts map[string]*models.Account) ([]*models.LedgerEntry, error) {
			return apply(accounts[accountID])
		})
	if err == nil {
		ref := referenceFrom(ctx)
		afterCommit(ctx, func() { s.audit.LogMutation(op, ref, accountID, amount) })
	}
	return err
}

// mutate loads the accounts under their locks, lets apply stage changes on
// copies, then writes accounts and journal entries in one unit.
func (s *LedgerService) mutate(
	ctx context.Context,
	op string,
	ids []string,
	apply func(accounts map[string]*models.Account) ([]*models.LedgerEntry, error),
) error {
	ids = uniqueSorted(ids)

	return runInScope(ctx, s.store, func(ctx context.Context) error {
		lockAccounts(ctx, s.locks, ids...)

		accounts := make(map[string]*models.Account, len(ids))
		for _, id := range ids {
			a, err := s.store.GetAccount(ctx, id)
			if err != nil {
				return fmt.Errorf("load account %s: %w", id, err)
			}
			accounts[id] = a
		}

		entries, err := apply(accounts)
		if err != nil {
			return err
		}

		now := s.now()
		ordered := make([]*models.Account, 0, len(ids))
		for _, id := range ids {
			a := accounts[id]
			if !a.Valid() {
				return fmt.Errorf("account %s would go negative: %w", id, models.ErrInvalidState)
			}
			a.UpdatedAt = now
			ordered = append(ordered, a)
		}

		if err := s.store.UpdateAccounts(ctx, ordered...); err != nil {
			return err
		}

		ref := referenceFrom(ctx)
		for _, e := range entries {
			e.ID = newID()
			e.Operation = op
			e.Reference = ref
			e.CreatedAt = now
		}
		return s.store.AppendEntries(ctx, entries...)
	})
}

func (s *LedgerService) finish(ctx context.Context, op, accountID string, start time.Time, err error) {
	s.metrics.ObserveOp(op, start, err)
	if err == nil {
		return
	}

	if models.IsBusinessError(err) {
		s.log.Debug().Str("op", op).Str("account_id", accountID).Err(err).Msg("ledger operation rejected")
		s.audit.LogError(op, referenceFrom(ctx), accountID, err)
		return
	}
	s.log.Error().Str("op", op).Str("account_id", accountID).Err(err).Msg("ledger operation failed")
}

// adjust applies delta to one sub-balance and returns the journal line for it.
func adjust(a *models.Account, res models.Resource, bucket models.Bucket, delta decimal.Decimal) *models.LedgerEntry {
	bal := &a.Energy
	if res == models.ResourceMoney {
		bal = &a.Money
	}
	field := &bal.Available
	if bucket == models.BucketLocked {
		field = &bal.Locked
	}
	*field = field.Add(delta)

	return &models.LedgerEntry{
		AccountID:    a.ID,
		Resource:     res,
		Bucket:       bucket,
		Delta:        delta,
		BalanceAfter: *field,
	}
}

func newID() string {
	return uuid.NewString()
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
