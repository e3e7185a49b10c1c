package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/store"
)

// AccountService registers participants and exposes account snapshots.
// Balance changes go through LedgerService; this service only opens,
// deactivates and reads accounts.
type AccountService struct {
	store  store.Store
	ledger *LedgerService
}

func NewAccountService(st store.Store, ledger *LedgerService) *AccountService {
	return &AccountService{store: st, ledger: ledger}
}

// CreateAccount opens an account with zero energy and the given starting money.
func (s *AccountService) CreateAccount(ctx context.Context, accountID string, initialMoney decimal.Decimal) (*models.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("blank account id: %w", models.ErrInvalidAmount)
	}
	if initialMoney.IsNegative() || !models.FitsPlaces(initialMoney, models.MoneyPlaces) {
		return nil, models.ErrInvalidAmount
	}

	start := time.Now()
	now := s.ledger.now()
	account := models.NewAccount(accountID, initialMoney, now)

	err := runInScope(ctx, s.store, func(ctx context.Context) error {
		if err := s.store.CreateAccount(ctx, account); err != nil {
			return err
		}
		if initialMoney.IsZero() {
			return nil
		}
		return s.store.AppendEntries(ctx, &models.LedgerEntry{
			ID:           newID(),
			AccountID:    accountID,
			Resource:     models.ResourceMoney,
			Bucket:       models.BucketAvailable,
			Delta:        initialMoney,
			BalanceAfter: initialMoney,
			Operation:    models.OpOpenAccount,
			Reference:    referenceFrom(ctx),
			CreatedAt:    now,
		})
	})
	if err != nil {
		s.ledger.metrics.ObserveOp(models.OpOpenAccount, start, err)
		return nil, fmt.Errorf("create account %s: %w", accountID, err)
	}

	s.ledger.metrics.ObserveOp(models.OpOpenAccount, start, nil)
	ref := referenceFrom(ctx)
	afterCommit(ctx, func() { s.ledger.audit.LogMutation(models.OpOpenAccount, ref, accountID, initialMoney) })
	s.ledger.log.Info().Str("account_id", accountID).Str("initial_money", initialMoney.String()).Msg("account opened")
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	return s.store.ListAccounts(ctx, limit, offset)
}

// ListEntries returns the account's journal, most recent first.
func (s *AccountService) ListEntries(ctx context.Context, accountID string, limit int) ([]*models.LedgerEntry, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, accountID, limit)
}

// DeactivateAccount stops an account from receiving credits, locking energy
// or settling trades. Open offers can still be cancelled or expire.
func (s *AccountService) DeactivateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.setActive(ctx, accountID, false)
}

func (s *AccountService) ReactivateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.setActive(ctx, accountID, true)
}

func (s *AccountService) setActive(ctx context.Context, accountID string, active bool) (*models.Account, error) {
	var result *models.Account
	err := runInScope(ctx, s.store, func(ctx context.Context) error {
		lockAccounts(ctx, s.ledger.locks, accountID)

		a, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a.Active == active {
			return fmt.Errorf("account %s already active=%t: %w", accountID, active, models.ErrInvalidState)
		}

		a.Active = active
		a.UpdatedAt = s.ledger.now()
		if err := s.store.UpdateAccounts(ctx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	op := "ACCOUNT_DEACTIVATED"
	if active {
		op = "ACCOUNT_REACTIVATED"
	}
	afterCommit(ctx, func() { s.ledger.audit.LogOperation(accountID, accountID, op, "") })
	return result, nil
}
