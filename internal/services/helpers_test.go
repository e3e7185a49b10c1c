package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/energyledger/internal/models"
	"github.com/ruralpay/energyledger/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEngine struct {
	store    *memory.Store
	clock    *fakeClock
	ledger   *LedgerService
	accounts *AccountService
	offers   *OfferService
	trades   *TradeService
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()

	clock := newFakeClock()
	st := memory.New()
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	ledger := NewLedgerService(st, opts...)
	offers := NewOfferService(st, ledger, OfferConfig{
		DefaultTTL:    time.Hour,
		MaxTTL:        24 * time.Hour,
		SweepInterval: 10 * time.Millisecond,
	}, opts...)

	return &testEngine{
		store:    st,
		clock:    clock,
		ledger:   ledger,
		accounts: NewAccountService(st, ledger),
		offers:   offers,
		trades:   NewTradeService(st, ledger, offers, NewCarbonCalculator(DefaultCarbonFactor), opts...),
	}
}

// open creates an account holding energy kWh and money.
func (e *testEngine) open(t *testing.T, id, energy, money string) {
	t.Helper()
	ctx := context.Background()

	_, err := e.accounts.CreateAccount(ctx, id, d(money))
	require.NoError(t, err)
	if energy != "0" {
		require.NoError(t, e.ledger.CreditEnergy(ctx, id, d(energy)))
	}
}

func (e *testEngine) account(t *testing.T, id string) *models.Account {
	t.Helper()
	a, err := e.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a
}

// assertBalances checks energy available/locked and money available.
func (e *testEngine) assertBalances(t *testing.T, id, energyAvail, energyLocked, moneyAvail string) {
	t.Helper()
	a := e.account(t, id)
	assert.Truef(t, a.Energy.Available.Equal(d(energyAvail)), "%s energy available = %s, want %s", id, a.Energy.Available, energyAvail)
	assert.Truef(t, a.Energy.Locked.Equal(d(energyLocked)), "%s energy locked = %s, want %s", id, a.Energy.Locked, energyLocked)
	assert.Truef(t, a.Money.Available.Equal(d(moneyAvail)), "%s money available = %s, want %s", id, a.Money.Available, moneyAvail)
	assert.True(t, a.Valid(), "%s has a negative sub-balance", id)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
