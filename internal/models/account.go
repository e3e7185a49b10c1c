package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance splits one resource into the spendable and the reserved portion.
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// Total is available plus locked.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// NonNegative reports whether both sub-balances are >= 0.
func (b Balance) NonNegative() bool {
	return !b.Available.IsNegative() && !b.Locked.IsNegative()
}

// Account holds one participant's energy (kWh) and money balances.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Energy    Balance   `json:"energy"`
	Money     Balance   `json:"money"`
	Active    bool      `json:"active" db:"active"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewAccount returns an active account with zero energy and the given money.
func NewAccount(id string, initialMoney decimal.Decimal, now time.Time) *Account {
	return &Account{
		ID:        id,
		Energy:    Balance{Available: decimal.Zero, Locked: decimal.Zero},
		Money:     Balance{Available: initialMoney, Locked: decimal.Zero},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Valid reports whether all four sub-balances are non-negative.
func (a *Account) Valid() bool {
	return a.Energy.NonNegative() && a.Money.NonNegative()
}

// Clone returns a copy that can be mutated without touching the original.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
