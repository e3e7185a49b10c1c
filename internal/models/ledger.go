package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Resource string

const (
	ResourceEnergy Resource = "ENERGY"
	ResourceMoney  Resource = "MONEY"
)

type Bucket string

const (
	BucketAvailable Bucket = "AVAILABLE"
	BucketLocked    Bucket = "LOCKED"
)

// Ledger operations recorded on journal entries.
const (
	OpCreditEnergy = "CREDIT_ENERGY"
	OpCreditMoney  = "CREDIT_MONEY"
	OpLockEnergy   = "LOCK_ENERGY"
	OpUnlockEnergy = "UNLOCK_ENERGY"
	OpSettleTrade  = "SETTLE_TRADE"
	OpOpenAccount  = "OPEN_ACCOUNT"
)

// LedgerEntry records one sub-balance change. Entries are append-only.
type LedgerEntry struct {
	ID           string          `json:"id" db:"id"`
	AccountID    string          `json:"account_id" db:"account_id"`
	Resource     Resource        `json:"resource" db:"resource"`
	Bucket       Bucket          `json:"bucket" db:"bucket"`
	Delta        decimal.Decimal `json:"delta" db:"delta"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	Operation    string          `json:"operation" db:"operation"`
	Reference    string          `json:"reference" db:"reference"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
