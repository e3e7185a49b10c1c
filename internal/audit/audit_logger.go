// Package audit writes an append-only trail of ledger mutations.
package audit

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Logger struct {
	log zerolog.Logger
}

func NewLogger(base zerolog.Logger) *Logger {
	return &Logger{log: base.With().Str("stream", "audit").Logger()}
}

// LogMutation records one ledger operation against an account.
func (a *Logger) LogMutation(op, reference, accountID string, amount decimal.Decimal) {
	if a == nil {
		return
	}
	a.log.Info().
		Str("event_type", op).
		Str("reference", reference).
		Str("account_id", accountID).
		Str("amount", amount.String()).
		Str("status", "SUCCESS").
		Msg("ledger mutation")
}

// LogTransfer records a two-sided settlement.
func (a *Logger) LogTransfer(reference, fromAccount, toAccount string, energy, money decimal.Decimal) {
	if a == nil {
		return
	}
	a.log.Info().
		Str("event_type", "SETTLE_TRADE").
		Str("reference", reference).
		Str("from_account", fromAccount).
		Str("to_account", toAccount).
		Str("energy", energy.String()).
		Str("money", money.String()).
		Str("status", "SUCCESS").
		Msg("ledger transfer")
}

// LogOperation records a non-monetary state change such as an offer transition.
func (a *Logger) LogOperation(reference, accountID, operation, details string) {
	if a == nil {
		return
	}
	a.log.Info().
		Str("event_type", operation).
		Str("reference", reference).
		Str("account_id", accountID).
		Str("details", details).
		Str("status", "SUCCESS").
		Msg("ledger operation")
}

func (a *Logger) LogError(op, reference, accountID string, err error) {
	if a == nil {
		return
	}
	a.log.Warn().
		Str("event_type", op).
		Str("reference", reference).
		Str("account_id", accountID).
		Err(err).
		Str("status", "FAILED").
		Msg("ledger rejection")
}
