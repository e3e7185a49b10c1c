package models

import (
	"errors"
	"fmt"
)

// Business outcomes. Adapters surface these to the end user verbatim.
var (
	ErrNotFound            = errors.New("ledger: not found")
	ErrAlreadyExists       = errors.New("ledger: already exists")
	ErrInvalidAmount       = errors.New("ledger: invalid amount")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrInvalidState        = errors.New("ledger: invalid state")
	ErrNotOwner            = errors.New("ledger: requester does not own offer")
	ErrSelfTrade           = errors.New("ledger: buyer and seller are the same account")
	ErrExpired             = errors.New("ledger: offer expired")
)

// Storage faults. Adapters retry these with backoff; the engine never does.
var (
	ErrVersionConflict  = errors.New("ledger: concurrent modification detected")
	ErrStoreUnavailable = errors.New("ledger: store unavailable")
)

// TransitionError reports an offer status change the state machine forbids.
type TransitionError struct {
	OfferID string
	From    OfferStatus
	To      OfferStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ledger: offer %s cannot move from %s to %s", e.OfferID, e.From, e.To)
}

// Unwrap lets callers match a forbidden transition as ErrInvalidState.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidState
}

// IsBusinessError returns true for outcomes that must not be retried blindly.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrSelfTrade) ||
		errors.Is(err, ErrExpired)
}

// IsRetryable returns true if the error is a storage fault that may clear.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrStoreUnavailable)
}
