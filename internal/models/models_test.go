package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantities(t *testing.T) {
	t.Run("energy to the watt-hour", func(t *testing.T) {
		d, err := ParseEnergy("12.345")
		require.NoError(t, err)
		assert.True(t, d.Equal(decimal.RequireFromString("12.345")))
	})

	t.Run("energy finer than a watt-hour", func(t *testing.T) {
		_, err := ParseEnergy("1.0001")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("money finer than minor unit", func(t *testing.T) {
		_, err := ParseMoney("10.005")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseMoney("ten")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestValidateAmounts(t *testing.T) {
	assert.NoError(t, ValidateEnergy(decimal.RequireFromString("0.001")))
	assert.ErrorIs(t, ValidateEnergy(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateEnergy(decimal.NewFromInt(-1)), ErrInvalidAmount)
	assert.NoError(t, ValidateMoney(decimal.RequireFromString("0.01")))
	assert.ErrorIs(t, ValidateMoney(decimal.RequireFromString("0.001")), ErrInvalidAmount)
}

func TestTotalPrice(t *testing.T) {
	tests := []struct {
		energy, price, want string
	}{
		{"15", "2.0", "30"},
		{"0.333", "0.15", "0.04995"},
		{"0.1", "0.25", "0.025"},
		{"0.001", "5", "0.005"},
		{"0.001", "0.01", "0.00001"},
	}
	for _, tt := range tests {
		t.Run(tt.energy+"@"+tt.price, func(t *testing.T) {
			got := TotalPrice(decimal.RequireFromString(tt.energy), decimal.RequireFromString(tt.price))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
			assert.NoError(t, ValidateSettlement(got))
		})
	}
}

func TestValidateSettlement(t *testing.T) {
	assert.ErrorIs(t, ValidateSettlement(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateSettlement(decimal.RequireFromString("-0.01")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateSettlement(decimal.RequireFromString("0.000001")), ErrInvalidAmount)
}

func TestOfferStatusTransitions(t *testing.T) {
	tests := []struct {
		from OfferStatus
		to   OfferStatus
		ok   bool
	}{
		{OfferActive, OfferPartiallyFilled, true},
		{OfferActive, OfferSold, true},
		{OfferActive, OfferExpired, true},
		{OfferActive, OfferCancelled, true},
		{OfferPartiallyFilled, OfferPartiallyFilled, true},
		{OfferPartiallyFilled, OfferSold, true},
		{OfferSold, OfferCancelled, false},
		{OfferExpired, OfferActive, false},
		{OfferCancelled, OfferExpired, false},
		{OfferActive, OfferActive, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestOfferTransitionTo(t *testing.T) {
	now := time.Now()
	o := &Offer{ID: "o1", Status: OfferSold}

	err := o.TransitionTo(OfferCancelled, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)

	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, OfferSold, terr.From)
	assert.Equal(t, OfferSold, o.Status)
}

func TestOfferExpiredAt(t *testing.T) {
	now := time.Now()
	o := &Offer{ExpiresAt: now}
	assert.True(t, o.ExpiredAt(now))
	assert.False(t, o.ExpiredAt(now.Add(-time.Millisecond)))
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("lock energy: %w", ErrInsufficientBalance)
	assert.True(t, IsBusinessError(wrapped))
	assert.False(t, IsRetryable(wrapped))

	assert.True(t, IsRetryable(fmt.Errorf("update: %w", ErrVersionConflict)))
	assert.False(t, IsBusinessError(ErrStoreUnavailable))
}

func TestAccountClone(t *testing.T) {
	a := NewAccount("a", decimal.NewFromInt(10), time.Now())
	c := a.Clone()
	c.Money.Available = decimal.Zero
	assert.True(t, a.Money.Available.Equal(decimal.NewFromInt(10)))
	assert.True(t, a.Valid())
}
