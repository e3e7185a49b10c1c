package models

import (
	"github.com/shopspring/decimal"
)

// Precision of quantities. Energy is kept to the watt-hour and prices and
// deposits to the minor currency unit. Money balances carry SettlementPlaces so
// that a trade total, energy × unit price, is held exactly.
const (
	EnergyPlaces     int32 = 3
	MoneyPlaces      int32 = 2
	SettlementPlaces int32 = EnergyPlaces + MoneyPlaces
)

// Zero is the additive identity shared by energy and money quantities.
var Zero = decimal.Zero

// ParseEnergy parses a kWh quantity and rejects anything finer than a watt-hour.
func ParseEnergy(s string) (decimal.Decimal, error) {
	return parseQuantity(s, EnergyPlaces)
}

// ParseMoney parses a money quantity and rejects anything finer than the minor unit.
func ParseMoney(s string) (decimal.Decimal, error) {
	return parseQuantity(s, MoneyPlaces)
}

func parseQuantity(s string, places int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !FitsPlaces(d, places) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FitsPlaces reports whether d can be represented with at most places decimals.
func FitsPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// ValidateEnergy checks that amount is a strictly positive watt-hour multiple.
func ValidateEnergy(amount decimal.Decimal) error {
	if !amount.IsPositive() || !FitsPlaces(amount, EnergyPlaces) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateMoney checks that amount is a strictly positive minor-unit multiple.
func ValidateMoney(amount decimal.Decimal) error {
	if !amount.IsPositive() || !FitsPlaces(amount, MoneyPlaces) {
		return ErrInvalidAmount
	}
	return nil
}

// TotalPrice is the exact cost of energy at unitPrice. It never rounds, so a
// priced fill always moves a positive amount of money.
func TotalPrice(energy, unitPrice decimal.Decimal) decimal.Decimal {
	return energy.Mul(unitPrice)
}

// ValidateSettlement checks a trade total: strictly positive and within
// SettlementPlaces.
func ValidateSettlement(amount decimal.Decimal) error {
	if !amount.IsPositive() || !FitsPlaces(amount, SettlementPlaces) {
		return ErrInvalidAmount
	}
	return nil
}
