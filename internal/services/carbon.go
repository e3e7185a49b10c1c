package services

import (
	"github.com/shopspring/decimal"

	"github.com/ruralpay/energyledger/internal/models"
)

// DefaultCarbonFactor is kg CO2e avoided per kWh of peer-traded renewable
// energy displacing grid supply.
var DefaultCarbonFactor = decimal.RequireFromString("0.475")

// CarbonPlaces is the stored precision of carbon figures, to the milligram.
const CarbonPlaces int32 = 6

// CarbonCalculator converts traded energy into avoided emissions.
type CarbonCalculator struct {
	factor decimal.Decimal
}

func NewCarbonCalculator(factor decimal.Decimal) *CarbonCalculator {
	if !factor.IsPositive() {
		factor = DefaultCarbonFactor
	}
	return &CarbonCalculator{factor: factor}
}

// CarbonSaved returns energy × factor in kg CO2e, rounded half away from zero
// to CarbonPlaces the same way a NUMERIC column would store it.
func (c *CarbonCalculator) CarbonSaved(energy decimal.Decimal) (decimal.Decimal, error) {
	if energy.IsNegative() {
		return decimal.Zero, models.ErrInvalidAmount
	}
	return energy.Mul(c.factor).Round(CarbonPlaces), nil
}

func (c *CarbonCalculator) Factor() decimal.Decimal {
	return c.factor
}
