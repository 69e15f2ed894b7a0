/*
calculator.go - Monthly depreciation amount per method

PURPOSE:
  Pure functions from an asset's current state to one month of
  depreciation. No I/O, no clock. The run orchestrator calls Compute then
  Clamp and posts the result.

METHODS:
  straight_line:      (TotalCost - SalvageValue) / UsefulLifeMonths
                      the last month of the life posts the rounding remainder
  declining_balance:  BookValue * rate / 100 / 12
                      rate = DepreciationRate, or 100 * 12 / UsefulLifeMonths
  double_declining:   BookValue * (2 * 100 / (life / 12)) / 12 / 100
                      which reduces to BookValue * 2 / UsefulLifeMonths
  sum_of_years:       declared, not implemented
  units_of_production declared, not implemented

  Declared-but-unimplemented and unknown methods return
  *asset.UnsupportedMethodError. There is no fallback to straight line.

CLAMP:
  The posted amount is round2(raw), capped at BookValue - SalvageValue and
  floored at zero. That cap is what keeps book value from ever crossing
  salvage value.
*/
package depreciation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// CALCULATOR - Interface for one depreciation method
// =============================================================================

// Calculator computes the raw (unrounded, unclamped) amount for the next
// period of an asset.
type Calculator interface {
	Method() asset.Method
	Compute(a *asset.Asset) decimal.Decimal
}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	two     = decimal.NewFromInt(2)
)

type StraightLine struct{}

func (StraightLine) Method() asset.Method { return asset.MethodStraightLine }

func (StraightLine) Compute(a *asset.Asset) decimal.Decimal {
	life := int64(a.UsefulLifeMonths)
	per := a.DepreciableBase().Div(decimal.NewFromInt(life))
	step := asset.RoundMoney(per)
	// Before the last month accumulated is a whole number of steps.
	last := step.Mul(decimal.NewFromInt(life - 1))
	if step.IsPositive() && a.AccumulatedDepreciation.Equal(last) {
		return a.Remaining()
	}
	return per
}

type DecliningBalance struct{}

func (DecliningBalance) Method() asset.Method { return asset.MethodDecliningBalance }

func (DecliningBalance) Compute(a *asset.Asset) decimal.Decimal {
	return a.BookValue.Mul(AnnualRate(a)).Div(hundred).Div(twelve)
}

// AnnualRate is the declining balance rate in percent: the asset's own rate
// when set, otherwise the straight-line equivalent 1200 / life.
func AnnualRate(a *asset.Asset) decimal.Decimal {
	if a.DepreciationRate != nil {
		return *a.DepreciationRate
	}
	return hundred.Mul(twelve).Div(decimal.NewFromInt(int64(a.UsefulLifeMonths)))
}

type DoubleDeclining struct{}

func (DoubleDeclining) Method() asset.Method { return asset.MethodDoubleDeclining }

func (DoubleDeclining) Compute(a *asset.Asset) decimal.Decimal {
	return a.BookValue.Mul(two).Div(decimal.NewFromInt(int64(a.UsefulLifeMonths)))
}

// =============================================================================
// DISPATCH
// =============================================================================

// CalculatorFor returns the implementation for m.
func CalculatorFor(m asset.Method) (Calculator, error) {
	switch m {
	case asset.MethodStraightLine:
		return StraightLine{}, nil
	case asset.MethodDecliningBalance:
		return DecliningBalance{}, nil
	case asset.MethodDoubleDeclining:
		return DoubleDeclining{}, nil
	}
	return nil, &asset.UnsupportedMethodError{Method: m}
}

// Compute returns the raw amount for the asset's next period, never
// negative.
func Compute(a *asset.Asset) (decimal.Decimal, error) {
	if a.UsefulLifeMonths <= 0 {
		return decimal.Zero, &asset.InvariantError{AssetID: a.ID, Rule: "useful_life", Detail: "useful life must be positive"}
	}
	calc, err := CalculatorFor(a.Method)
	if err != nil {
		return decimal.Zero, err
	}
	amount := calc.Compute(a)
	if amount.IsNegative() {
		return decimal.Zero, nil
	}
	return amount, nil
}

// Clamp rounds raw to minor units and caps it so book value cannot fall
// below salvage value.
func Clamp(a *asset.Asset, raw decimal.Decimal) decimal.Decimal {
	remaining := a.Remaining()
	if !remaining.IsPositive() {
		return decimal.Zero
	}
	amount := asset.MinMoney(asset.RoundMoney(raw), remaining)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Next is Compute followed by Clamp.
func Next(a *asset.Asset) (decimal.Decimal, error) {
	raw, err := Compute(a)
	if err != nil {
		return decimal.Zero, err
	}
	return Clamp(a, raw), nil
}
