package depreciation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// PROJECTION - Forecast future periods without touching the ledger
// =============================================================================

// ProjectedPeriod is one forecast row.
type ProjectedPeriod struct {
	Period                  asset.Period
	OpeningBookValue        decimal.Decimal
	DepreciationAmount      decimal.Decimal
	AccumulatedDepreciation decimal.Decimal
	ClosingBookValue        decimal.Decimal
}

// Project forecasts up to n periods starting at from, assuming the asset
// stays active. Periods before the depreciation start date are passed over,
// and the forecast stops once salvage value is reached.
//
// A projection answers "what would runs post?". It never writes.
func Project(a *asset.Asset, from asset.Period, n int) ([]ProjectedPeriod, error) {
	if a.Status.Terminal() || n <= 0 {
		return nil, nil
	}
	if _, err := CalculatorFor(a.Method); err != nil {
		return nil, err
	}

	if first := FirstPeriod(a); from.Before(first) {
		from = first
	}

	sim := a.Clone()
	sim.Status = asset.StatusActive

	var out []ProjectedPeriod
	for p := from; len(out) < n; p = p.Next() {
		amount, err := Next(sim)
		if err != nil {
			return nil, err
		}
		if amount.IsZero() {
			break
		}
		next, err := sim.Depreciate(amount, sim.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, ProjectedPeriod{
			Period:                  p,
			OpeningBookValue:        sim.BookValue,
			DepreciationAmount:      amount,
			AccumulatedDepreciation: next.AccumulatedDepreciation,
			ClosingBookValue:        next.BookValue,
		})
		sim = next
	}
	return out, nil
}

// FirstPeriod is the earliest period a run will post for a: the month of
// the depreciation start date if it starts on the 1st, otherwise the month
// after.
func FirstPeriod(a *asset.Asset) asset.Period {
	p := asset.PeriodOf(a.DepreciationStartDate)
	if p.StartsBefore(a.DepreciationStartDate) {
		return p.Next()
	}
	return p
}
