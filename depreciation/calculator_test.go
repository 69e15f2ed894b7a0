package depreciation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/depreciation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	jan2025 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	now     = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
)

type assetOpt func(*asset.CreateParams)

func withCost(cost string) assetOpt {
	return func(p *asset.CreateParams) { p.AcquisitionCost = asset.MustMoney(cost) }
}

func withSalvage(v string) assetOpt {
	return func(p *asset.CreateParams) { p.SalvageValue = asset.MustMoney(v) }
}

func withLife(months int) assetOpt {
	return func(p *asset.CreateParams) { p.UsefulLifeMonths = months }
}

func withMethod(m asset.Method) assetOpt {
	return func(p *asset.CreateParams) { p.Method = m }
}

func withRate(r string) assetOpt {
	return func(p *asset.CreateParams) {
		d := asset.MustMoney(r)
		p.DepreciationRate = &d
	}
}

func withStart(t time.Time) assetOpt {
	return func(p *asset.CreateParams) { p.DepreciationStartDate = t }
}

func withCategory(c asset.Category) assetOpt {
	return func(p *asset.CreateParams) { p.Category = c }
}

func withFacility(f string) assetOpt {
	return func(p *asset.CreateParams) { p.FacilityID = f }
}

func newAsset(t *testing.T, id, code string, opts ...assetOpt) *asset.Asset {
	t.Helper()
	p := asset.CreateParams{
		FacilityID:            "fac-1",
		AssetCode:             code,
		Name:                  "Asset " + code,
		AcquisitionDate:       jan2025,
		AcquisitionCost:       asset.MustMoney("12000"),
		UsefulLifeMonths:      12,
		Method:                asset.MethodStraightLine,
		DepreciationStartDate: jan2025,
	}
	for _, o := range opts {
		o(&p)
	}
	a, err := asset.NewAsset(asset.AssetID(id), p, now)
	require.NoError(t, err)
	return a
}

func money(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, asset.MustMoney(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// METHODS
// =============================================================================

func TestCompute_StraightLine(t *testing.T) {
	a := newAsset(t, "a-1", "SL-1")

	amount, err := depreciation.Next(a)
	require.NoError(t, err)
	money(t, "1000", amount)
}

func TestCompute_StraightLine_WithSalvage(t *testing.T) {
	a := newAsset(t, "a-1", "SL-1", withSalvage("2400"), withLife(48))

	amount, err := depreciation.Next(a)
	require.NoError(t, err)
	money(t, "200", amount)
}

func TestCompute_DecliningBalance_ExplicitRate(t *testing.T) {
	// GIVEN: 10000 at 20% annual declining balance
	// WHEN: First and second periods are computed
	// THEN: 10000*20/100/12 = 166.67, then the same rate on the reduced base
	a := newAsset(t, "a-1", "DB-1", withCost("10000"), withLife(60),
		withMethod(asset.MethodDecliningBalance), withRate("20"))

	first, err := depreciation.Next(a)
	require.NoError(t, err)
	money(t, "166.67", first)

	a, err = a.Depreciate(first, now)
	require.NoError(t, err)
	money(t, "9833.33", a.BookValue)

	second, err := depreciation.Next(a)
	require.NoError(t, err)
	money(t, "163.89", second)
}

func TestCompute_DecliningBalance_DefaultRate(t *testing.T) {
	a := newAsset(t, "a-1", "DB-1", withCost("10000"), withLife(60),
		withMethod(asset.MethodDecliningBalance))

	money(t, "20", depreciation.AnnualRate(a))

	amount, err := depreciation.Next(a)
	require.NoError(t, err)
	money(t, "166.67", amount)
}

func TestCompute_DoubleDeclining(t *testing.T) {
	a := newAsset(t, "a-1", "DD-1", withLife(24), withMethod(asset.MethodDoubleDeclining))

	amount, err := depreciation.Next(a)
	require.NoError(t, err)
	money(t, "1000", amount)

	a, err = a.Depreciate(amount, now)
	require.NoError(t, err)
	amount, err = depreciation.Next(a)
	require.NoError(t, err)
	money(t, "916.67", amount)
}

func TestCompute_UnsupportedMethods(t *testing.T) {
	for _, m := range []asset.Method{asset.MethodSumOfYears, asset.MethodUnitsOfProduction, "bogus"} {
		t.Run(string(m), func(t *testing.T) {
			a := newAsset(t, "a-1", "X-1")
			a.Method = m

			_, err := depreciation.Compute(a)

			var ume *asset.UnsupportedMethodError
			require.ErrorAs(t, err, &ume)
			assert.Equal(t, m, ume.Method)
			assert.ErrorIs(t, err, asset.ErrUnsupportedMethod)
		})
	}
}

// =============================================================================
// CLAMP
// =============================================================================

func TestClamp_CappedAtRemaining(t *testing.T) {
	a := newAsset(t, "a-1", "SL-1", withSalvage("1000"))
	a, err := a.Depreciate(asset.MustMoney("10950"), now)
	require.NoError(t, err)

	money(t, "50", depreciation.Clamp(a, asset.MustMoney("916.67")))
}

func TestClamp_RoundsHalfAwayFromZero(t *testing.T) {
	a := newAsset(t, "a-1", "SL-1")

	money(t, "333.34", depreciation.Clamp(a, asset.MustMoney("333.335")))
	money(t, "333.33", depreciation.Clamp(a, asset.MustMoney("333.3349")))
}

func TestClamp_NeverNegative(t *testing.T) {
	a := newAsset(t, "a-1", "SL-1")

	money(t, "0", depreciation.Clamp(a, asset.MustMoney("-5")))
}

func TestStraightLine_NeverCrossesSalvage(t *testing.T) {
	// GIVEN: A base that does not divide evenly by the life
	// WHEN: Depreciating until nothing is left
	// THEN: Book value decreases monotonically and lands exactly on salvage
	a := newAsset(t, "a-1", "SL-1", withCost("1000"), withSalvage("1"), withLife(7))

	prev := a.BookValue
	for i := 0; i < 20; i++ {
		amount, err := depreciation.Next(a)
		require.NoError(t, err)
		if amount.IsZero() {
			break
		}
		a, err = a.Depreciate(amount, now)
		require.NoError(t, err)

		assert.True(t, a.BookValue.LessThan(prev), "book value must decrease")
		assert.True(t, a.BookValue.GreaterThanOrEqual(a.SalvageValue), "book value must not cross salvage")
		prev = a.BookValue
	}
	money(t, "1", a.BookValue)
	assert.True(t, a.FullyDepreciated())
}

func TestStraightLine_LastMonthTakesRemainder(t *testing.T) {
	// GIVEN: Bases that do not divide evenly by the life
	// WHEN: Depreciating for exactly the useful life
	// THEN: Every month but the last posts the rounded share, the last
	//       posts what is left and nothing remains afterwards
	tests := []struct {
		cost      string
		life      int
		step      string
		lastMonth string
	}{
		{"1000", 3, "333.33", "333.34"},
		{"10000", 12, "833.33", "833.37"},
		{"1000", 6, "166.67", "166.65"},
	}

	for _, tt := range tests {
		t.Run(tt.cost+"/"+tt.step, func(t *testing.T) {
			a := newAsset(t, "a-1", "SL-1", withCost(tt.cost), withLife(tt.life))

			for m := 1; m <= tt.life; m++ {
				amount, err := depreciation.Next(a)
				require.NoError(t, err)
				if m < tt.life {
					money(t, tt.step, amount)
				} else {
					money(t, tt.lastMonth, amount)
				}
				a, err = a.Depreciate(amount, now)
				require.NoError(t, err)
			}

			money(t, "0", a.BookValue)
			money(t, tt.cost, a.AccumulatedDepreciation)
			assert.True(t, a.FullyDepreciated())

			amount, err := depreciation.Next(a)
			require.NoError(t, err)
			money(t, "0", amount)
		})
	}
}

// =============================================================================
// PROJECTION
// =============================================================================

func TestProject_StopsAtSalvage(t *testing.T) {
	a := newAsset(t, "a-1", "SL-1")

	rows, err := depreciation.Project(a, asset.MustPeriod(2025, 1), 15)
	require.NoError(t, err)

	require.Len(t, rows, 12)
	assert.Equal(t, "2025-01", rows[0].Period.String())
	assert.Equal(t, "2025-12", rows[11].Period.String())
	money(t, "12000", rows[0].OpeningBookValue)
	money(t, "0", rows[11].ClosingBookValue)
	money(t, "12000", rows[11].AccumulatedDepreciation)

	// Nothing was written to the asset
	money(t, "12000", a.BookValue)
}

func TestProject_SkipsToFirstPeriod(t *testing.T) {
	a := newAsset(t, "a-1", "SL-1", withStart(time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)))

	rows, err := depreciation.Project(a, asset.MustPeriod(2025, 1), 2)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "2025-04", rows[0].Period.String())
	assert.Equal(t, "2025-04", depreciation.FirstPeriod(a).String())
}

func TestProject_UnsupportedMethod(t *testing.T) {
	a := newAsset(t, "a-1", "SY-1", withMethod(asset.MethodSumOfYears))

	_, err := depreciation.Project(a, asset.MustPeriod(2025, 1), 3)
	assert.ErrorIs(t, err, asset.ErrUnsupportedMethod)
}
