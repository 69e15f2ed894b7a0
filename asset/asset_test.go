package asset_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)

func params() asset.CreateParams {
	return asset.CreateParams{
		FacilityID:            "fac-1",
		AssetCode:             "MRI-001",
		Name:                  "MRI Scanner",
		Category:              asset.CategoryImagingEquipment,
		AcquisitionDate:       time.Date(2024, time.December, 15, 0, 0, 0, 0, time.UTC),
		AcquisitionCost:       asset.MustMoney("11000"),
		InstallationCost:      asset.MustMoney("1000"),
		SalvageValue:          asset.MustMoney("0"),
		UsefulLifeMonths:      12,
		Method:                asset.MethodStraightLine,
		DepreciationStartDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newAsset(t *testing.T) *asset.Asset {
	t.Helper()
	a, err := asset.NewAsset("a-1", params(), now)
	require.NoError(t, err)
	return a
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// CREATION
// =============================================================================

func TestNewAsset_BookValueStartsAtTotalCost(t *testing.T) {
	a := newAsset(t)

	assert.True(t, a.TotalCost.Equal(asset.MustMoney("12000")))
	assert.True(t, a.BookValue.Equal(a.TotalCost))
	assert.True(t, a.AccumulatedDepreciation.IsZero())
	assert.Equal(t, asset.StatusActive, a.Status)
	assert.Equal(t, asset.ConditionGood, a.Condition)
	assert.NoError(t, a.Validate())
}

func TestNewAsset_SalvageAboveTotalRejected(t *testing.T) {
	p := params()
	p.SalvageValue = asset.MustMoney("12000.01")

	_, err := asset.NewAsset("a-1", p, now)

	var inv *asset.InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "salvage", inv.Rule)
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)
}

func TestNewAsset_NegativeCostRejected(t *testing.T) {
	p := params()
	p.AcquisitionCost = asset.MustMoney("-1")

	_, err := asset.NewAsset("a-1", p, now)

	assert.ErrorIs(t, err, asset.ErrInvalidInput)
	assert.True(t, asset.IsClientError(err))
}

func TestNewAsset_ZeroLifeRejected(t *testing.T) {
	p := params()
	p.UsefulLifeMonths = 0

	_, err := asset.NewAsset("a-1", p, now)
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)
}

func TestNewAsset_RateOutOfRangeRejected(t *testing.T) {
	p := params()
	p.Method = asset.MethodDecliningBalance
	p.DepreciationRate = ptr(decimal.NewFromInt(101))

	_, err := asset.NewAsset("a-1", p, now)
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)
}

// =============================================================================
// DEPRECIATE
// =============================================================================

func TestDepreciate_KeepsBookValueInvariant(t *testing.T) {
	a := newAsset(t)

	next, err := a.Depreciate(asset.MustMoney("1000"), now)
	require.NoError(t, err)

	assert.True(t, next.AccumulatedDepreciation.Equal(asset.MustMoney("1000")))
	assert.True(t, next.BookValue.Equal(asset.MustMoney("11000")))
	assert.True(t, a.BookValue.Equal(asset.MustMoney("12000")), "original must be untouched")
}

func TestDepreciate_PastSalvageRejected(t *testing.T) {
	p := params()
	p.SalvageValue = asset.MustMoney("2000")
	a, err := asset.NewAsset("a-1", p, now)
	require.NoError(t, err)

	_, err = a.Depreciate(asset.MustMoney("10000.01"), now)

	var inv *asset.InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "accumulated", inv.Rule)
}

func TestDepreciate_InactiveRejected(t *testing.T) {
	a := newAsset(t)
	a.Status = asset.StatusUnderMaintenance

	_, err := a.Depreciate(asset.MustMoney("10"), now)
	assert.ErrorIs(t, err, asset.ErrInvalidLifecycleTransition)
}

// =============================================================================
// PATCH
// =============================================================================

func TestApply_DescriptiveFields(t *testing.T) {
	a := newAsset(t)

	next, err := a.Apply(asset.Patch{
		Name:      ptr("MRI Scanner 3T"),
		Condition: ptr(asset.ConditionFair),
		Location:  ptr("Radiology B2"),
	}, false, now)
	require.NoError(t, err)

	assert.Equal(t, "MRI Scanner 3T", next.Name)
	assert.Equal(t, asset.ConditionFair, next.Condition)
	assert.Equal(t, "Radiology B2", next.Location)
	assert.Equal(t, "MRI Scanner", a.Name)
}

func TestApply_DepreciationParamsLockedAfterPosting(t *testing.T) {
	a := newAsset(t)

	_, err := a.Apply(asset.Patch{UsefulLifeMonths: ptr(24)}, true, now)
	assert.ErrorIs(t, err, asset.ErrDepreciationLocked)

	next, err := a.Apply(asset.Patch{UsefulLifeMonths: ptr(24)}, false, now)
	require.NoError(t, err)
	assert.Equal(t, 24, next.UsefulLifeMonths)
}

func TestApply_SalvageAboveBookRejected(t *testing.T) {
	a := newAsset(t)

	_, err := a.Apply(asset.Patch{SalvageValue: ptr(asset.MustMoney("13000"))}, false, now)
	assert.ErrorIs(t, err, asset.ErrInvariantViolation)
}

func TestApply_MarketValueStampsValuationDate(t *testing.T) {
	a := newAsset(t)

	next, err := a.Apply(asset.Patch{CurrentMarketValue: ptr(asset.MustMoney("9000"))}, true, now)
	require.NoError(t, err)

	require.NotNil(t, next.LastValuationDate)
	assert.Equal(t, now, *next.LastValuationDate)
}

func TestApply_StatusTransitions(t *testing.T) {
	tests := []struct {
		from, to asset.Status
		ok       bool
	}{
		{asset.StatusActive, asset.StatusUnderMaintenance, true},
		{asset.StatusUnderMaintenance, asset.StatusActive, true},
		{asset.StatusActive, asset.StatusDamaged, true},
		{asset.StatusDamaged, asset.StatusUnderMaintenance, true},
		{asset.StatusActive, asset.StatusTransferred, true},
		{asset.StatusTransferred, asset.StatusDamaged, false},
		{asset.StatusActive, asset.StatusDisposed, false},
		{asset.StatusActive, asset.StatusStolen, false},
		{asset.StatusDisposed, asset.StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, asset.CanTransition(tt.from, tt.to))
		})
	}
}

func TestApply_TerminalStatusRejected(t *testing.T) {
	a := newAsset(t)

	_, err := a.Apply(asset.Patch{Status: ptr(asset.StatusWrittenOff)}, false, now)

	var te *asset.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "asset", te.Entity)
}

// =============================================================================
// DISPOSE & RELOCATE
// =============================================================================

func TestDispose_FreezesBookValue(t *testing.T) {
	a := newAsset(t)
	a, err := a.Depreciate(asset.MustMoney("4000"), now)
	require.NoError(t, err)

	date := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	d, err := a.Dispose(asset.StatusDisposed, date, asset.MustMoney("5000"), "obsolete", now)
	require.NoError(t, err)

	require.NotNil(t, d.Disposal)
	assert.True(t, d.Disposal.BookValueAtDisposal.Equal(asset.MustMoney("8000")))
	assert.True(t, d.Disposal.GainLoss().Equal(asset.MustMoney("-3000")))
	assert.Equal(t, asset.StatusDisposed, d.Status)

	_, err = d.Dispose(asset.StatusStolen, date, decimal.Zero, "", now)
	assert.ErrorIs(t, err, asset.ErrInvalidLifecycleTransition)
}

func TestDispose_NonTerminalStatusRejected(t *testing.T) {
	a := newAsset(t)

	_, err := a.Dispose(asset.StatusDamaged, now, decimal.Zero, "", now)
	assert.ErrorIs(t, err, asset.ErrInvalidInput)
}

func TestRelocate_FinancialsUntouched(t *testing.T) {
	a := newAsset(t)

	next, err := a.Relocate("fac-2", ptr("cardiology"), now)
	require.NoError(t, err)

	assert.Equal(t, "fac-2", next.FacilityID)
	assert.Equal(t, "cardiology", *next.DepartmentID)
	assert.True(t, next.BookValue.Equal(a.BookValue))
	assert.True(t, next.TotalCost.Equal(a.TotalCost))
}

// =============================================================================
// PERIOD
// =============================================================================

func TestPeriod(t *testing.T) {
	p, err := asset.ParsePeriod("2025-12")
	require.NoError(t, err)

	assert.Equal(t, "2025-12", p.String())
	assert.Equal(t, asset.MustPeriod(2026, 1), p.Next())
	assert.Equal(t, asset.MustPeriod(2025, 11), p.Previous())
	assert.True(t, asset.MustPeriod(2025, 11).Before(p))
	assert.True(t, asset.MustPeriod(2026, 1).After(p))
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), p.End())

	_, err = asset.ParsePeriod("2025-13")
	assert.ErrorIs(t, err, asset.ErrInvalidInput)
	_, err = asset.NewPeriod(2025, 0)
	assert.ErrorIs(t, err, asset.ErrInvalidInput)
}

func TestPeriod_StartsBefore(t *testing.T) {
	start := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

	assert.True(t, asset.MustPeriod(2025, 3).StartsBefore(start))
	assert.False(t, asset.MustPeriod(2025, 4).StartsBefore(start))
	assert.False(t, asset.MustPeriod(2025, 3).StartsBefore(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)))
}

// =============================================================================
// TRANSFER
// =============================================================================

func TestTransfer_CompleteOnlyFromPending(t *testing.T) {
	tr := &asset.Transfer{ID: "t-1", Status: asset.TransferPending}

	done, err := tr.Complete("bob", now)
	require.NoError(t, err)
	assert.Equal(t, asset.TransferCompleted, done.Status)
	assert.Equal(t, asset.TransferPending, tr.Status)

	_, err = done.Complete("bob", now)
	assert.ErrorIs(t, err, asset.ErrInvalidLifecycleTransition)

	_, err = done.Resolve(asset.TransferCancelled, "bob", "", now)
	assert.ErrorIs(t, err, asset.ErrInvalidLifecycleTransition)
}

func TestLocation_Equal(t *testing.T) {
	assert.True(t, asset.Location{FacilityID: "f"}.Equal(asset.Location{FacilityID: "f"}))
	assert.False(t, asset.Location{FacilityID: "f", DepartmentID: ptr("d")}.Equal(asset.Location{FacilityID: "f"}))
	assert.True(t, asset.Location{FacilityID: "f", DepartmentID: ptr("d")}.Equal(asset.Location{FacilityID: "f", DepartmentID: ptr("d")}))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, asset.IsNotFound(errors.Join(errors.New("ctx"), asset.ErrAssetNotFound)))
	assert.True(t, asset.IsRetryable(asset.ErrConcurrentModification))
	assert.True(t, asset.IsConflict(asset.ErrAlreadyPosted))
	assert.True(t, asset.IsClientError(&asset.UnsupportedMethodError{Method: asset.MethodSumOfYears}))
	assert.False(t, asset.IsAssetLevel(errors.New("disk full")))
}
