package depreciation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/asset/store"
	"github.com/warp/asset-engine/depreciation"
	"github.com/warp/asset-engine/lock"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newEngine(t *testing.T, s asset.TxStore, assets ...*asset.Asset) *depreciation.Engine {
	t.Helper()
	ctx := context.Background()
	for _, a := range assets {
		require.NoError(t, s.CreateAsset(ctx, a))
	}
	return depreciation.NewEngine(s, lock.NewLocal(), depreciation.Config{
		Workers: 2,
		Clock:   func() time.Time { return now },
	}, nil)
}

func period(year, month int) asset.Period { return asset.MustPeriod(year, month) }

// flakyStore injects errors into the transactional view.
type flakyStore struct {
	*store.Memory
	saveAsset func(a *asset.Asset) error
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(asset.Store) error) error {
	return f.Memory.WithTx(ctx, func(s asset.Store) error {
		return fn(&flakyView{Store: s, parent: f})
	})
}

type flakyView struct {
	asset.Store
	parent *flakyStore
}

func (v *flakyView) SaveAsset(ctx context.Context, a *asset.Asset) error {
	if v.parent.saveAsset != nil {
		if err := v.parent.saveAsset(a); err != nil {
			return err
		}
	}
	return v.Store.SaveAsset(ctx, a)
}

// =============================================================================
// POSTING
// =============================================================================

func TestRun_StraightLine_TwelvePeriodsThenSkip(t *testing.T) {
	// GIVEN: 12000 straight line over 12 months, no salvage
	// WHEN: Running every month of 2025, then January 2026
	// THEN: 1000 per month, book value reaches 0, the 13th run skips
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "SL-1"))

	for m := 1; m <= 12; m++ {
		res, err := e.Run(ctx, "fac-1", period(2025, m), "test")
		require.NoError(t, err)
		require.Len(t, res.Posted, 1, "month %d", m)
		money(t, "1000", res.Posted[0].DepreciationAmount)
	}

	a, err := mem.GetAsset(ctx, "a-1")
	require.NoError(t, err)
	money(t, "0", a.BookValue)
	money(t, "12000", a.AccumulatedDepreciation)

	res, err := e.Run(ctx, "fac-1", period(2026, 1), "test")
	require.NoError(t, err)
	assert.Empty(t, res.Posted)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, depreciation.SkipFullyDepreciated, res.Skipped[0].Reason)

	schedule, err := e.Schedule(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, schedule, 12)
	money(t, "12000", schedule[0].OpeningBookValue)
	money(t, "11000", schedule[0].ClosingBookValue)
	money(t, "0", schedule[11].ClosingBookValue)
}

func TestRun_StraightLine_UnevenBaseEndsOnLife(t *testing.T) {
	// GIVEN: 1000 straight line over 3 months
	// WHEN: Running January through April 2025
	// THEN: Three postings close at 0 and April skips as fully depreciated
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "SL-1", withCost("1000"), withLife(3)))

	for m, want := range []string{"333.33", "333.33", "333.34"} {
		res, err := e.Run(ctx, "fac-1", period(2025, m+1), "test")
		require.NoError(t, err)
		require.Len(t, res.Posted, 1, "month %d", m+1)
		money(t, want, res.Posted[0].DepreciationAmount)
	}

	res, err := e.Run(ctx, "fac-1", period(2025, 4), "test")
	require.NoError(t, err)
	assert.Empty(t, res.Posted)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, depreciation.SkipFullyDepreciated, res.Skipped[0].Reason)

	schedule, err := e.Schedule(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, schedule, 3)
	money(t, "0", schedule[2].ClosingBookValue)
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "SL-1"))

	first, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	require.Len(t, first.Posted, 1)

	second, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	assert.Empty(t, second.Posted)
	require.Len(t, second.Skipped, 1)
	assert.Equal(t, depreciation.SkipAlreadyPosted, second.Skipped[0].Reason)

	entries, err := mem.ListEntries(ctx, "a-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	a, err := mem.GetAsset(ctx, "a-1")
	require.NoError(t, err)
	money(t, "11000", a.BookValue)
}

func TestRun_DecliningBalance(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "DB-1", withCost("10000"), withLife(60),
		withMethod(asset.MethodDecliningBalance), withRate("20")))

	jan, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	require.Len(t, jan.Posted, 1)
	money(t, "166.67", jan.Posted[0].DepreciationAmount)
	money(t, "9833.33", jan.Posted[0].ClosingBookValue)

	feb, err := e.Run(ctx, "fac-1", period(2025, 2), "test")
	require.NoError(t, err)
	require.Len(t, feb.Posted, 1)
	money(t, "163.89", feb.Posted[0].DepreciationAmount)
	money(t, "9833.33", feb.Posted[0].OpeningBookValue)
}

func TestRun_LedgerSnapshotConsistent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "SL-1", withSalvage("500"), withLife(7)))

	for m := 1; m <= 9; m++ {
		_, err := e.Run(ctx, "fac-1", period(2025, m), "test")
		require.NoError(t, err)
	}

	entries, err := mem.ListEntries(ctx, "a-1")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, en := range entries {
		assert.True(t, en.ClosingBookValue.Equal(en.OpeningBookValue.Sub(en.DepreciationAmount)))
		assert.True(t, en.ClosingBookValue.GreaterThanOrEqual(asset.MustMoney("500")))
		assert.False(t, en.IsPosted)
	}
	a, err := mem.GetAsset(ctx, "a-1")
	require.NoError(t, err)
	money(t, "500", a.BookValue)
}

// =============================================================================
// SKIPS AND FAILURES
// =============================================================================

func TestRun_UnsupportedMethodDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem,
		newAsset(t, "a-1", "A-001"),
		newAsset(t, "a-2", "B-002", withMethod(asset.MethodSumOfYears)),
		newAsset(t, "a-3", "C-003", withMethod(asset.MethodUnitsOfProduction)),
	)

	res, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)

	require.Len(t, res.Posted, 1)
	assert.Equal(t, asset.AssetID("a-1"), res.Posted[0].AssetID)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "B-002", res.Failed[0].AssetCode)
	assert.ErrorIs(t, res.Failed[0].Err, asset.ErrUnsupportedMethod)
	assert.Equal(t, asset.RunCompleted, res.Run.Status)
	assert.Equal(t, 3, res.Run.Candidates)
	assert.Equal(t, 2, res.Run.Failed)

	b, err := mem.GetAsset(ctx, "a-2")
	require.NoError(t, err)
	money(t, "12000", b.BookValue)
}

func TestRun_DisposedAndInactiveExcluded(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "A-001"), newAsset(t, "a-2", "B-002"))

	a, err := mem.GetAsset(ctx, "a-1")
	require.NoError(t, err)
	a, err = a.Dispose(asset.StatusDisposed, now, asset.MustMoney("100"), "broken", now)
	require.NoError(t, err)
	require.NoError(t, mem.SaveAsset(ctx, a))

	b, err := mem.GetAsset(ctx, "a-2")
	require.NoError(t, err)
	b.Status = asset.StatusUnderMaintenance
	require.NoError(t, mem.SaveAsset(ctx, b))

	res, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Run.Candidates)
	assert.Empty(t, res.Posted)

	has, err := mem.HasEntry(ctx, "a-1", period(2025, 1))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRun_BeforeStartDateSkipped(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "A-001",
		withStart(time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC))))

	mar, err := e.Run(ctx, "fac-1", period(2025, 3), "test")
	require.NoError(t, err)
	require.Len(t, mar.Skipped, 1)
	assert.Equal(t, depreciation.SkipBeforeStartDate, mar.Skipped[0].Reason)

	apr, err := e.Run(ctx, "fac-1", period(2025, 4), "test")
	require.NoError(t, err)
	assert.Len(t, apr.Posted, 1)
}

func TestRun_EarlierPeriodAfterLaterSkipped(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "A-001"))

	_, err := e.Run(ctx, "fac-1", period(2025, 3), "test")
	require.NoError(t, err)

	feb, err := e.Run(ctx, "fac-1", period(2025, 2), "test")
	require.NoError(t, err)
	require.Len(t, feb.Skipped, 1)
	assert.Equal(t, depreciation.SkipLaterPeriodPosted, feb.Skipped[0].Reason)
}

func TestRun_OtherFacilityUntouched(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "A-001"), newAsset(t, "a-2", "A-001", withFacility("fac-2")))

	res, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	require.Len(t, res.Posted, 1)

	other, err := mem.GetAsset(ctx, "a-2")
	require.NoError(t, err)
	money(t, "12000", other.BookValue)
}

func TestRun_InvalidInput(t *testing.T) {
	e := newEngine(t, store.NewMemory())

	_, err := e.Run(context.Background(), "", period(2025, 1), "test")
	assert.ErrorIs(t, err, asset.ErrInvalidInput)

	_, err = e.Run(context.Background(), "fac-1", asset.Period{Year: 2025, Month: 13}, "test")
	assert.ErrorIs(t, err, asset.ErrInvalidInput)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRun_ConcurrentSamePeriod_PostsOnce(t *testing.T) {
	// GIVEN: Ten assets and eight simultaneous runs of the same period
	// WHEN: All runs finish
	// THEN: Every asset has exactly one entry; losers saw ErrRunInProgress
	ctx := context.Background()
	mem := store.NewMemory()
	var assets []*asset.Asset
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		assets = append(assets, newAsset(t, "id-"+id, "CODE-"+id))
	}
	e := newEngine(t, mem, assets...)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Run(ctx, "fac-1", period(2025, 1), "test")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, asset.ErrRunInProgress)
		}
	}
	for _, a := range assets {
		entries, err := mem.ListEntries(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "asset %s", a.ID)

		got, err := mem.GetAsset(ctx, a.ID)
		require.NoError(t, err)
		money(t, "11000", got.BookValue)
	}
}

func TestRun_ConcurrentFacilitiesIndependent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "A-001"), newAsset(t, "a-2", "A-001", withFacility("fac-2")))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, fac := range []string{"fac-1", "fac-2"} {
		wg.Add(1)
		go func(i int, fac string) {
			defer wg.Done()
			_, errs[i] = e.Run(ctx, fac, period(2025, 1), "test")
		}(i, fac)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestRun_LockHeldReturnsRunInProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := lock.NewMockLocker(ctrl)
	locker.EXPECT().
		Obtain(gomock.Any(), "depreciation:fac-1:2025-01", depreciation.DefaultLockTTL).
		Return(nil, lock.ErrNotObtained)

	mem := store.NewMemory()
	e := depreciation.NewEngine(mem, locker, depreciation.Config{}, nil)

	_, err := e.Run(context.Background(), "fac-1", period(2025, 1), "test")
	assert.ErrorIs(t, err, asset.ErrRunInProgress)
	assert.True(t, asset.IsRetryable(err))

	runs, err := mem.ListRuns(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRun_ReleasesLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	held := lock.NewMockLock(ctrl)
	held.EXPECT().Release(gomock.Any()).Return(nil).Times(1)
	locker := lock.NewMockLocker(ctrl)
	locker.EXPECT().Obtain(gomock.Any(), gomock.Any(), 30*time.Second).Return(held, nil)

	mem := store.NewMemory()
	require.NoError(t, mem.CreateAsset(context.Background(), newAsset(t, "a-1", "A-001")))
	e := depreciation.NewEngine(mem, locker, depreciation.Config{LockTTL: 30 * time.Second}, nil)

	res, err := e.Run(context.Background(), "fac-1", period(2025, 1), "scheduler")
	require.NoError(t, err)
	assert.Equal(t, "scheduler", res.Run.TriggeredBy)
}

func TestRun_VersionConflictRetried(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	conflicts := 0
	fs := &flakyStore{Memory: mem, saveAsset: func(*asset.Asset) error {
		if conflicts < 2 {
			conflicts++
			return asset.ErrConcurrentModification
		}
		return nil
	}}
	e := newEngine(t, fs, newAsset(t, "a-1", "A-001"))

	res, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	require.Len(t, res.Posted, 1)
	assert.Equal(t, 2, conflicts)

	entries, err := mem.ListEntries(ctx, "a-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_PersistentConflictRecordedAsFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	fs := &flakyStore{Memory: mem, saveAsset: func(*asset.Asset) error {
		return asset.ErrConcurrentModification
	}}
	e := newEngine(t, fs, newAsset(t, "a-1", "A-001"))

	res, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, asset.ErrConcurrentModification)

	// The entry was rolled back with the failed asset write
	has, err := mem.HasEntry(ctx, "a-1", period(2025, 1))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRun_PersistenceFailureAbortsAndResumes(t *testing.T) {
	// GIVEN: The store fails writing the second asset
	// WHEN: Running, then running again once the store recovers
	// THEN: The first run fails with the first asset posted; the rerun
	//       skips it and posts the second
	ctx := context.Background()
	mem := store.NewMemory()
	errDisk := errors.New("disk I/O error")
	fs := &flakyStore{Memory: mem, saveAsset: func(a *asset.Asset) error {
		if a.ID == "a-2" {
			return errDisk
		}
		return nil
	}}
	for _, a := range []*asset.Asset{newAsset(t, "a-1", "A-001"), newAsset(t, "a-2", "B-002")} {
		require.NoError(t, mem.CreateAsset(ctx, a))
	}
	e := depreciation.NewEngine(fs, lock.NewLocal(), depreciation.Config{Workers: 1}, nil)

	res, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDisk)
	require.NotNil(t, res)
	assert.Equal(t, asset.RunFailed, res.Run.Status)
	assert.Len(t, res.Posted, 1)

	runs, err := e.Runs(ctx, "fac-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, asset.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "disk I/O error")

	fs.saveAsset = nil
	res, err = e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	require.Len(t, res.Posted, 1)
	assert.Equal(t, asset.AssetID("a-2"), res.Posted[0].AssetID)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, depreciation.SkipAlreadyPosted, res.Skipped[0].Reason)
}

// =============================================================================
// READ MODELS
// =============================================================================

func TestReport_AggregatesByCategory(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem,
		newAsset(t, "a-1", "A-001", withCategory(asset.CategoryImagingEquipment)),
		newAsset(t, "a-2", "A-002", withCategory(asset.CategoryImagingEquipment), withCost("6000")),
		newAsset(t, "a-3", "F-001", withCategory(asset.CategoryFurniture), withCost("1200")),
		newAsset(t, "a-4", "X-001", withFacility("fac-2")),
	)
	_, err := e.Run(ctx, "fac-1", period(2025, 1), "test")
	require.NoError(t, err)
	_, err = e.Run(ctx, "fac-1", period(2025, 2), "test")
	require.NoError(t, err)
	_, err = e.Run(ctx, "fac-2", period(2025, 1), "test")
	require.NoError(t, err)

	feb := 2
	r, err := e.Report(ctx, "fac-1", 2025, &feb)
	require.NoError(t, err)

	assert.Equal(t, 3, r.TotalAssets)
	money(t, "19200", r.TotalCost)
	money(t, "3200", r.TotalAccumulatedDepreciation)
	money(t, "16000", r.TotalBookValue)
	money(t, "1600", r.PeriodDepreciation)

	require.Len(t, r.ByCategory, 2)
	assert.Equal(t, asset.CategoryFurniture, r.ByCategory[0].Category)
	assert.Equal(t, 1, r.ByCategory[0].Count)
	assert.Equal(t, asset.CategoryImagingEquipment, r.ByCategory[1].Category)
	assert.Equal(t, 2, r.ByCategory[1].Count)
	money(t, "15000", r.ByCategory[1].BookValue)

	year, err := e.Report(ctx, "fac-1", 2025, nil)
	require.NoError(t, err)
	money(t, "3200", year.PeriodDepreciation)
}

func TestSchedule_MissingAsset(t *testing.T) {
	e := newEngine(t, store.NewMemory())

	_, err := e.Schedule(context.Background(), "nope")
	assert.True(t, asset.IsNotFound(err))
}

func TestProjection_ContinuesAfterLatestEntry(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e := newEngine(t, mem, newAsset(t, "a-1", "A-001"))
	for m := 1; m <= 3; m++ {
		_, err := e.Run(ctx, "fac-1", period(2025, m), "test")
		require.NoError(t, err)
	}

	rows, err := e.Projection(ctx, "a-1", asset.Period{}, 24)
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, "2025-04", rows[0].Period.String())
	money(t, "9000", rows[0].OpeningBookValue)
}
