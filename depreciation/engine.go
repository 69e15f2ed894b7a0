/*
engine.go - Depreciation run orchestrator and read models

PURPOSE:
  Engine.Run posts one period of depreciation for every active asset of a
  facility. It is safe to call repeatedly: the ledger's unique
  (asset, period) key turns a repeat into a skip, so a failed or partial run
  is resumed simply by running it again.

RUN PROCESS:
  1. Obtain lock depreciation:<facility>:<YYYY-MM> (ErrRunInProgress if held)
  2. Save a running Run record
  3. List candidates: facility, status active, not deleted
  4. Post each candidate in its own transaction on a bounded worker pool:
       re-read asset        skip if deleted, moved or no longer active
       ledger check         skip if this period or a later one is posted
       start date check     skip if the period begins before the start date
       salvage check        skip if fully depreciated
       compute + clamp      per-asset failure if the method is unsupported
       append entry         duplicate from a racing run is a skip
       save asset (CAS)     retried on concurrent modification
  5. Per-asset errors are recorded and the batch continues. Store errors
     abort the run and mark it failed; whatever was posted stays posted.
  6. Save the completed Run with counts

CONCURRENCY:
  Runs for different facilities or periods share nothing but the store and
  proceed independently. Each asset's read-compute-write happens inside one
  store transaction with a version check, so an asset mutated mid-run
  (transfer, disposal, patch) is either seen before or retried after.

SEE ALSO:
  - calculator.go: Compute / Clamp
  - lock/: Locker implementations
*/
package depreciation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/lock"
	"github.com/warp/asset-engine/logger"
)

// =============================================================================
// ENGINE
// =============================================================================

const (
	DefaultWorkers = 4
	DefaultLockTTL = 5 * time.Minute

	// maxAttempts bounds retries of one asset after a version conflict.
	maxAttempts = 3
)

// Config tunes the engine. Zero values take defaults.
type Config struct {
	Workers int
	LockTTL time.Duration
	Clock   asset.Clock
	NewID   func() string
}

type Engine struct {
	store   asset.TxStore
	locker  lock.Locker
	log     *zap.Logger
	clock   asset.Clock
	newID   func() string
	workers int
	lockTTL time.Duration
}

func NewEngine(store asset.TxStore, locker lock.Locker, cfg Config, log *zap.Logger) *Engine {
	e := &Engine{
		store:   store,
		locker:  locker,
		log:     logger.OrNop(log).Named("depreciation"),
		clock:   cfg.Clock,
		newID:   cfg.NewID,
		workers: cfg.Workers,
		lockTTL: cfg.LockTTL,
	}
	if e.locker == nil {
		e.locker = lock.NewLocal()
	}
	if e.clock == nil {
		e.clock = asset.SystemClock
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.lockTTL <= 0 {
		e.lockTTL = DefaultLockTTL
	}
	return e
}

// =============================================================================
// RUN RESULT
// =============================================================================

type SkipReason string

const (
	SkipAlreadyPosted     SkipReason = "already_posted"
	SkipLaterPeriodPosted SkipReason = "later_period_posted"
	SkipBeforeStartDate   SkipReason = "before_start_date"
	SkipFullyDepreciated  SkipReason = "fully_depreciated"
	SkipZeroAmount        SkipReason = "zero_amount"
	SkipNotActive         SkipReason = "not_active"
	SkipMoved             SkipReason = "moved_facility"
	SkipDeleted           SkipReason = "deleted"
)

type Skipped struct {
	AssetID   asset.AssetID
	AssetCode string
	Reason    SkipReason
}

type Failed struct {
	AssetID   asset.AssetID
	AssetCode string
	Err       error
}

// RunResult lists what a run did with every candidate. Posted is ordered by
// asset code.
type RunResult struct {
	Run     *asset.Run
	Posted  []asset.LedgerEntry
	Skipped []Skipped
	Failed  []Failed
}

// skipError carries a skip decision out of a store transaction, which rolls
// the transaction back without surfacing as a failure.
type skipError struct {
	reason SkipReason
}

func (e *skipError) Error() string { return "skip: " + string(e.reason) }

func skip(r SkipReason) error { return &skipError{reason: r} }

// =============================================================================
// RUN
// =============================================================================

// LockKey is the mutual exclusion key for a facility and period.
func LockKey(facilityID string, period asset.Period) string {
	return fmt.Sprintf("depreciation:%s:%s", facilityID, period)
}

// Run posts period for every active asset of facilityID.
//
// The returned error is non-nil only for run-level problems: bad input,
// another run holding the lock, or a store failure. On a store failure the
// partial result is returned alongside the error.
func (e *Engine) Run(ctx context.Context, facilityID string, period asset.Period, triggeredBy string) (*RunResult, error) {
	if facilityID == "" {
		return nil, &asset.ValidationError{Field: "facility_id", Message: "required"}
	}
	if _, err := asset.NewPeriod(period.Year, int(period.Month)); err != nil {
		return nil, err
	}

	key := LockKey(facilityID, period)
	held, err := e.locker.Obtain(ctx, key, e.lockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, asset.ErrRunInProgress)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain run lock: %w", err)
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn("release run lock", zap.String("key", key), zap.Error(err))
		}
	}()

	run := &asset.Run{
		ID:          e.newID(),
		FacilityID:  facilityID,
		Period:      period,
		Status:      asset.RunRunning,
		TriggeredBy: triggeredBy,
		TotalAmount: decimal.Zero,
		StartedAt:   e.clock(),
	}
	log := e.log.With(
		zap.String("run_id", run.ID),
		zap.String("facility_id", facilityID),
		zap.String("period", period.String()),
	)
	if err := e.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	candidates, err := e.store.ListAssets(ctx, asset.AssetFilter{
		FacilityID: facilityID,
		Statuses:   []asset.Status{asset.StatusActive},
	})
	if err != nil {
		return e.abort(ctx, log, &RunResult{Run: run}, fmt.Errorf("list candidates: %w", err))
	}
	run.Candidates = len(candidates)
	log.Info("depreciation run started", zap.Int("candidates", run.Candidates))

	result := &RunResult{Run: run}
	codes := make(map[asset.AssetID]string, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, c := range candidates {
		c := c
		if gctx.Err() != nil {
			break
		}
		codes[c.ID] = c.AssetCode
		g.Go(func() error {
			entry, reason, err := e.postAsset(gctx, c.ID, facilityID, period, run.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && entry != nil:
				result.Posted = append(result.Posted, *entry)
			case err == nil:
				result.Skipped = append(result.Skipped, Skipped{AssetID: c.ID, AssetCode: c.AssetCode, Reason: reason})
			case asset.IsAssetLevel(err):
				log.Warn("asset not depreciated", zap.String("asset_id", c.ID.String()), zap.Error(err))
				result.Failed = append(result.Failed, Failed{AssetID: c.ID, AssetCode: c.AssetCode, Err: err})
			default:
				return fmt.Errorf("asset %s: %w", c.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sortResult(result, codes)
		return e.abort(ctx, log, result, err)
	}
	sortResult(result, codes)

	e.tally(result)
	completed := e.clock()
	run.Status = asset.RunCompleted
	run.CompletedAt = &completed
	if err := e.store.SaveRun(ctx, run); err != nil {
		return result, fmt.Errorf("save run: %w", err)
	}

	log.Info("depreciation run completed",
		zap.Int("posted", run.Posted),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed),
		zap.String("total", run.TotalAmount.StringFixed(asset.MoneyPlaces)),
	)
	return result, nil
}

// abort marks the run failed. The run record is written with a context
// that survives cancellation of ctx.
func (e *Engine) abort(ctx context.Context, log *zap.Logger, result *RunResult, cause error) (*RunResult, error) {
	e.tally(result)
	completed := e.clock()
	result.Run.Status = asset.RunFailed
	result.Run.Error = cause.Error()
	result.Run.CompletedAt = &completed
	if err := e.store.SaveRun(context.WithoutCancel(ctx), result.Run); err != nil {
		log.Error("save failed run", zap.Error(err))
	}
	log.Error("depreciation run aborted", zap.Error(cause), zap.Int("posted", result.Run.Posted))
	return result, fmt.Errorf("depreciation run %s: %w", result.Run.ID, cause)
}

func (e *Engine) tally(result *RunResult) {
	total := decimal.Zero
	for _, p := range result.Posted {
		total = total.Add(p.DepreciationAmount)
	}
	result.Run.Posted = len(result.Posted)
	result.Run.Skipped = len(result.Skipped)
	result.Run.Failed = len(result.Failed)
	result.Run.TotalAmount = total
}

func sortResult(r *RunResult, codes map[asset.AssetID]string) {
	sort.Slice(r.Posted, func(i, j int) bool {
		return codes[r.Posted[i].AssetID] < codes[r.Posted[j].AssetID]
	})
	sort.Slice(r.Skipped, func(i, j int) bool { return r.Skipped[i].AssetCode < r.Skipped[j].AssetCode })
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].AssetCode < r.Failed[j].AssetCode })
}

// postAsset posts one asset, retrying version conflicts. It returns either
// an entry, a skip reason, or an error.
func (e *Engine) postAsset(ctx context.Context, id asset.AssetID, facilityID string, period asset.Period, runID string) (*asset.LedgerEntry, SkipReason, error) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var entry *asset.LedgerEntry
		entry, err = e.tryPost(ctx, id, facilityID, period, runID)

		var se *skipError
		if errors.As(err, &se) {
			return nil, se.reason, nil
		}
		if errors.Is(err, asset.ErrAlreadyPosted) {
			return nil, SkipAlreadyPosted, nil
		}
		if !errors.Is(err, asset.ErrConcurrentModification) {
			return entry, "", err
		}
		e.log.Debug("version conflict, retrying",
			zap.String("asset_id", id.String()), zap.Int("attempt", attempt))
	}
	return nil, "", err
}

func (e *Engine) tryPost(ctx context.Context, id asset.AssetID, facilityID string, period asset.Period, runID string) (*asset.LedgerEntry, error) {
	var posted *asset.LedgerEntry
	err := e.store.WithTx(ctx, func(s asset.Store) error {
		a, err := s.GetAsset(ctx, id)
		if errors.Is(err, asset.ErrAssetNotFound) {
			return skip(SkipDeleted)
		}
		if err != nil {
			return err
		}
		if a.FacilityID != facilityID {
			return skip(SkipMoved)
		}
		if a.Status != asset.StatusActive {
			return skip(SkipNotActive)
		}

		has, err := s.HasEntry(ctx, id, period)
		if err != nil {
			return err
		}
		if has {
			return skip(SkipAlreadyPosted)
		}
		latest, err := s.LatestEntry(ctx, id)
		if err != nil {
			return err
		}
		if latest != nil && latest.Period.After(period) {
			return skip(SkipLaterPeriodPosted)
		}
		if period.StartsBefore(a.DepreciationStartDate) {
			return skip(SkipBeforeStartDate)
		}
		if a.FullyDepreciated() {
			return skip(SkipFullyDepreciated)
		}

		amount, err := Next(a)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return skip(SkipZeroAmount)
		}

		now := e.clock()
		next, err := a.Depreciate(amount, now)
		if err != nil {
			return err
		}
		entry := asset.NewLedgerEntry(e.newID(), a, next, period, runID, now)
		if err := s.AppendEntry(ctx, entry); err != nil {
			return err
		}
		if err := s.SaveAsset(ctx, next); err != nil {
			return err
		}
		posted = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// =============================================================================
// READ MODELS
// =============================================================================

// Schedule returns the posted ledger for an asset, oldest first.
func (e *Engine) Schedule(ctx context.Context, id asset.AssetID) ([]asset.LedgerEntry, error) {
	if _, err := e.store.GetAsset(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListEntries(ctx, id)
}

// Projection forecasts n periods for an asset. With a zero from, it starts
// after the latest posted period.
func (e *Engine) Projection(ctx context.Context, id asset.AssetID, from asset.Period, n int) ([]ProjectedPeriod, error) {
	a, err := e.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		latest, err := e.store.LatestEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			from = latest.Period.Next()
		} else {
			from = FirstPeriod(a)
		}
	}
	return Project(a, from, n)
}

// Runs lists a facility's run history, newest first.
func (e *Engine) Runs(ctx context.Context, facilityID string) ([]*asset.Run, error) {
	return e.store.ListRuns(ctx, facilityID)
}
