/*
scheduler.go - Automated monthly depreciation scheduler

PURPOSE:
  Periodically posts depreciation for the last closed month of every
  facility that has live assets.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The target period is the month before the clock's current month
  - Periods already posted are skipped by the engine, so repeated ticks
    are no-ops
  - A facility whose run lock is held elsewhere is skipped until next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewDepreciationScheduler(store, engine, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunDepreciation endpoint (manual run)
  - depreciation/engine.go: Engine.Run
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/depreciation"
	"github.com/warp/asset-engine/logger"
)

// FacilityLister is the slice of the store the scheduler needs.
type FacilityLister interface {
	ListFacilities(ctx context.Context) ([]string, error)
}

// DepreciationScheduler handles automated month-end depreciation.
type DepreciationScheduler struct {
	Facilities    FacilityLister
	Engine        *depreciation.Engine
	CheckInterval time.Duration
	Enabled       bool
	Clock         asset.Clock

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDepreciationScheduler creates a new scheduler.
func NewDepreciationScheduler(facilities FacilityLister, engine *depreciation.Engine, log *zap.Logger) *DepreciationScheduler {
	return &DepreciationScheduler{
		Facilities:    facilities,
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Clock:         asset.SystemClock,
		log:           logger.OrNop(log).Named("scheduler"),
	}
}

// Start begins the scheduler.
func (ds *DepreciationScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		ds.log.Info("disabled, not starting")
		return
	}
	if ds.ticker != nil {
		return
	}

	ds.ticker = time.NewTicker(ds.CheckInterval)
	ds.stop = make(chan struct{})
	ds.wg.Add(1)

	go ds.run()

	ds.log.Info("started", zap.Duration("interval", ds.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (ds *DepreciationScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.ticker = nil
		ds.log.Info("stopped")
	}
}

func (ds *DepreciationScheduler) run() {
	defer ds.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-ds.stop
		cancel()
	}()

	// Run immediately on start
	ds.checkAndProcess(ctx)

	for {
		select {
		case <-ds.ticker.C:
			ds.checkAndProcess(ctx)
		case <-ds.stop:
			return
		}
	}
}

func (ds *DepreciationScheduler) checkAndProcess(ctx context.Context) []*depreciation.RunResult {
	period := asset.PeriodOf(ds.Clock()).Previous()
	log := ds.log.With(zap.Stringer("period", period))

	facilities, err := ds.Facilities.ListFacilities(ctx)
	if err != nil {
		log.Error("listing facilities", zap.Error(err))
		return nil
	}

	var (
		results            []*depreciation.RunResult
		posted, busy, errs int
	)
	for _, facilityID := range facilities {
		if ctx.Err() != nil {
			break
		}
		result, err := ds.Engine.Run(ctx, facilityID, period, "scheduler")
		switch {
		case errors.Is(err, asset.ErrRunInProgress):
			busy++
			continue
		case err != nil:
			errs++
			log.Error("depreciation run failed", zap.String("facility_id", facilityID), zap.Error(err))
		}
		if result != nil {
			results = append(results, result)
			posted += len(result.Posted)
		}
	}

	if posted > 0 || busy > 0 || errs > 0 {
		log.Info("check completed",
			zap.Int("facilities", len(facilities)),
			zap.Int("posted", posted),
			zap.Int("busy", busy),
			zap.Int("errors", errs))
	}
	return results
}

// RunNow triggers an immediate check and returns the results of every run
// it started.
func (ds *DepreciationScheduler) RunNow(ctx context.Context) []*depreciation.RunResult {
	return ds.checkAndProcess(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ds *DepreciationScheduler) GetNextRunTime() time.Time {
	return ds.Clock().Add(ds.CheckInterval)
}
