package asset

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER ENTRY - Append-only depreciation history
// =============================================================================

// LedgerEntry records one posted period for one asset. Entries are never
// updated or deleted; corrections would be new entries.
//
// The four amounts are a snapshot at posting time:
//
//	ClosingBookValue        = OpeningBookValue - DepreciationAmount
//	AccumulatedDepreciation = running total after this entry
type LedgerEntry struct {
	ID         string
	AssetID    AssetID
	FacilityID string
	Period     Period
	Method     Method

	OpeningBookValue        decimal.Decimal
	DepreciationAmount      decimal.Decimal
	AccumulatedDepreciation decimal.Decimal
	ClosingBookValue        decimal.Decimal

	RunID string

	// Reserved for a later GL posting step.
	IsPosted bool
	PostedBy *string
	PostedAt *time.Time

	CreatedAt time.Time
}

// NewLedgerEntry snapshots the transition from before to after.
func NewLedgerEntry(id string, before, after *Asset, period Period, runID string, now time.Time) LedgerEntry {
	return LedgerEntry{
		ID:                      id,
		AssetID:                 before.ID,
		FacilityID:              before.FacilityID,
		Period:                  period,
		Method:                  before.Method,
		OpeningBookValue:        before.BookValue,
		DepreciationAmount:      after.AccumulatedDepreciation.Sub(before.AccumulatedDepreciation),
		AccumulatedDepreciation: after.AccumulatedDepreciation,
		ClosingBookValue:        after.BookValue,
		RunID:                   runID,
		CreatedAt:               now,
	}
}

// =============================================================================
// RUN - One depreciation batch for a facility and period
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the audit record of a depreciation batch. A failed run can be
// retried; assets it already posted are skipped the second time.
type Run struct {
	ID          string
	FacilityID  string
	Period      Period
	Status      RunStatus
	TriggeredBy string

	Candidates  int
	Posted      int
	Skipped     int
	Failed      int
	TotalAmount decimal.Decimal
	Error       string

	StartedAt   time.Time
	CompletedAt *time.Time
}
