/*
store.go - Persistence interface for assets, the ledger and workflows

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  AssetStore:       Asset records, compare-and-swap on Version
  LedgerStore:      Depreciation ledger (append-only)
  TransferStore:    Transfer requests, compare-and-swap on status
  MaintenanceStore: Maintenance log (append-only)
  RunStore:         Depreciation run audit records
  Store:            All of the above
  TxStore:          Store plus WithTx for atomic multi-record writes

APPEND-ONLY CONTRACT:
  The ledger and the maintenance log have no Update or Delete methods.
  AppendEntry is unique on (asset, period) and returns ErrAlreadyPosted on
  a duplicate. That uniqueness is what makes depreciation runs idempotent
  under retries and concurrent runs.

OPTIMISTIC CONCURRENCY:
  SaveAsset writes only if the stored Version equals a.Version, then bumps
  Version by one (on the stored row and on a). A mismatch returns
  ErrConcurrentModification.

IMPLEMENTATIONS:
  - store/sqldb: SQLite and PostgreSQL
  - asset/store: In-memory for testing
*/
package asset

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// AssetFilter narrows ListAssets. Zero fields match everything.
type AssetFilter struct {
	FacilityID   string
	Statuses     []Status
	Category     Category
	DepartmentID string

	// Search matches name, asset code or serial number, case-insensitive.
	Search         string
	IncludeDeleted bool
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type AssetStore interface {
	// CreateAsset inserts a new asset at Version 1. Duplicate code or serial
	// returns ErrDuplicateAssetCode / ErrDuplicateSerialNumber.
	CreateAsset(ctx context.Context, a *Asset) error

	// GetAsset returns ErrAssetNotFound for missing or soft deleted assets.
	GetAsset(ctx context.Context, id AssetID) (*Asset, error)

	// SaveAsset is a compare-and-swap on a.Version.
	SaveAsset(ctx context.Context, a *Asset) error

	// ListAssets returns matching assets ordered by asset code.
	ListAssets(ctx context.Context, f AssetFilter) ([]*Asset, error)

	// ListFacilities returns every facility that has at least one live asset.
	ListFacilities(ctx context.Context) ([]string, error)
}

type LedgerStore interface {
	AppendEntry(ctx context.Context, e LedgerEntry) error
	HasEntry(ctx context.Context, id AssetID, p Period) (bool, error)

	// LatestEntry returns (nil, nil) when the asset has no entries.
	LatestEntry(ctx context.Context, id AssetID) (*LedgerEntry, error)

	// ListEntries returns the asset's schedule, (year, month) ascending.
	ListEntries(ctx context.Context, id AssetID) ([]LedgerEntry, error)

	// ListFacilityEntries returns entries posted under a facility for a
	// year, optionally restricted to one month (month 0 = whole year).
	ListFacilityEntries(ctx context.Context, facilityID string, year int, month int) ([]LedgerEntry, error)
}

type TransferStore interface {
	CreateTransfer(ctx context.Context, t *Transfer) error
	GetTransfer(ctx context.Context, id string) (*Transfer, error)

	// SaveTransfer writes t only if the stored status still equals expected.
	// Otherwise it returns ErrConcurrentModification.
	SaveTransfer(ctx context.Context, t *Transfer, expected TransferStatus) error

	// ListTransfers returns an asset's transfers, newest first.
	ListTransfers(ctx context.Context, id AssetID) ([]*Transfer, error)

	// PendingTransfer returns (nil, nil) when none is pending.
	PendingTransfer(ctx context.Context, id AssetID) (*Transfer, error)
}

type MaintenanceStore interface {
	AppendMaintenance(ctx context.Context, r MaintenanceRecord) error

	// ListMaintenance returns an asset's records, newest first.
	ListMaintenance(ctx context.Context, id AssetID) ([]MaintenanceRecord, error)
}

type RunStore interface {
	// SaveRun inserts or replaces a run by ID.
	SaveRun(ctx context.Context, r *Run) error

	// ListRuns returns a facility's runs, newest first.
	ListRuns(ctx context.Context, facilityID string) ([]*Run, error)
}

// Store is the full persistence surface.
type Store interface {
	AssetStore
	LedgerStore
	TransferStore
	MaintenanceStore
	RunStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Clock returns the current time. Services default to time.Now in UTC.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time { return time.Now().UTC() }
