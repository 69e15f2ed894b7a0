package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// LEDGER STORE (asset.LedgerStore interface)
// =============================================================================

// The ledger is append-only: there is no UPDATE or DELETE on ledger_entries.

var entryColumns = []string{
	"id", "asset_id", "facility_id", "period_year", "period_month", "depreciation_method",
	"opening_book_value", "depreciation_amount", "accumulated_depreciation", "closing_book_value",
	"run_id", "is_posted", "posted_by", "posted_at", "created_at",
}

func scanEntry(row scanner) (asset.LedgerEntry, error) {
	var (
		e           asset.LedgerEntry
		year, month int
		postedBy    sql.NullString
		postedAt    sql.NullString
		created     string
	)
	err := row.Scan(
		&e.ID, &e.AssetID, &e.FacilityID, &year, &month, &e.Method,
		&e.OpeningBookValue, &e.DepreciationAmount, &e.AccumulatedDepreciation, &e.ClosingBookValue,
		&e.RunID, &e.IsPosted, &postedBy, &postedAt, &created,
	)
	if err != nil {
		return e, err
	}
	e.Period = asset.Period{Year: year, Month: time.Month(month)}
	e.PostedBy = stringPtr(postedBy)
	if e.PostedAt, err = parseNullTime(postedAt); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return e, err
	}
	return e, nil
}

// AppendEntry inserts e. The (asset, period) unique index turns a second
// posting into ErrAlreadyPosted, including one racing in from another run.
func (s *Store) AppendEntry(ctx context.Context, e asset.LedgerEntry) error {
	_, err := s.exec(ctx, s.sb.Insert("ledger_entries").Columns(entryColumns...).Values(
		e.ID, string(e.AssetID), e.FacilityID, e.Period.Year, int(e.Period.Month), string(e.Method),
		e.OpeningBookValue.String(), e.DepreciationAmount.String(), e.AccumulatedDepreciation.String(), e.ClosingBookValue.String(),
		e.RunID, e.IsPosted, nullString(e.PostedBy), fmtTimePtr(e.PostedAt), fmtTime(e.CreatedAt),
	))
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("asset %s period %s: %w", e.AssetID, e.Period, asset.ErrAlreadyPosted)
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *Store) HasEntry(ctx context.Context, id asset.AssetID, p asset.Period) (bool, error) {
	row, err := s.queryRow(ctx, s.sb.Select("COUNT(*)").From("ledger_entries").Where(sq.Eq{
		"asset_id":     string(id),
		"period_year":  p.Year,
		"period_month": int(p.Month),
	}))
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check ledger entry: %w", err)
	}
	return n > 0, nil
}

func (s *Store) LatestEntry(ctx context.Context, id asset.AssetID) (*asset.LedgerEntry, error) {
	row, err := s.queryRow(ctx, s.sb.Select(entryColumns...).From("ledger_entries").
		Where(sq.Eq{"asset_id": string(id)}).
		OrderBy("period_year DESC", "period_month DESC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest ledger entry: %w", err)
	}
	return &e, nil
}

func (s *Store) ListEntries(ctx context.Context, id asset.AssetID) ([]asset.LedgerEntry, error) {
	return s.queryEntries(ctx, s.sb.Select(entryColumns...).From("ledger_entries").
		Where(sq.Eq{"asset_id": string(id)}).
		OrderBy("period_year", "period_month"))
}

func (s *Store) ListFacilityEntries(ctx context.Context, facilityID string, year, month int) ([]asset.LedgerEntry, error) {
	where := sq.Eq{"facility_id": facilityID, "period_year": year}
	if month != 0 {
		where["period_month"] = month
	}
	return s.queryEntries(ctx, s.sb.Select(entryColumns...).From("ledger_entries").
		Where(where).
		OrderBy("period_year", "period_month", "asset_id"))
}

func (s *Store) queryEntries(ctx context.Context, b sq.SelectBuilder) ([]asset.LedgerEntry, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var out []asset.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RUN STORE (asset.RunStore interface)
// =============================================================================

var runColumns = []string{
	"id", "facility_id", "period_year", "period_month", "status", "triggered_by",
	"candidates", "posted", "skipped", "failed", "total_amount", "error",
	"started_at", "completed_at",
}

// SaveRun upserts r by ID. ON CONFLICT works on both SQLite and PostgreSQL.
func (s *Store) SaveRun(ctx context.Context, r *asset.Run) error {
	_, err := s.exec(ctx, s.sb.Insert("depreciation_runs").Columns(runColumns...).Values(
		r.ID, r.FacilityID, r.Period.Year, int(r.Period.Month), string(r.Status), r.TriggeredBy,
		r.Candidates, r.Posted, r.Skipped, r.Failed, r.TotalAmount.String(), r.Error,
		fmtTime(r.StartedAt), fmtTimePtr(r.CompletedAt),
	).Suffix(`ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		candidates = excluded.candidates,
		posted = excluded.posted,
		skipped = excluded.skipped,
		failed = excluded.failed,
		total_amount = excluded.total_amount,
		error = excluded.error,
		completed_at = excluded.completed_at`))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, facilityID string) ([]*asset.Run, error) {
	rows, err := s.query(ctx, s.sb.Select(runColumns...).From("depreciation_runs").
		Where(sq.Eq{"facility_id": facilityID}).
		OrderBy("started_at DESC", "id"))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*asset.Run
	for rows.Next() {
		var (
			r           asset.Run
			year, month int
			started     string
			completed   sql.NullString
		)
		err := rows.Scan(
			&r.ID, &r.FacilityID, &year, &month, &r.Status, &r.TriggeredBy,
			&r.Candidates, &r.Posted, &r.Skipped, &r.Failed, &r.TotalAmount, &r.Error,
			&started, &completed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Period = asset.Period{Year: year, Month: time.Month(month)}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.CompletedAt, err = parseNullTime(completed); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
