package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// TRANSFER STORE (asset.TransferStore interface)
// =============================================================================

var transferColumns = []string{
	"id", "asset_id", "from_facility_id", "from_department_id", "to_facility_id", "to_department_id",
	"reason", "transfer_date", "transferred_by", "status",
	"received_by", "received_date", "resolved_by", "resolved_at", "resolution_note",
	"created_at", "updated_at",
}

func transferValues(t *asset.Transfer) []any {
	return []any{
		t.ID, string(t.AssetID), t.From.FacilityID, nullString(t.From.DepartmentID), t.To.FacilityID, nullString(t.To.DepartmentID),
		t.Reason, fmtTime(t.TransferDate), t.TransferredBy, string(t.Status),
		nullString(t.ReceivedBy), fmtTimePtr(t.ReceivedDate), nullString(t.ResolvedBy), fmtTimePtr(t.ResolvedAt), t.ResolutionNote,
		fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt),
	}
}

func scanTransfer(row scanner) (*asset.Transfer, error) {
	var (
		t                      asset.Transfer
		fromDept, toDept       sql.NullString
		receivedBy, resolvedBy sql.NullString
		received, resolved     sql.NullString
		date, created, updated string
	)
	err := row.Scan(
		&t.ID, &t.AssetID, &t.From.FacilityID, &fromDept, &t.To.FacilityID, &toDept,
		&t.Reason, &date, &t.TransferredBy, &t.Status,
		&receivedBy, &received, &resolvedBy, &resolved, &t.ResolutionNote,
		&created, &updated,
	)
	if err != nil {
		return nil, err
	}
	t.From.DepartmentID = stringPtr(fromDept)
	t.To.DepartmentID = stringPtr(toDept)
	t.ReceivedBy = stringPtr(receivedBy)
	t.ResolvedBy = stringPtr(resolvedBy)
	if t.TransferDate, err = parseTime(date); err != nil {
		return nil, err
	}
	if t.ReceivedDate, err = parseNullTime(received); err != nil {
		return nil, err
	}
	if t.ResolvedAt, err = parseNullTime(resolved); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransfer inserts t. A second pending transfer for the same asset
// violates idx_transfers_one_pending.
func (s *Store) CreateTransfer(ctx context.Context, t *asset.Transfer) error {
	_, err := s.exec(ctx, s.sb.Insert("transfers").Columns(transferColumns...).Values(transferValues(t)...))
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("asset %s already has a pending transfer: %w", t.AssetID, asset.ErrInvalidLifecycleTransition)
		}
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, id string) (*asset.Transfer, error) {
	row, err := s.queryRow(ctx, s.sb.Select(transferColumns...).From("transfers").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transfer %s: %w", id, asset.ErrTransferNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transfer %s: %w", id, err)
	}
	return t, nil
}

// SaveTransfer writes t if the stored status still equals expected.
func (s *Store) SaveTransfer(ctx context.Context, t *asset.Transfer, expected asset.TransferStatus) error {
	values := transferValues(t)
	set := make(map[string]any, len(transferColumns)-1)
	for i, col := range transferColumns[1:] {
		set[col] = values[i+1]
	}
	res, err := s.exec(ctx, s.sb.Update("transfers").SetMap(set).
		Where(sq.Eq{"id": t.ID, "status": string(expected)}))
	if err != nil {
		return fmt.Errorf("failed to update transfer %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update transfer %s: %w", t.ID, err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, "transfers", t.ID,
			fmt.Errorf("transfer %s: %w", t.ID, asset.ErrTransferNotFound),
			fmt.Errorf("transfer %s is no longer %s: %w", t.ID, expected, asset.ErrConcurrentModification))
	}
	return nil
}

func (s *Store) ListTransfers(ctx context.Context, id asset.AssetID) ([]*asset.Transfer, error) {
	rows, err := s.query(ctx, s.sb.Select(transferColumns...).From("transfers").
		Where(sq.Eq{"asset_id": string(id)}).
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var out []*asset.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) PendingTransfer(ctx context.Context, id asset.AssetID) (*asset.Transfer, error) {
	row, err := s.queryRow(ctx, s.sb.Select(transferColumns...).From("transfers").
		Where(sq.Eq{"asset_id": string(id), "status": string(asset.TransferPending)}))
	if err != nil {
		return nil, err
	}
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transfer: %w", err)
	}
	return t, nil
}

// =============================================================================
// MAINTENANCE STORE (asset.MaintenanceStore interface)
// =============================================================================

var maintenanceColumns = []string{
	"id", "asset_id", "facility_id", "maintenance_type", "maintenance_date",
	"description", "performed_by", "service_provider", "cost", "next_due_date",
	"findings", "recommendations", "created_at",
}

func (s *Store) AppendMaintenance(ctx context.Context, r asset.MaintenanceRecord) error {
	_, err := s.exec(ctx, s.sb.Insert("maintenance_records").Columns(maintenanceColumns...).Values(
		r.ID, string(r.AssetID), r.FacilityID, string(r.Type), fmtTime(r.MaintenanceDate),
		r.Description, r.PerformedBy, r.ServiceProvider, nullDecimal(r.Cost), fmtTimePtr(r.NextDueDate),
		r.Findings, r.Recommendations, fmtTime(r.CreatedAt),
	))
	if err != nil {
		return fmt.Errorf("failed to append maintenance record: %w", err)
	}
	return nil
}

func (s *Store) ListMaintenance(ctx context.Context, id asset.AssetID) ([]asset.MaintenanceRecord, error) {
	rows, err := s.query(ctx, s.sb.Select(maintenanceColumns...).From("maintenance_records").
		Where(sq.Eq{"asset_id": string(id)}).
		OrderBy("maintenance_date DESC", "created_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance records: %w", err)
	}
	defer rows.Close()

	var out []asset.MaintenanceRecord
	for rows.Next() {
		var (
			r                  asset.MaintenanceRecord
			performed, created string
			cost               decimal.NullDecimal
			next               sql.NullString
		)
		err := rows.Scan(
			&r.ID, &r.AssetID, &r.FacilityID, &r.Type, &performed,
			&r.Description, &r.PerformedBy, &r.ServiceProvider, &cost, &next,
			&r.Findings, &r.Recommendations, &created,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan maintenance record: %w", err)
		}
		if cost.Valid {
			r.Cost = &cost.Decimal
		}
		if r.MaintenanceDate, err = parseTime(performed); err != nil {
			return nil, err
		}
		if r.NextDueDate, err = parseNullTime(next); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
