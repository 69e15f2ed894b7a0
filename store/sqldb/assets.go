package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// ASSET STORE (asset.AssetStore interface)
// =============================================================================

var assetColumns = []string{
	"id", "facility_id", "department_id", "asset_code", "serial_number",
	"name", "description", "category", "model", "manufacturer", "location",
	"custodian_id", "acquisition_date", "notes",
	"acquisition_cost", "installation_cost", "total_cost", "salvage_value",
	"useful_life_months", "depreciation_method", "depreciation_rate", "depreciation_start_date",
	"accumulated_depreciation", "book_value", "current_market_value", "last_valuation_date",
	"status", "asset_condition", "next_maintenance_date", "maintenance_interval_days",
	"disposal_date", "disposal_value", "disposal_reason", "book_value_at_disposal",
	"version", "created_at", "updated_at", "deleted_at",
}

// assetValues lines up with assetColumns.
func assetValues(a *asset.Asset) []any {
	var disposalDate, disposalValue, disposalReason, bookAtDisposal any
	if d := a.Disposal; d != nil {
		disposalDate = fmtTime(d.Date)
		disposalValue = d.Value.String()
		disposalReason = d.Reason
		bookAtDisposal = d.BookValueAtDisposal.String()
	}
	var interval any
	if a.MaintenanceIntervalDays != nil {
		interval = *a.MaintenanceIntervalDays
	}
	return []any{
		string(a.ID), a.FacilityID, nullString(a.DepartmentID), a.AssetCode, nullString(a.SerialNumber),
		a.Name, a.Description, string(a.Category), a.Model, a.Manufacturer, a.Location,
		nullString(a.CustodianID), fmtTime(a.AcquisitionDate), a.Notes,
		a.AcquisitionCost.String(), a.InstallationCost.String(), a.TotalCost.String(), a.SalvageValue.String(),
		a.UsefulLifeMonths, string(a.Method), nullDecimal(a.DepreciationRate), fmtTime(a.DepreciationStartDate),
		a.AccumulatedDepreciation.String(), a.BookValue.String(), nullDecimal(a.CurrentMarketValue), fmtTimePtr(a.LastValuationDate),
		string(a.Status), string(a.Condition), fmtTimePtr(a.NextMaintenanceDate), interval,
		disposalDate, disposalValue, disposalReason, bookAtDisposal,
		a.Version, fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt), fmtTimePtr(a.DeletedAt),
	}
}

func scanAsset(row scanner) (*asset.Asset, error) {
	var (
		a                                 asset.Asset
		dept, serial, custodian           sql.NullString
		acquired, start, created, updated string
		rate, market                      decimal.NullDecimal
		valued, nextMaint, deleted        sql.NullString
		interval                          sql.NullInt64
		disposalDate, disposalReason      sql.NullString
		disposalValue, bookAtDisposal     decimal.NullDecimal
	)
	err := row.Scan(
		&a.ID, &a.FacilityID, &dept, &a.AssetCode, &serial,
		&a.Name, &a.Description, &a.Category, &a.Model, &a.Manufacturer, &a.Location,
		&custodian, &acquired, &a.Notes,
		&a.AcquisitionCost, &a.InstallationCost, &a.TotalCost, &a.SalvageValue,
		&a.UsefulLifeMonths, &a.Method, &rate, &start,
		&a.AccumulatedDepreciation, &a.BookValue, &market, &valued,
		&a.Status, &a.Condition, &nextMaint, &interval,
		&disposalDate, &disposalValue, &disposalReason, &bookAtDisposal,
		&a.Version, &created, &updated, &deleted,
	)
	if err != nil {
		return nil, err
	}

	a.DepartmentID = stringPtr(dept)
	a.SerialNumber = stringPtr(serial)
	a.CustodianID = stringPtr(custodian)
	if rate.Valid {
		a.DepreciationRate = &rate.Decimal
	}
	if market.Valid {
		a.CurrentMarketValue = &market.Decimal
	}
	if interval.Valid {
		v := int(interval.Int64)
		a.MaintenanceIntervalDays = &v
	}
	if a.AcquisitionDate, err = parseTime(acquired); err != nil {
		return nil, err
	}
	if a.DepreciationStartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if a.LastValuationDate, err = parseNullTime(valued); err != nil {
		return nil, err
	}
	if a.NextMaintenanceDate, err = parseNullTime(nextMaint); err != nil {
		return nil, err
	}
	if a.DeletedAt, err = parseNullTime(deleted); err != nil {
		return nil, err
	}
	if disposalDate.Valid {
		date, err := parseTime(disposalDate.String)
		if err != nil {
			return nil, err
		}
		a.Disposal = &asset.Disposal{
			Date:                date,
			Value:               disposalValue.Decimal,
			Reason:              disposalReason.String,
			BookValueAtDisposal: bookAtDisposal.Decimal,
		}
	}
	return &a, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func assetConflict(a *asset.Asset, err error) error {
	detail, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	if isSerialViolation(detail) && a.SerialNumber != nil {
		return fmt.Errorf("serial number %s: %w", *a.SerialNumber, asset.ErrDuplicateSerialNumber)
	}
	return fmt.Errorf("asset code %s in facility %s: %w", a.AssetCode, a.FacilityID, asset.ErrDuplicateAssetCode)
}

// CreateAsset inserts a at Version 1.
func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	row := *a
	row.Version = 1
	_, err := s.exec(ctx, s.sb.Insert("assets").Columns(assetColumns...).Values(assetValues(&row)...))
	if err != nil {
		if cerr := assetConflict(a, err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	a.Version = 1
	return nil
}

func (s *Store) GetAsset(ctx context.Context, id asset.AssetID) (*asset.Asset, error) {
	row, err := s.queryRow(ctx, s.sb.Select(assetColumns...).From("assets").
		Where(sq.Eq{"id": string(id), "deleted_at": nil}))
	if err != nil {
		return nil, err
	}
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, asset.ErrAssetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", id, err)
	}
	return a, nil
}

// SaveAsset writes a if the stored version still equals a.Version.
func (s *Store) SaveAsset(ctx context.Context, a *asset.Asset) error {
	next := *a
	next.Version = a.Version + 1
	values := assetValues(&next)
	set := make(map[string]any, len(assetColumns)-1)
	for i, col := range assetColumns[1:] {
		set[col] = values[i+1]
	}

	res, err := s.exec(ctx, s.sb.Update("assets").SetMap(set).
		Where(sq.Eq{"id": string(a.ID), "version": a.Version}))
	if err != nil {
		if cerr := assetConflict(a, err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to update asset %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update asset %s: %w", a.ID, err)
	}
	if n == 0 {
		return s.missOrConflict(ctx, "assets", string(a.ID),
			fmt.Errorf("asset %s: %w", a.ID, asset.ErrAssetNotFound),
			fmt.Errorf("asset %s changed since version %d: %w", a.ID, a.Version, asset.ErrConcurrentModification))
	}
	a.Version = next.Version
	return nil
}

// missOrConflict explains a compare-and-swap that touched no rows.
func (s *Store) missOrConflict(ctx context.Context, table, id string, missing, conflict error) error {
	row, err := s.queryRow(ctx, s.sb.Select("COUNT(*)").From(table).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return fmt.Errorf("failed to check %s %s: %w", table, id, err)
	}
	if n == 0 {
		return missing
	}
	return conflict
}

func (s *Store) ListAssets(ctx context.Context, f asset.AssetFilter) ([]*asset.Asset, error) {
	b := s.sb.Select(assetColumns...).From("assets").OrderBy("asset_code", "id")
	if !f.IncludeDeleted {
		b = b.Where(sq.Eq{"deleted_at": nil})
	}
	if f.FacilityID != "" {
		b = b.Where(sq.Eq{"facility_id": f.FacilityID})
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	if f.Category != "" {
		b = b.Where(sq.Eq{"category": string(f.Category)})
	}
	if f.DepartmentID != "" {
		b = b.Where(sq.Eq{"department_id": f.DepartmentID})
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		b = b.Where(sq.Or{
			sq.Like{"LOWER(name)": pattern},
			sq.Like{"LOWER(asset_code)": pattern},
			sq.Like{"LOWER(serial_number)": pattern},
		})
	}

	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var out []*asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListFacilities(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, s.sb.Select("DISTINCT facility_id").From("assets").
		Where(sq.Eq{"deleted_at": nil}).OrderBy("facility_id"))
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
