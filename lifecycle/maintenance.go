package lifecycle

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// MAINTENANCE - Service log and next-due tracking
// =============================================================================

// DefaultDueWindow is how far ahead Due looks when no window is given.
const DefaultDueWindow = 30

type Maintenance struct {
	base
	validate *validator.Validate
}

func NewMaintenance(store asset.TxStore, opts ...Option) *Maintenance {
	return &Maintenance{base: newBase(store, "maintenance", opts), validate: newValidator()}
}

type RecordMaintenanceParams struct {
	AssetID         asset.AssetID         `json:"asset_id" validate:"required"`
	Type            asset.MaintenanceType `json:"maintenance_type" validate:"required,oneof=preventive corrective calibration"`
	MaintenanceDate time.Time             `json:"maintenance_date" validate:"required"`
	Description     string                `json:"description"`
	PerformedBy     string                `json:"performed_by"`
	ServiceProvider string                `json:"service_provider"`
	Cost            *decimal.Decimal      `json:"cost,omitempty"`
	NextDueDate     *time.Time            `json:"next_due_date,omitempty"`
	Findings        string                `json:"findings"`
	Recommendations string                `json:"recommendations"`
}

// Record appends a maintenance record. When NextDueDate is set, the asset's
// next maintenance date is updated; nothing else on the asset changes.
func (m *Maintenance) Record(ctx context.Context, p RecordMaintenanceParams) (*asset.MaintenanceRecord, error) {
	if err := validateStruct(m.validate, p); err != nil {
		return nil, err
	}
	if p.Cost != nil && p.Cost.IsNegative() {
		return nil, &asset.ValidationError{Field: "cost", Message: "must not be negative"}
	}

	var rec asset.MaintenanceRecord
	err := m.store.WithTx(ctx, func(s asset.Store) error {
		a, err := s.GetAsset(ctx, p.AssetID)
		if err != nil {
			return err
		}
		if a.Status.Terminal() {
			return &asset.TransitionError{Entity: "asset", ID: string(a.ID), From: string(a.Status), Action: "record maintenance on"}
		}

		now := m.clock()
		rec = asset.MaintenanceRecord{
			ID:              m.newID(),
			AssetID:         a.ID,
			FacilityID:      a.FacilityID,
			Type:            p.Type,
			MaintenanceDate: p.MaintenanceDate.UTC(),
			Description:     p.Description,
			PerformedBy:     p.PerformedBy,
			ServiceProvider: p.ServiceProvider,
			Cost:            p.Cost,
			NextDueDate:     p.NextDueDate,
			Findings:        p.Findings,
			Recommendations: p.Recommendations,
			CreatedAt:       now,
		}
		if err := s.AppendMaintenance(ctx, rec); err != nil {
			return err
		}
		if p.NextDueDate == nil {
			return nil
		}
		next, err := a.ScheduleMaintenance(*p.NextDueDate, now)
		if err != nil {
			return err
		}
		return s.SaveAsset(ctx, next)
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("maintenance recorded",
		zap.String("asset_id", rec.AssetID.String()),
		zap.String("type", string(rec.Type)),
	)
	return &rec, nil
}

// History lists an asset's maintenance records, newest first.
func (m *Maintenance) History(ctx context.Context, id asset.AssetID) ([]asset.MaintenanceRecord, error) {
	if _, err := m.store.GetAsset(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListMaintenance(ctx, id)
}

// Due lists the facility's active assets whose next maintenance falls
// before now + daysAhead, soonest first. Overdue assets are included.
func (m *Maintenance) Due(ctx context.Context, facilityID string, daysAhead int) ([]*asset.Asset, error) {
	if facilityID == "" {
		return nil, &asset.ValidationError{Field: "facility_id", Message: "required"}
	}
	if daysAhead <= 0 {
		daysAhead = DefaultDueWindow
	}
	cutoff := m.clock().AddDate(0, 0, daysAhead)

	assets, err := m.store.ListAssets(ctx, asset.AssetFilter{
		FacilityID: facilityID,
		Statuses:   []asset.Status{asset.StatusActive},
	})
	if err != nil {
		return nil, err
	}
	var due []*asset.Asset
	for _, a := range assets {
		if a.NextMaintenanceDate != nil && a.NextMaintenanceDate.Before(cutoff) {
			due = append(due, a)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextMaintenanceDate.Before(*due[j].NextMaintenanceDate)
	})
	return due, nil
}
