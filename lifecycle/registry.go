package lifecycle

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// REGISTRY - Canonical asset records
// =============================================================================

type Registry struct {
	base
	validate *validator.Validate
}

func NewRegistry(store asset.TxStore, opts ...Option) *Registry {
	return &Registry{base: newBase(store, "registry", opts), validate: newValidator()}
}

// Create registers a new active asset with book value equal to its total
// cost.
func (r *Registry) Create(ctx context.Context, p asset.CreateParams) (*asset.Asset, error) {
	if err := validateStruct(r.validate, p); err != nil {
		return nil, err
	}
	a, err := asset.NewAsset(asset.AssetID(r.newID()), p, r.clock())
	if err != nil {
		return nil, err
	}
	if err := r.store.CreateAsset(ctx, a); err != nil {
		return nil, err
	}
	r.log.Info("asset created",
		zap.String("asset_id", a.ID.String()),
		zap.String("facility_id", a.FacilityID),
		zap.String("asset_code", a.AssetCode),
		zap.String("total_cost", a.TotalCost.String()),
	)
	return a, nil
}

func (r *Registry) Get(ctx context.Context, id asset.AssetID) (*asset.Asset, error) {
	return r.store.GetAsset(ctx, id)
}

// ListFilter mirrors the facility asset list query.
type ListFilter struct {
	Category     asset.Category
	Status       asset.Status
	DepartmentID string
	Search       string
}

// List returns a facility's live assets, ordered by asset code.
func (r *Registry) List(ctx context.Context, facilityID string, f ListFilter) ([]*asset.Asset, error) {
	if facilityID == "" {
		return nil, &asset.ValidationError{Field: "facility_id", Message: "required"}
	}
	filter := asset.AssetFilter{
		FacilityID:   facilityID,
		Category:     f.Category,
		DepartmentID: f.DepartmentID,
		Search:       f.Search,
	}
	if f.Status != "" {
		filter.Statuses = []asset.Status{f.Status}
	}
	return r.store.ListAssets(ctx, filter)
}

// Update applies a validated patch. Depreciation parameters can only change
// while the asset has no ledger entries.
func (r *Registry) Update(ctx context.Context, id asset.AssetID, p asset.Patch) (*asset.Asset, error) {
	var updated *asset.Asset
	err := r.store.WithTx(ctx, func(s asset.Store) error {
		a, err := s.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		latest, err := s.LatestEntry(ctx, id)
		if err != nil {
			return err
		}
		next, err := a.Apply(p, latest != nil, r.clock())
		if err != nil {
			return err
		}
		if err := s.SaveAsset(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("asset updated", zap.String("asset_id", id.String()), zap.Int64("version", updated.Version))
	return updated, nil
}

// Delete soft deletes an asset. Its ledger, transfer and maintenance history
// stay. An asset with a pending transfer cannot be deleted.
func (r *Registry) Delete(ctx context.Context, id asset.AssetID) error {
	err := r.store.WithTx(ctx, func(s asset.Store) error {
		a, err := s.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		pending, err := s.PendingTransfer(ctx, id)
		if err != nil {
			return err
		}
		if pending != nil {
			return &asset.TransitionError{Entity: "asset", ID: string(id), From: "pending transfer " + pending.ID, Action: "delete"}
		}
		now := r.clock()
		a.DeletedAt = &now
		a.UpdatedAt = now
		return s.SaveAsset(ctx, a)
	})
	if err != nil {
		return err
	}
	r.log.Info("asset deleted", zap.String("asset_id", id.String()))
	return nil
}

// Register is the full asset register of a facility: every live asset in
// any status, ordered by asset code.
func (r *Registry) Register(ctx context.Context, facilityID string) ([]*asset.Asset, error) {
	return r.List(ctx, facilityID, ListFilter{})
}

// =============================================================================
// VALUATION
// =============================================================================

type Valuation struct {
	FacilityID                   string
	AssetCount                   int
	TotalOriginalCost            decimal.Decimal
	TotalAccumulatedDepreciation decimal.Decimal
	TotalNetBookValue            decimal.Decimal

	// Market value where appraised, book value otherwise.
	TotalMarketValue decimal.Decimal
}

// Valuation totals the facility's active assets.
func (r *Registry) Valuation(ctx context.Context, facilityID string) (*Valuation, error) {
	assets, err := r.store.ListAssets(ctx, asset.AssetFilter{
		FacilityID: facilityID,
		Statuses:   []asset.Status{asset.StatusActive},
	})
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	v := &Valuation{
		FacilityID:                   facilityID,
		AssetCount:                   len(assets),
		TotalOriginalCost:            decimal.Zero,
		TotalAccumulatedDepreciation: decimal.Zero,
		TotalNetBookValue:            decimal.Zero,
		TotalMarketValue:             decimal.Zero,
	}
	for _, a := range assets {
		v.TotalOriginalCost = v.TotalOriginalCost.Add(a.TotalCost)
		v.TotalAccumulatedDepreciation = v.TotalAccumulatedDepreciation.Add(a.AccumulatedDepreciation)
		v.TotalNetBookValue = v.TotalNetBookValue.Add(a.BookValue)
		market := a.BookValue
		if a.CurrentMarketValue != nil {
			market = *a.CurrentMarketValue
		}
		v.TotalMarketValue = v.TotalMarketValue.Add(market)
	}
	return v, nil
}
