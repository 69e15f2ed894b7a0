package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// DISPOSALS - End of life and realized gain/loss
// =============================================================================

type Disposals struct {
	base
}

func NewDisposals(store asset.TxStore, opts ...Option) *Disposals {
	return &Disposals{base: newBase(store, "disposals", opts)}
}

type DisposeParams struct {
	Date   time.Time       `json:"disposal_date"`
	Value  decimal.Decimal `json:"disposal_value"`
	Reason string          `json:"disposal_reason"`

	// Status is disposed, written_off or stolen. Empty means disposed.
	Status asset.Status `json:"status"`
}

// Dispose moves an asset into a terminal status and freezes its book value.
// Assets with a pending transfer must have it resolved first.
func (d *Disposals) Dispose(ctx context.Context, id asset.AssetID, p DisposeParams) (*asset.Asset, error) {
	if p.Status == "" {
		p.Status = asset.StatusDisposed
	}

	var disposed *asset.Asset
	err := d.store.WithTx(ctx, func(s asset.Store) error {
		a, err := s.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		pending, err := s.PendingTransfer(ctx, id)
		if err != nil {
			return err
		}
		if pending != nil {
			return &asset.TransitionError{Entity: "asset", ID: string(id), From: "pending transfer " + pending.ID, Action: "dispose"}
		}
		next, err := a.Dispose(p.Status, p.Date, p.Value, p.Reason, d.clock())
		if err != nil {
			return err
		}
		if err := s.SaveAsset(ctx, next); err != nil {
			return err
		}
		disposed = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("asset disposed",
		zap.String("asset_id", id.String()),
		zap.String("status", string(disposed.Status)),
		zap.String("book_value_at_disposal", disposed.Disposal.BookValueAtDisposal.String()),
		zap.String("gain_loss", disposed.Disposal.GainLoss().String()),
	)
	return disposed, nil
}

// GainLoss is disposal value minus frozen book value; positive is a gain.
// Assets that were never disposed report zero.
func GainLoss(a *asset.Asset) decimal.Decimal {
	if a.Disposal == nil {
		return decimal.Zero
	}
	return a.Disposal.GainLoss()
}

// =============================================================================
// LOSS ON DISPOSAL REPORT
// =============================================================================

type DisposalLine struct {
	Asset    *asset.Asset
	GainLoss decimal.Decimal
}

type LossOnDisposalReport struct {
	FacilityID string
	From       time.Time
	To         time.Time // inclusive

	// Disposed holds every terminal status: disposed, written_off and
	// stolen, not only sales.
	Disposed                 []DisposalLine
	TotalBookValueAtDisposal decimal.Decimal
	TotalDisposalValue       decimal.Decimal
	TotalGain                decimal.Decimal
	TotalLoss                decimal.Decimal // positive magnitude
	NetLossGain              decimal.Decimal // TotalGain - TotalLoss
}

// LossOnDisposalReport covers every asset of the facility that left
// service (disposed, written off, stolen) with a disposal date in
// [from, to]. Both bounds are calendar days and to includes its whole day.
// Gains and losses are summed independently.
func (d *Disposals) LossOnDisposalReport(ctx context.Context, facilityID string, from, to time.Time) (*LossOnDisposalReport, error) {
	if facilityID == "" {
		return nil, &asset.ValidationError{Field: "facility_id", Message: "required"}
	}
	from, to = asset.Day(from), asset.Day(to)
	if to.Before(from) {
		return nil, &asset.ValidationError{Field: "to", Message: "must not be before from"}
	}

	assets, err := d.store.ListAssets(ctx, asset.AssetFilter{
		FacilityID: facilityID,
		Statuses:   []asset.Status{asset.StatusDisposed, asset.StatusWrittenOff, asset.StatusStolen},
	})
	if err != nil {
		return nil, fmt.Errorf("list disposed assets: %w", err)
	}

	r := &LossOnDisposalReport{
		FacilityID:               facilityID,
		From:                     from,
		To:                       to,
		TotalBookValueAtDisposal: decimal.Zero,
		TotalDisposalValue:       decimal.Zero,
		TotalGain:                decimal.Zero,
		TotalLoss:                decimal.Zero,
	}
	end := to.AddDate(0, 0, 1)
	for _, a := range assets {
		if a.Disposal == nil || a.Disposal.Date.Before(from) || !a.Disposal.Date.Before(end) {
			continue
		}
		gl := a.Disposal.GainLoss()
		r.Disposed = append(r.Disposed, DisposalLine{Asset: a, GainLoss: gl})
		r.TotalBookValueAtDisposal = r.TotalBookValueAtDisposal.Add(a.Disposal.BookValueAtDisposal)
		r.TotalDisposalValue = r.TotalDisposalValue.Add(a.Disposal.Value)
		if gl.IsNegative() {
			r.TotalLoss = r.TotalLoss.Add(gl.Neg())
		} else {
			r.TotalGain = r.TotalGain.Add(gl)
		}
	}
	r.NetLossGain = r.TotalGain.Sub(r.TotalLoss)

	sort.SliceStable(r.Disposed, func(i, j int) bool {
		return r.Disposed[i].Asset.Disposal.Date.Before(r.Disposed[j].Asset.Disposal.Date)
	})
	return r, nil
}
