package lifecycle

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
)

// =============================================================================
// TRANSFERS - pending -> completed | rejected | cancelled
// =============================================================================

type Transfers struct {
	base
	validate *validator.Validate
}

func NewTransfers(store asset.TxStore, opts ...Option) *Transfers {
	return &Transfers{base: newBase(store, "transfers", opts), validate: newValidator()}
}

type InitiateTransferParams struct {
	AssetID        asset.AssetID `json:"asset_id" validate:"required"`
	ToFacilityID   string        `json:"to_facility_id" validate:"required"`
	ToDepartmentID *string       `json:"to_department_id,omitempty"`
	Reason         string        `json:"reason"`
	TransferDate   time.Time     `json:"transfer_date"`
	TransferredBy  string        `json:"transferred_by" validate:"required"`
}

// Initiate opens a pending transfer. The asset does not move until the
// transfer is completed.
func (t *Transfers) Initiate(ctx context.Context, p InitiateTransferParams) (*asset.Transfer, error) {
	if err := validateStruct(t.validate, p); err != nil {
		return nil, err
	}

	var created *asset.Transfer
	err := t.store.WithTx(ctx, func(s asset.Store) error {
		a, err := s.GetAsset(ctx, p.AssetID)
		if err != nil {
			return err
		}
		if a.Status.Terminal() {
			return &asset.TransitionError{Entity: "asset", ID: string(a.ID), From: string(a.Status), Action: "transfer"}
		}
		pending, err := s.PendingTransfer(ctx, a.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			return &asset.TransitionError{Entity: "asset", ID: string(a.ID), From: "pending transfer " + pending.ID, Action: "transfer"}
		}

		from := asset.LocationOf(a)
		to := asset.Location{FacilityID: p.ToFacilityID, DepartmentID: p.ToDepartmentID}
		if from.Equal(to) {
			return &asset.ValidationError{Field: "to_facility_id", Message: "destination equals current location " + from.String()}
		}

		now := t.clock()
		date := p.TransferDate
		if date.IsZero() {
			date = now
		}
		tr := &asset.Transfer{
			ID:            t.newID(),
			AssetID:       a.ID,
			From:          from,
			To:            to,
			Reason:        p.Reason,
			TransferDate:  date.UTC(),
			TransferredBy: p.TransferredBy,
			Status:        asset.TransferPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		// Opening a transfer bumps the asset version.
		touched := a.Clone()
		touched.UpdatedAt = now
		if err := s.SaveAsset(ctx, touched); err != nil {
			return err
		}
		if err := s.CreateTransfer(ctx, tr); err != nil {
			return err
		}
		created = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.log.Info("transfer initiated",
		zap.String("transfer_id", created.ID),
		zap.String("asset_id", created.AssetID.String()),
		zap.String("from", created.From.String()),
		zap.String("to", created.To.String()),
	)
	return created, nil
}

// Complete moves the asset to the transfer's destination and marks the
// transfer completed, atomically. Financial fields are untouched.
func (t *Transfers) Complete(ctx context.Context, transferID, receivedBy string) (*asset.Transfer, error) {
	if receivedBy == "" {
		return nil, &asset.ValidationError{Field: "received_by", Message: "required"}
	}
	var done *asset.Transfer
	err := t.store.WithTx(ctx, func(s asset.Store) error {
		tr, err := s.GetTransfer(ctx, transferID)
		if err != nil {
			return err
		}
		now := t.clock()
		completed, err := tr.Complete(receivedBy, now)
		if err != nil {
			return err
		}
		a, err := s.GetAsset(ctx, tr.AssetID)
		if err != nil {
			return err
		}
		moved, err := a.Relocate(tr.To.FacilityID, tr.To.DepartmentID, now)
		if err != nil {
			return err
		}
		if err := s.SaveAsset(ctx, moved); err != nil {
			return err
		}
		if err := s.SaveTransfer(ctx, completed, asset.TransferPending); err != nil {
			return err
		}
		done = completed
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.log.Info("transfer completed",
		zap.String("transfer_id", done.ID),
		zap.String("asset_id", done.AssetID.String()),
		zap.String("facility_id", done.To.FacilityID),
	)
	return done, nil
}

// Reject closes a pending transfer without moving the asset.
func (t *Transfers) Reject(ctx context.Context, transferID, by, note string) (*asset.Transfer, error) {
	return t.resolve(ctx, transferID, asset.TransferRejected, by, note)
}

// Cancel withdraws a pending transfer without moving the asset.
func (t *Transfers) Cancel(ctx context.Context, transferID, by, note string) (*asset.Transfer, error) {
	return t.resolve(ctx, transferID, asset.TransferCancelled, by, note)
}

func (t *Transfers) resolve(ctx context.Context, transferID string, status asset.TransferStatus, by, note string) (*asset.Transfer, error) {
	if by == "" {
		return nil, &asset.ValidationError{Field: "resolved_by", Message: "required"}
	}
	var resolved *asset.Transfer
	err := t.store.WithTx(ctx, func(s asset.Store) error {
		tr, err := s.GetTransfer(ctx, transferID)
		if err != nil {
			return err
		}
		next, err := tr.Resolve(status, by, note, t.clock())
		if err != nil {
			return err
		}
		if err := s.SaveTransfer(ctx, next, asset.TransferPending); err != nil {
			return err
		}
		resolved = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.log.Info("transfer resolved", zap.String("transfer_id", transferID), zap.String("status", string(status)))
	return resolved, nil
}

func (t *Transfers) Get(ctx context.Context, transferID string) (*asset.Transfer, error) {
	return t.store.GetTransfer(ctx, transferID)
}

// History lists an asset's transfers, newest first.
func (t *Transfers) History(ctx context.Context, id asset.AssetID) ([]*asset.Transfer, error) {
	if _, err := t.store.GetAsset(ctx, id); err != nil {
		return nil, err
	}
	return t.store.ListTransfers(ctx, id)
}
