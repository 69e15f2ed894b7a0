package asset

import (
	"fmt"
	"time"
)

// =============================================================================
// TRANSFER - Movement of an asset between facilities/departments
// =============================================================================

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferRejected  TransferStatus = "rejected"
	TransferCancelled TransferStatus = "cancelled"
)

// Location is a (facility, department) pair. Department may be nil.
type Location struct {
	FacilityID   string
	DepartmentID *string
}

// Equal compares facility and department, treating nil and nil as equal.
func (l Location) Equal(o Location) bool {
	if l.FacilityID != o.FacilityID {
		return false
	}
	if l.DepartmentID == nil || o.DepartmentID == nil {
		return l.DepartmentID == nil && o.DepartmentID == nil
	}
	return *l.DepartmentID == *o.DepartmentID
}

func (l Location) String() string {
	if l.DepartmentID == nil {
		return l.FacilityID
	}
	return l.FacilityID + "/" + *l.DepartmentID
}

// LocationOf returns where a currently sits.
func LocationOf(a *Asset) Location {
	return Location{FacilityID: a.FacilityID, DepartmentID: a.DepartmentID}
}

// Transfer is a request to move an asset. From is captured when the
// transfer is initiated; the asset itself moves only on completion.
type Transfer struct {
	ID            string
	AssetID       AssetID
	From          Location
	To            Location
	Reason        string
	TransferDate  time.Time
	TransferredBy string
	Status        TransferStatus

	ReceivedBy   *string
	ReceivedDate *time.Time

	ResolvedBy     *string
	ResolvedAt     *time.Time
	ResolutionNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Complete returns a completed copy of a pending transfer.
func (t *Transfer) Complete(receivedBy string, now time.Time) (*Transfer, error) {
	if t.Status != TransferPending {
		return nil, &TransitionError{Entity: "transfer", ID: t.ID, From: string(t.Status), Action: "complete"}
	}
	next := *t
	next.Status = TransferCompleted
	next.ReceivedBy = &receivedBy
	next.ReceivedDate = &now
	next.UpdatedAt = now
	return &next, nil
}

// Resolve returns a rejected or cancelled copy of a pending transfer.
func (t *Transfer) Resolve(status TransferStatus, by, note string, now time.Time) (*Transfer, error) {
	if status != TransferRejected && status != TransferCancelled {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("%q does not resolve a transfer", status)}
	}
	if t.Status != TransferPending {
		action := "reject"
		if status == TransferCancelled {
			action = "cancel"
		}
		return nil, &TransitionError{Entity: "transfer", ID: t.ID, From: string(t.Status), Action: action}
	}
	next := *t
	next.Status = status
	next.ResolvedBy = &by
	next.ResolvedAt = &now
	next.ResolutionNote = note
	next.UpdatedAt = now
	return &next, nil
}
