package asset

import (
	"time"

	"github.com/shopspring/decimal"
)

type MaintenanceType string

const (
	MaintenancePreventive  MaintenanceType = "preventive"
	MaintenanceCorrective  MaintenanceType = "corrective"
	MaintenanceCalibration MaintenanceType = "calibration"
)

func (t MaintenanceType) Valid() bool {
	return t == MaintenancePreventive || t == MaintenanceCorrective || t == MaintenanceCalibration
}

// MaintenanceRecord is an append-only service log entry. Cost is recorded
// for reference and never capitalized into the asset.
type MaintenanceRecord struct {
	ID              string
	AssetID         AssetID
	FacilityID      string
	Type            MaintenanceType
	MaintenanceDate time.Time
	Description     string
	PerformedBy     string
	ServiceProvider string
	Cost            *decimal.Decimal
	NextDueDate     *time.Time
	Findings        string
	Recommendations string
	CreatedAt       time.Time
}
