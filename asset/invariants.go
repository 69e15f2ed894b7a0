/*
invariants.go - Validated state transitions for Asset

PURPOSE:
  An Asset is never mutated in place. Every change goes through one of the
  functions below, which works on a copy, applies the change, then runs
  Validate on the result. The caller persists the returned copy with a
  compare-and-swap on Version.

TRANSITIONS:
  NewAsset         creation, book value = total cost
  Apply(Patch)     descriptive fields, condition, non-terminal status moves,
                   valuation, depreciation parameters (until first posting)
  Depreciate       one posted period, accumulated += amount
  Relocate         completed transfer, facility/department only
  Dispose          terminal status, frozen disposal snapshot
  ScheduleMaintenance  next maintenance date only

STATUS TABLE (via Apply):
  active            <-> under_maintenance
  active            <-> damaged
  under_maintenance <-> damaged
  active            <-> transferred
  terminal statuses reachable only via Dispose, no exits
*/
package asset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDATE
// =============================================================================

// Validate checks the full invariant set. It returns *InvariantError for the
// first rule that fails.
func (a *Asset) Validate() error {
	fail := func(rule, format string, args ...any) error {
		return &InvariantError{AssetID: a.ID, Rule: rule, Detail: fmt.Sprintf(format, args...)}
	}

	if a.UsefulLifeMonths <= 0 {
		return fail("useful_life", "useful life must be positive, got %d", a.UsefulLifeMonths)
	}
	if !a.Method.Declared() {
		return fail("method", "unknown depreciation method %q", a.Method)
	}
	if a.DepreciationRate != nil {
		r := *a.DepreciationRate
		if !r.IsPositive() || r.GreaterThan(decimal.NewFromInt(100)) {
			return fail("rate", "depreciation rate must be in (0, 100], got %s", r)
		}
	}
	if a.AcquisitionCost.IsNegative() || a.InstallationCost.IsNegative() {
		return fail("cost", "costs must not be negative")
	}
	if !a.TotalCost.Equal(a.AcquisitionCost.Add(a.InstallationCost)) {
		return fail("total_cost", "total cost %s != acquisition %s + installation %s",
			a.TotalCost, a.AcquisitionCost, a.InstallationCost)
	}
	if a.SalvageValue.IsNegative() || a.SalvageValue.GreaterThan(a.TotalCost) {
		return fail("salvage", "salvage value %s must be within [0, %s]", a.SalvageValue, a.TotalCost)
	}
	if a.AccumulatedDepreciation.IsNegative() {
		return fail("accumulated", "accumulated depreciation %s is negative", a.AccumulatedDepreciation)
	}
	if a.AccumulatedDepreciation.GreaterThan(a.DepreciableBase()) {
		return fail("accumulated", "accumulated depreciation %s exceeds depreciable base %s",
			a.AccumulatedDepreciation, a.DepreciableBase())
	}
	if !a.BookValue.Equal(a.TotalCost.Sub(a.AccumulatedDepreciation)) {
		return fail("book_value", "book value %s != total %s - accumulated %s",
			a.BookValue, a.TotalCost, a.AccumulatedDepreciation)
	}
	if a.BookValue.LessThan(a.SalvageValue) {
		return fail("book_value", "book value %s below salvage %s", a.BookValue, a.SalvageValue)
	}
	if !a.Status.Valid() {
		return fail("status", "unknown status %q", a.Status)
	}
	if a.Status.Terminal() && a.Disposal == nil {
		return fail("disposal", "terminal status %s without disposal record", a.Status)
	}
	return nil
}

// =============================================================================
// CREATE
// =============================================================================

// CreateParams is the input to asset creation. Struct tags are checked by
// the registry's validator before NewAsset runs.
type CreateParams struct {
	FacilityID            string           `json:"facility_id" validate:"required"`
	DepartmentID          *string          `json:"department_id,omitempty"`
	AssetCode             string           `json:"asset_code" validate:"required,max=64"`
	SerialNumber          *string          `json:"serial_number,omitempty" validate:"omitempty,max=128"`
	Name                  string           `json:"name" validate:"required,max=255"`
	Description           string           `json:"description"`
	Category              Category         `json:"category"`
	Model                 string           `json:"model"`
	Manufacturer          string           `json:"manufacturer"`
	Location              string           `json:"location"`
	CustodianID           *string          `json:"custodian_id,omitempty"`
	AcquisitionDate       time.Time        `json:"acquisition_date" validate:"required"`
	AcquisitionCost       decimal.Decimal  `json:"acquisition_cost"`
	InstallationCost      decimal.Decimal  `json:"installation_cost"`
	SalvageValue          decimal.Decimal  `json:"salvage_value"`
	UsefulLifeMonths      int              `json:"useful_life_months" validate:"gt=0"`
	Method                Method           `json:"depreciation_method" validate:"required"`
	DepreciationRate      *decimal.Decimal `json:"depreciation_rate,omitempty"`
	DepreciationStartDate time.Time        `json:"depreciation_start_date" validate:"required"`
	Condition             Condition        `json:"condition"`
	MaintenanceInterval   *int             `json:"maintenance_interval_days,omitempty" validate:"omitempty,gt=0"`
	Notes                 string           `json:"notes"`
}

// NewAsset builds a fresh active asset. TotalCost is derived and the book
// value starts at TotalCost with nothing accumulated.
func NewAsset(id AssetID, p CreateParams, now time.Time) (*Asset, error) {
	if p.AcquisitionCost.IsNegative() {
		return nil, &ValidationError{Field: "acquisition_cost", Message: "must not be negative"}
	}
	if p.InstallationCost.IsNegative() {
		return nil, &ValidationError{Field: "installation_cost", Message: "must not be negative"}
	}
	if p.SalvageValue.IsNegative() {
		return nil, &ValidationError{Field: "salvage_value", Message: "must not be negative"}
	}
	if p.Category == "" {
		p.Category = CategoryOther
	}
	if !p.Category.Valid() {
		return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", p.Category)}
	}
	if p.Condition == "" {
		p.Condition = ConditionGood
	}
	if !p.Condition.Valid() {
		return nil, &ValidationError{Field: "condition", Message: fmt.Sprintf("unknown condition %q", p.Condition)}
	}

	total := p.AcquisitionCost.Add(p.InstallationCost)
	a := &Asset{
		ID:                      id,
		FacilityID:              p.FacilityID,
		DepartmentID:            p.DepartmentID,
		AssetCode:               p.AssetCode,
		SerialNumber:            p.SerialNumber,
		Name:                    p.Name,
		Description:             p.Description,
		Category:                p.Category,
		Model:                   p.Model,
		Manufacturer:            p.Manufacturer,
		Location:                p.Location,
		CustodianID:             p.CustodianID,
		AcquisitionDate:         p.AcquisitionDate.UTC(),
		Notes:                   p.Notes,
		AcquisitionCost:         p.AcquisitionCost,
		InstallationCost:        p.InstallationCost,
		TotalCost:               total,
		SalvageValue:            p.SalvageValue,
		UsefulLifeMonths:        p.UsefulLifeMonths,
		Method:                  p.Method,
		DepreciationRate:        p.DepreciationRate,
		DepreciationStartDate:   p.DepreciationStartDate.UTC(),
		AccumulatedDepreciation: decimal.Zero,
		BookValue:               total,
		Status:                  StatusActive,
		Condition:               p.Condition,
		MaintenanceIntervalDays: p.MaintenanceInterval,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// =============================================================================
// PATCH
// =============================================================================

// Patch lists the fields an update may touch. Nil means unchanged. Cost
// basis, running financial state, location and disposal are not
// patchable.
type Patch struct {
	Name                    *string
	Description             *string
	Category                *Category
	Model                   *string
	Manufacturer            *string
	Location                *string
	CustodianID             *string
	SerialNumber            *string
	Notes                   *string
	Condition               *Condition
	Status                  *Status
	CurrentMarketValue      *decimal.Decimal
	LastValuationDate       *time.Time
	MaintenanceIntervalDays *int

	// Depreciation parameters, frozen once a period is posted.
	SalvageValue          *decimal.Decimal
	UsefulLifeMonths      *int
	Method                *Method
	DepreciationRate      *decimal.Decimal
	DepreciationStartDate *time.Time
}

// TouchesDepreciation reports whether the patch changes any depreciation
// parameter.
func (p Patch) TouchesDepreciation() bool {
	return p.SalvageValue != nil || p.UsefulLifeMonths != nil || p.Method != nil ||
		p.DepreciationRate != nil || p.DepreciationStartDate != nil
}

// Apply merges p into a copy of a. posted tells whether the asset already
// has ledger entries; if so, depreciation parameters cannot change.
func (a *Asset) Apply(p Patch, posted bool, now time.Time) (*Asset, error) {
	if posted && p.TouchesDepreciation() {
		return nil, fmt.Errorf("asset %s: %w", a.ID, ErrDepreciationLocked)
	}

	next := a.Clone()
	if p.Status != nil && *p.Status != a.Status {
		if !CanTransition(a.Status, *p.Status) {
			return nil, &TransitionError{Entity: "asset", ID: string(a.ID), From: string(a.Status), Action: "move to " + string(*p.Status)}
		}
		next.Status = *p.Status
	}
	if p.Category != nil {
		if !p.Category.Valid() {
			return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", *p.Category)}
		}
		next.Category = *p.Category
	}
	if p.Condition != nil {
		if !p.Condition.Valid() {
			return nil, &ValidationError{Field: "condition", Message: fmt.Sprintf("unknown condition %q", *p.Condition)}
		}
		next.Condition = *p.Condition
	}
	if p.CurrentMarketValue != nil {
		if p.CurrentMarketValue.IsNegative() {
			return nil, &ValidationError{Field: "current_market_value", Message: "must not be negative"}
		}
		v := *p.CurrentMarketValue
		next.CurrentMarketValue = &v
		if p.LastValuationDate == nil {
			t := now
			next.LastValuationDate = &t
		}
	}
	if p.LastValuationDate != nil {
		t := p.LastValuationDate.UTC()
		next.LastValuationDate = &t
	}
	if p.MaintenanceIntervalDays != nil {
		if *p.MaintenanceIntervalDays <= 0 {
			return nil, &ValidationError{Field: "maintenance_interval_days", Message: "must be positive"}
		}
		d := *p.MaintenanceIntervalDays
		next.MaintenanceIntervalDays = &d
	}

	setString(&next.Name, p.Name)
	setString(&next.Description, p.Description)
	setString(&next.Model, p.Model)
	setString(&next.Manufacturer, p.Manufacturer)
	setString(&next.Location, p.Location)
	setString(&next.Notes, p.Notes)
	if p.CustodianID != nil {
		c := *p.CustodianID
		next.CustodianID = &c
	}
	if p.SerialNumber != nil {
		if *p.SerialNumber == "" {
			next.SerialNumber = nil
		} else {
			s := *p.SerialNumber
			next.SerialNumber = &s
		}
	}

	if p.SalvageValue != nil {
		next.SalvageValue = *p.SalvageValue
	}
	if p.UsefulLifeMonths != nil {
		next.UsefulLifeMonths = *p.UsefulLifeMonths
	}
	if p.Method != nil {
		next.Method = *p.Method
	}
	if p.DepreciationRate != nil {
		r := *p.DepreciationRate
		next.DepreciationRate = &r
	}
	if p.DepreciationStartDate != nil {
		next.DepreciationStartDate = p.DepreciationStartDate.UTC()
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	return next, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// CanTransition reports whether Apply may move an asset between two
// statuses. Terminal statuses are excluded on both sides.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed := map[Status][]Status{
		StatusActive:           {StatusUnderMaintenance, StatusDamaged, StatusTransferred},
		StatusUnderMaintenance: {StatusActive, StatusDamaged},
		StatusDamaged:          {StatusActive, StatusUnderMaintenance},
		StatusTransferred:      {StatusActive},
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// =============================================================================
// FINANCIAL TRANSITIONS
// =============================================================================

// Depreciate posts amount against the asset. It fails with *InvariantError
// if accumulated depreciation would cross the depreciable base.
func (a *Asset) Depreciate(amount decimal.Decimal, now time.Time) (*Asset, error) {
	if amount.IsNegative() {
		return nil, &InvariantError{AssetID: a.ID, Rule: "amount", Detail: fmt.Sprintf("negative depreciation %s", amount)}
	}
	if a.Status != StatusActive {
		return nil, &TransitionError{Entity: "asset", ID: string(a.ID), From: string(a.Status), Action: "depreciate"}
	}
	next := a.Clone()
	next.AccumulatedDepreciation = a.AccumulatedDepreciation.Add(amount)
	next.BookValue = a.TotalCost.Sub(next.AccumulatedDepreciation)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	return next, nil
}

// Relocate moves the asset to a new facility and department. Nothing
// financial changes.
func (a *Asset) Relocate(facilityID string, departmentID *string, now time.Time) (*Asset, error) {
	if a.Status.Terminal() {
		return nil, &TransitionError{Entity: "asset", ID: string(a.ID), From: string(a.Status), Action: "relocate"}
	}
	if facilityID == "" {
		return nil, &ValidationError{Field: "facility_id", Message: "required"}
	}
	next := a.Clone()
	next.FacilityID = facilityID
	next.DepartmentID = departmentID
	next.UpdatedAt = now
	return next, nil
}

// Dispose ends the asset's life with the given terminal status. The current
// book value is frozen on the disposal record.
func (a *Asset) Dispose(status Status, date time.Time, value decimal.Decimal, reason string, now time.Time) (*Asset, error) {
	if a.Status.Terminal() {
		return nil, &TransitionError{Entity: "asset", ID: string(a.ID), From: string(a.Status), Action: "dispose"}
	}
	if !status.Terminal() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not a disposal status", status)}
	}
	if value.IsNegative() {
		return nil, &ValidationError{Field: "disposal_value", Message: "must not be negative"}
	}
	if date.IsZero() {
		return nil, &ValidationError{Field: "disposal_date", Message: "required"}
	}
	next := a.Clone()
	next.Status = status
	next.Disposal = &Disposal{
		Date:                Day(date),
		Value:               value,
		Reason:              reason,
		BookValueAtDisposal: a.BookValue,
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	return next, nil
}

// ScheduleMaintenance sets the next maintenance date and leaves the rest of
// the asset alone.
func (a *Asset) ScheduleMaintenance(next time.Time, now time.Time) (*Asset, error) {
	if a.Status.Terminal() {
		return nil, &TransitionError{Entity: "asset", ID: string(a.ID), From: string(a.Status), Action: "schedule maintenance on"}
	}
	c := a.Clone()
	t := next.UTC()
	c.NextMaintenanceDate = &t
	c.UpdatedAt = now
	return c, nil
}
