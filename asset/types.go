/*
Package asset provides the core model of the fixed asset engine.

PURPOSE:
  This package holds the canonical asset record, its invariants, the
  append-only depreciation ledger entry, transfer and maintenance records,
  and the persistence interfaces every other package builds on. It has no
  knowledge of HTTP, SQL or scheduling.

KEY CONCEPTS IN THIS FILE (types.go):
  - Asset: one physical capital asset with cost basis and running state
  - Method: closed set of declared depreciation methods
  - Status/Condition/Category: lifecycle and descriptive enums
  - Money helpers: decimal arithmetic rounded to minor units

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Validated writes: every mutation goes through a function that returns a
     new Asset and re-checks the invariant set (see invariants.go)
  3. Optimistic concurrency: Version is compared-and-swapped on every save

INVARIANTS (hold after every mutation):
  0 <= AccumulatedDepreciation <= TotalCost - SalvageValue
  BookValue = TotalCost - AccumulatedDepreciation
  BookValue >= SalvageValue
  TotalCost is frozen at creation

SEE ALSO:
  - invariants.go: Validate and the state transition functions
  - ledger.go: LedgerEntry and Run
  - store.go: Store / TxStore interfaces
*/
package asset

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places money is posted with.
const MoneyPlaces = 2

// RoundMoney rounds to minor units, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(MoneyPlaces) }

// MinMoney returns the smaller of a and b.
func MinMoney(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MustMoney parses a decimal string and panics on malformed input.
// Intended for fixtures and constants.
func MustMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssetID string

func (id AssetID) String() string { return string(id) }

// =============================================================================
// DEPRECIATION METHOD
// =============================================================================

type Method string

const (
	MethodStraightLine      Method = "straight_line"
	MethodDecliningBalance  Method = "declining_balance"
	MethodDoubleDeclining   Method = "double_declining"
	MethodSumOfYears        Method = "sum_of_years"
	MethodUnitsOfProduction Method = "units_of_production"
)

// Declared reports whether m is one of the known method names. A declared
// method is not necessarily computable; see depreciation.CalculatorFor.
func (m Method) Declared() bool {
	switch m {
	case MethodStraightLine, MethodDecliningBalance, MethodDoubleDeclining,
		MethodSumOfYears, MethodUnitsOfProduction:
		return true
	}
	return false
}

// =============================================================================
// LIFECYCLE STATUS
// =============================================================================

type Status string

const (
	StatusActive           Status = "active"
	StatusUnderMaintenance Status = "under_maintenance"
	StatusTransferred      Status = "transferred"
	StatusDisposed         Status = "disposed"
	StatusWrittenOff       Status = "written_off"
	StatusStolen           Status = "stolen"
	StatusDamaged          Status = "damaged"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusUnderMaintenance, StatusTransferred, StatusDisposed,
		StatusWrittenOff, StatusStolen, StatusDamaged:
		return true
	}
	return false
}

// Terminal statuses end the active lifecycle. They are only reachable
// through disposal and have no exits.
func (s Status) Terminal() bool {
	return s == StatusDisposed || s == StatusWrittenOff || s == StatusStolen
}

// =============================================================================
// CONDITION & CATEGORY (descriptive, never gate financial logic)
// =============================================================================

type Condition string

const (
	ConditionExcellent     Condition = "excellent"
	ConditionGood          Condition = "good"
	ConditionFair          Condition = "fair"
	ConditionPoor          Condition = "poor"
	ConditionNonFunctional Condition = "non_functional"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionNonFunctional:
		return true
	}
	return false
}

type Category string

const (
	CategoryMedicalEquipment    Category = "medical_equipment"
	CategoryLaboratoryEquipment Category = "laboratory_equipment"
	CategoryImagingEquipment    Category = "imaging_equipment"
	CategorySurgicalEquipment   Category = "surgical_equipment"
	CategoryFurniture           Category = "furniture"
	CategoryITEquipment         Category = "it_equipment"
	CategoryVehicles            Category = "vehicles"
	CategoryBuildings           Category = "buildings"
	CategoryLand                Category = "land"
	CategoryOfficeEquipment     Category = "office_equipment"
	CategoryElectricalEquipment Category = "electrical_equipment"
	CategoryHVAC                Category = "hvac"
	CategoryOther               Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMedicalEquipment, CategoryLaboratoryEquipment, CategoryImagingEquipment,
		CategorySurgicalEquipment, CategoryFurniture, CategoryITEquipment, CategoryVehicles,
		CategoryBuildings, CategoryLand, CategoryOfficeEquipment, CategoryElectricalEquipment,
		CategoryHVAC, CategoryOther:
		return true
	}
	return false
}

// =============================================================================
// ASSET - Canonical record, one per physical asset
// =============================================================================

type Asset struct {
	ID           AssetID
	FacilityID   string
	DepartmentID *string
	AssetCode    string
	SerialNumber *string

	Name            string
	Description     string
	Category        Category
	Model           string
	Manufacturer    string
	Location        string
	CustodianID     *string
	AcquisitionDate time.Time
	Notes           string

	// Cost basis. TotalCost is derived at creation and never changes.
	AcquisitionCost  decimal.Decimal
	InstallationCost decimal.Decimal
	TotalCost        decimal.Decimal
	SalvageValue     decimal.Decimal

	// Depreciation parameters
	UsefulLifeMonths      int
	Method                Method
	DepreciationRate      *decimal.Decimal // annual percent; declining balance only
	DepreciationStartDate time.Time

	// Running financial state
	AccumulatedDepreciation decimal.Decimal
	BookValue               decimal.Decimal

	CurrentMarketValue *decimal.Decimal
	LastValuationDate  *time.Time

	Status    Status
	Condition Condition

	NextMaintenanceDate     *time.Time
	MaintenanceIntervalDays *int

	// Set once, by the disposal workflow.
	Disposal *Disposal

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Disposal freezes the outcome of ending an asset's life, including the
// book value the gain or loss is measured against.
type Disposal struct {
	Date                time.Time
	Value               decimal.Decimal
	Reason              string
	BookValueAtDisposal decimal.Decimal
}

// GainLoss is Value - BookValueAtDisposal. Positive is a gain.
func (d Disposal) GainLoss() decimal.Decimal {
	return d.Value.Sub(d.BookValueAtDisposal)
}

// DepreciableBase is TotalCost - SalvageValue.
func (a *Asset) DepreciableBase() decimal.Decimal {
	return a.TotalCost.Sub(a.SalvageValue)
}

// Remaining is how much may still be depreciated before hitting salvage.
func (a *Asset) Remaining() decimal.Decimal {
	return a.BookValue.Sub(a.SalvageValue)
}

// FullyDepreciated is true once book value has reached salvage value.
func (a *Asset) FullyDepreciated() bool {
	return a.BookValue.LessThanOrEqual(a.SalvageValue)
}

// Clone returns a copy that can be mutated without touching a.
// Pointer fields are shared; callers replace them rather than writing through.
func (a *Asset) Clone() *Asset {
	c := *a
	if a.Disposal != nil {
		d := *a.Disposal
		c.Disposal = &d
	}
	return &c
}
