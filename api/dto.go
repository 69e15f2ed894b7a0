/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal.Decimal, which marshals as a JSON string ("1234.56").
  Requests accept either strings or numbers.

TYPES:
  Assets:       AssetDTO, DisposalDTO, UpdateAssetRequest
  Depreciation: LedgerEntryDTO, RunDTO, RunResultDTO, ProjectedPeriodDTO, ReportDTO
  Transfers:    TransferDTO, CompleteTransferRequest, ResolveTransferRequest
  Maintenance:  MaintenanceRecordDTO
  Reports:      ValuationDTO, LossOnDisposalDTO

Create, initiate, dispose and record requests decode straight into the
lifecycle parameter types, which carry their own json and validate tags.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/depreciation"
	"github.com/warp/asset-engine/lifecycle"
)

// =============================================================================
// ASSETS
// =============================================================================

type AssetDTO struct {
	ID           string  `json:"id"`
	FacilityID   string  `json:"facility_id"`
	DepartmentID *string `json:"department_id,omitempty"`
	AssetCode    string  `json:"asset_code"`
	SerialNumber *string `json:"serial_number,omitempty"`

	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category"`
	Model           string    `json:"model,omitempty"`
	Manufacturer    string    `json:"manufacturer,omitempty"`
	Location        string    `json:"location,omitempty"`
	CustodianID     *string   `json:"custodian_id,omitempty"`
	AcquisitionDate time.Time `json:"acquisition_date"`
	Notes           string    `json:"notes,omitempty"`

	AcquisitionCost  decimal.Decimal `json:"acquisition_cost"`
	InstallationCost decimal.Decimal `json:"installation_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	SalvageValue     decimal.Decimal `json:"salvage_value"`

	UsefulLifeMonths      int              `json:"useful_life_months"`
	Method                string           `json:"depreciation_method"`
	DepreciationRate      *decimal.Decimal `json:"depreciation_rate,omitempty"`
	DepreciationStartDate time.Time        `json:"depreciation_start_date"`

	AccumulatedDepreciation decimal.Decimal  `json:"accumulated_depreciation"`
	BookValue               decimal.Decimal  `json:"book_value"`
	CurrentMarketValue      *decimal.Decimal `json:"current_market_value,omitempty"`
	LastValuationDate       *time.Time       `json:"last_valuation_date,omitempty"`

	Status                  string     `json:"status"`
	Condition               string     `json:"condition"`
	NextMaintenanceDate     *time.Time `json:"next_maintenance_date,omitempty"`
	MaintenanceIntervalDays *int       `json:"maintenance_interval_days,omitempty"`

	Disposal *DisposalDTO `json:"disposal,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DisposalDTO struct {
	Date                time.Time       `json:"disposal_date"`
	Value               decimal.Decimal `json:"disposal_value"`
	Reason              string          `json:"disposal_reason,omitempty"`
	BookValueAtDisposal decimal.Decimal `json:"book_value_at_disposal"`
	GainLoss            decimal.Decimal `json:"gain_loss"`
}

func toAssetDTO(a *asset.Asset) AssetDTO {
	dto := AssetDTO{
		ID:                      a.ID.String(),
		FacilityID:              a.FacilityID,
		DepartmentID:            a.DepartmentID,
		AssetCode:               a.AssetCode,
		SerialNumber:            a.SerialNumber,
		Name:                    a.Name,
		Description:             a.Description,
		Category:                string(a.Category),
		Model:                   a.Model,
		Manufacturer:            a.Manufacturer,
		Location:                a.Location,
		CustodianID:             a.CustodianID,
		AcquisitionDate:         a.AcquisitionDate,
		Notes:                   a.Notes,
		AcquisitionCost:         a.AcquisitionCost,
		InstallationCost:        a.InstallationCost,
		TotalCost:               a.TotalCost,
		SalvageValue:            a.SalvageValue,
		UsefulLifeMonths:        a.UsefulLifeMonths,
		Method:                  string(a.Method),
		DepreciationRate:        a.DepreciationRate,
		DepreciationStartDate:   a.DepreciationStartDate,
		AccumulatedDepreciation: a.AccumulatedDepreciation,
		BookValue:               a.BookValue,
		CurrentMarketValue:      a.CurrentMarketValue,
		LastValuationDate:       a.LastValuationDate,
		Status:                  string(a.Status),
		Condition:               string(a.Condition),
		NextMaintenanceDate:     a.NextMaintenanceDate,
		MaintenanceIntervalDays: a.MaintenanceIntervalDays,
		Version:                 a.Version,
		CreatedAt:               a.CreatedAt,
		UpdatedAt:               a.UpdatedAt,
	}
	if d := a.Disposal; d != nil {
		dto.Disposal = &DisposalDTO{
			Date:                d.Date,
			Value:               d.Value,
			Reason:              d.Reason,
			BookValueAtDisposal: d.BookValueAtDisposal,
			GainLoss:            d.GainLoss(),
		}
	}
	return dto
}

func toAssetDTOs(assets []*asset.Asset) []AssetDTO {
	dtos := make([]AssetDTO, len(assets))
	for i, a := range assets {
		dtos[i] = toAssetDTO(a)
	}
	return dtos
}

// UpdateAssetRequest is a partial update. Absent fields are left alone.
type UpdateAssetRequest struct {
	Name                    *string          `json:"name,omitempty"`
	Description             *string          `json:"description,omitempty"`
	Category                *asset.Category  `json:"category,omitempty"`
	Model                   *string          `json:"model,omitempty"`
	Manufacturer            *string          `json:"manufacturer,omitempty"`
	Location                *string          `json:"location,omitempty"`
	CustodianID             *string          `json:"custodian_id,omitempty"`
	SerialNumber            *string          `json:"serial_number,omitempty"`
	Notes                   *string          `json:"notes,omitempty"`
	Condition               *asset.Condition `json:"condition,omitempty"`
	Status                  *asset.Status    `json:"status,omitempty"`
	CurrentMarketValue      *decimal.Decimal `json:"current_market_value,omitempty"`
	LastValuationDate       *time.Time       `json:"last_valuation_date,omitempty"`
	MaintenanceIntervalDays *int             `json:"maintenance_interval_days,omitempty"`
	SalvageValue            *decimal.Decimal `json:"salvage_value,omitempty"`
	UsefulLifeMonths        *int             `json:"useful_life_months,omitempty"`
	Method                  *asset.Method    `json:"depreciation_method,omitempty"`
	DepreciationRate        *decimal.Decimal `json:"depreciation_rate,omitempty"`
	DepreciationStartDate   *time.Time       `json:"depreciation_start_date,omitempty"`
}

func (r UpdateAssetRequest) toPatch() asset.Patch {
	return asset.Patch{
		Name:                    r.Name,
		Description:             r.Description,
		Category:                r.Category,
		Model:                   r.Model,
		Manufacturer:            r.Manufacturer,
		Location:                r.Location,
		CustodianID:             r.CustodianID,
		SerialNumber:            r.SerialNumber,
		Notes:                   r.Notes,
		Condition:               r.Condition,
		Status:                  r.Status,
		CurrentMarketValue:      r.CurrentMarketValue,
		LastValuationDate:       r.LastValuationDate,
		MaintenanceIntervalDays: r.MaintenanceIntervalDays,
		SalvageValue:            r.SalvageValue,
		UsefulLifeMonths:        r.UsefulLifeMonths,
		Method:                  r.Method,
		DepreciationRate:        r.DepreciationRate,
		DepreciationStartDate:   r.DepreciationStartDate,
	}
}

// =============================================================================
// DEPRECIATION
// =============================================================================

type LedgerEntryDTO struct {
	ID                      string          `json:"id"`
	AssetID                 string          `json:"asset_id"`
	FacilityID              string          `json:"facility_id"`
	Period                  string          `json:"period"`
	Method                  string          `json:"depreciation_method"`
	OpeningBookValue        decimal.Decimal `json:"opening_book_value"`
	DepreciationAmount      decimal.Decimal `json:"depreciation_amount"`
	AccumulatedDepreciation decimal.Decimal `json:"accumulated_depreciation"`
	ClosingBookValue        decimal.Decimal `json:"closing_book_value"`
	RunID                   string          `json:"run_id,omitempty"`
	IsPosted                bool            `json:"is_posted"`
	CreatedAt               time.Time       `json:"created_at"`
}

func toLedgerEntryDTOs(entries []asset.LedgerEntry) []LedgerEntryDTO {
	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LedgerEntryDTO{
			ID:                      e.ID,
			AssetID:                 e.AssetID.String(),
			FacilityID:              e.FacilityID,
			Period:                  e.Period.String(),
			Method:                  string(e.Method),
			OpeningBookValue:        e.OpeningBookValue,
			DepreciationAmount:      e.DepreciationAmount,
			AccumulatedDepreciation: e.AccumulatedDepreciation,
			ClosingBookValue:        e.ClosingBookValue,
			RunID:                   e.RunID,
			IsPosted:                e.IsPosted,
			CreatedAt:               e.CreatedAt,
		}
	}
	return dtos
}

// RunDepreciationRequest selects the period to post, as "YYYY-MM".
type RunDepreciationRequest struct {
	Period      string `json:"period"`
	TriggeredBy string `json:"triggered_by"`
}

type RunDTO struct {
	ID          string          `json:"id"`
	FacilityID  string          `json:"facility_id"`
	Period      string          `json:"period"`
	Status      string          `json:"status"`
	TriggeredBy string          `json:"triggered_by,omitempty"`
	Candidates  int             `json:"candidates"`
	Posted      int             `json:"posted"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func toRunDTO(r *asset.Run) RunDTO {
	return RunDTO{
		ID:          r.ID,
		FacilityID:  r.FacilityID,
		Period:      r.Period.String(),
		Status:      string(r.Status),
		TriggeredBy: r.TriggeredBy,
		Candidates:  r.Candidates,
		Posted:      r.Posted,
		Skipped:     r.Skipped,
		Failed:      r.Failed,
		TotalAmount: r.TotalAmount,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

type SkippedDTO struct {
	AssetID   string `json:"asset_id"`
	AssetCode string `json:"asset_code"`
	Reason    string `json:"reason"`
}

type FailedDTO struct {
	AssetID   string `json:"asset_id"`
	AssetCode string `json:"asset_code"`
	Error     string `json:"error"`
}

type RunResultDTO struct {
	Run     RunDTO           `json:"run"`
	Posted  []LedgerEntryDTO `json:"posted"`
	Skipped []SkippedDTO     `json:"skipped"`
	Failed  []FailedDTO      `json:"failed"`
}

func toRunResultDTO(r *depreciation.RunResult) RunResultDTO {
	dto := RunResultDTO{
		Run:     toRunDTO(r.Run),
		Posted:  toLedgerEntryDTOs(r.Posted),
		Skipped: make([]SkippedDTO, len(r.Skipped)),
		Failed:  make([]FailedDTO, len(r.Failed)),
	}
	for i, s := range r.Skipped {
		dto.Skipped[i] = SkippedDTO{AssetID: s.AssetID.String(), AssetCode: s.AssetCode, Reason: string(s.Reason)}
	}
	for i, f := range r.Failed {
		dto.Failed[i] = FailedDTO{AssetID: f.AssetID.String(), AssetCode: f.AssetCode, Error: f.Err.Error()}
	}
	return dto
}

type ProjectedPeriodDTO struct {
	Period                  string          `json:"period"`
	OpeningBookValue        decimal.Decimal `json:"opening_book_value"`
	DepreciationAmount      decimal.Decimal `json:"depreciation_amount"`
	AccumulatedDepreciation decimal.Decimal `json:"accumulated_depreciation"`
	ClosingBookValue        decimal.Decimal `json:"closing_book_value"`
}

type CategorySummaryDTO struct {
	Category                string          `json:"category"`
	Count                   int             `json:"count"`
	TotalCost               decimal.Decimal `json:"total_cost"`
	AccumulatedDepreciation decimal.Decimal `json:"accumulated_depreciation"`
	BookValue               decimal.Decimal `json:"book_value"`
}

type ReportDTO struct {
	FacilityID                   string               `json:"facility_id"`
	Year                         int                  `json:"year"`
	Month                        *int                 `json:"month,omitempty"`
	TotalAssets                  int                  `json:"total_assets"`
	TotalCost                    decimal.Decimal      `json:"total_cost"`
	TotalAccumulatedDepreciation decimal.Decimal      `json:"total_accumulated_depreciation"`
	TotalBookValue               decimal.Decimal      `json:"total_book_value"`
	PeriodDepreciation           decimal.Decimal      `json:"period_depreciation"`
	ByCategory                   []CategorySummaryDTO `json:"by_category"`
}

func toReportDTO(r *depreciation.Report) ReportDTO {
	dto := ReportDTO{
		FacilityID:                   r.FacilityID,
		Year:                         r.Year,
		Month:                        r.Month,
		TotalAssets:                  r.TotalAssets,
		TotalCost:                    r.TotalCost,
		TotalAccumulatedDepreciation: r.TotalAccumulatedDepreciation,
		TotalBookValue:               r.TotalBookValue,
		PeriodDepreciation:           r.PeriodDepreciation,
		ByCategory:                   make([]CategorySummaryDTO, len(r.ByCategory)),
	}
	for i, c := range r.ByCategory {
		dto.ByCategory[i] = CategorySummaryDTO{
			Category:                string(c.Category),
			Count:                   c.Count,
			TotalCost:               c.TotalCost,
			AccumulatedDepreciation: c.Accumulated,
			BookValue:               c.BookValue,
		}
	}
	return dto
}

// =============================================================================
// TRANSFERS
// =============================================================================

type LocationDTO struct {
	FacilityID   string  `json:"facility_id"`
	DepartmentID *string `json:"department_id,omitempty"`
}

type TransferDTO struct {
	ID             string      `json:"id"`
	AssetID        string      `json:"asset_id"`
	From           LocationDTO `json:"from"`
	To             LocationDTO `json:"to"`
	Reason         string      `json:"reason,omitempty"`
	TransferDate   time.Time   `json:"transfer_date"`
	TransferredBy  string      `json:"transferred_by"`
	Status         string      `json:"status"`
	ReceivedBy     *string     `json:"received_by,omitempty"`
	ReceivedDate   *time.Time  `json:"received_date,omitempty"`
	ResolvedBy     *string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	ResolutionNote string      `json:"resolution_note,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func toTransferDTO(t *asset.Transfer) TransferDTO {
	return TransferDTO{
		ID:             t.ID,
		AssetID:        t.AssetID.String(),
		From:           LocationDTO{FacilityID: t.From.FacilityID, DepartmentID: t.From.DepartmentID},
		To:             LocationDTO{FacilityID: t.To.FacilityID, DepartmentID: t.To.DepartmentID},
		Reason:         t.Reason,
		TransferDate:   t.TransferDate,
		TransferredBy:  t.TransferredBy,
		Status:         string(t.Status),
		ReceivedBy:     t.ReceivedBy,
		ReceivedDate:   t.ReceivedDate,
		ResolvedBy:     t.ResolvedBy,
		ResolvedAt:     t.ResolvedAt,
		ResolutionNote: t.ResolutionNote,
		CreatedAt:      t.CreatedAt,
	}
}

type CompleteTransferRequest struct {
	ReceivedBy string `json:"received_by"`
}

// ResolveTransferRequest is the body of reject and cancel.
type ResolveTransferRequest struct {
	By   string `json:"by"`
	Note string `json:"note"`
}

// =============================================================================
// MAINTENANCE
// =============================================================================

type MaintenanceRecordDTO struct {
	ID              string           `json:"id"`
	AssetID         string           `json:"asset_id"`
	FacilityID      string           `json:"facility_id"`
	Type            string           `json:"maintenance_type"`
	MaintenanceDate time.Time        `json:"maintenance_date"`
	Description     string           `json:"description,omitempty"`
	PerformedBy     string           `json:"performed_by,omitempty"`
	ServiceProvider string           `json:"service_provider,omitempty"`
	Cost            *decimal.Decimal `json:"cost,omitempty"`
	NextDueDate     *time.Time       `json:"next_due_date,omitempty"`
	Findings        string           `json:"findings,omitempty"`
	Recommendations string           `json:"recommendations,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

func toMaintenanceDTO(r asset.MaintenanceRecord) MaintenanceRecordDTO {
	return MaintenanceRecordDTO{
		ID:              r.ID,
		AssetID:         r.AssetID.String(),
		FacilityID:      r.FacilityID,
		Type:            string(r.Type),
		MaintenanceDate: r.MaintenanceDate,
		Description:     r.Description,
		PerformedBy:     r.PerformedBy,
		ServiceProvider: r.ServiceProvider,
		Cost:            r.Cost,
		NextDueDate:     r.NextDueDate,
		Findings:        r.Findings,
		Recommendations: r.Recommendations,
		CreatedAt:       r.CreatedAt,
	}
}

// =============================================================================
// FACILITY REPORTS
// =============================================================================

type ValuationDTO struct {
	FacilityID                   string          `json:"facility_id"`
	AssetCount                   int             `json:"asset_count"`
	TotalOriginalCost            decimal.Decimal `json:"total_original_cost"`
	TotalAccumulatedDepreciation decimal.Decimal `json:"total_accumulated_depreciation"`
	TotalNetBookValue            decimal.Decimal `json:"total_net_book_value"`
	TotalMarketValue             decimal.Decimal `json:"total_market_value"`
}

func toValuationDTO(v *lifecycle.Valuation) ValuationDTO {
	return ValuationDTO{
		FacilityID:                   v.FacilityID,
		AssetCount:                   v.AssetCount,
		TotalOriginalCost:            v.TotalOriginalCost,
		TotalAccumulatedDepreciation: v.TotalAccumulatedDepreciation,
		TotalNetBookValue:            v.TotalNetBookValue,
		TotalMarketValue:             v.TotalMarketValue,
	}
}

type DisposalLineDTO struct {
	Asset    AssetDTO        `json:"asset"`
	GainLoss decimal.Decimal `json:"gain_loss"`
}

type LossOnDisposalDTO struct {
	FacilityID string    `json:"facility_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`

	// Disposed covers all terminal statuses: disposed, written_off, stolen.
	Disposed                 []DisposalLineDTO `json:"disposed"`
	TotalBookValueAtDisposal decimal.Decimal   `json:"total_book_value_at_disposal"`
	TotalDisposalValue       decimal.Decimal   `json:"total_disposal_value"`
	TotalGain                decimal.Decimal   `json:"total_gain"`
	TotalLoss                decimal.Decimal   `json:"total_loss"`
	NetLossGain              decimal.Decimal   `json:"net_loss_gain"`
}

func toLossOnDisposalDTO(r *lifecycle.LossOnDisposalReport) LossOnDisposalDTO {
	dto := LossOnDisposalDTO{
		FacilityID:               r.FacilityID,
		From:                     r.From,
		To:                       r.To,
		Disposed:                 make([]DisposalLineDTO, len(r.Disposed)),
		TotalBookValueAtDisposal: r.TotalBookValueAtDisposal,
		TotalDisposalValue:       r.TotalDisposalValue,
		TotalGain:                r.TotalGain,
		TotalLoss:                r.TotalLoss,
		NetLossGain:              r.NetLossGain,
	}
	for i, l := range r.Disposed {
		dto.Disposed[i] = DisposalLineDTO{Asset: toAssetDTO(l.Asset), GainLoss: l.GainLoss}
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}
