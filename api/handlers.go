/*
handlers.go - HTTP API handlers for the asset engine

PURPOSE:
  Exposes the asset lifecycle and depreciation engine via REST API. Handles
  HTTP request/response and JSON serialization, and delegates to the
  lifecycle services and the depreciation engine.

ENDPOINTS:
  Assets:
    POST   /api/assets                          Register asset
    GET    /api/assets?facility_id=             List assets (category, status, department_id, search)
    GET    /api/assets/{id}                     Get asset
    PATCH  /api/assets/{id}                     Partial update
    DELETE /api/assets/{id}                     Soft delete

  Depreciation:
    GET    /api/assets/{id}/depreciation             Posted schedule
    GET    /api/assets/{id}/depreciation/projection  Forward projection (from, periods)
    POST   /api/facilities/{facilityID}/depreciation/runs    Run a period
    GET    /api/facilities/{facilityID}/depreciation/runs    Run history
    GET    /api/facilities/{facilityID}/depreciation/report  Year or month report

  Transfers:
    POST   /api/transfers                       Initiate
    GET    /api/transfers/{id}                  Get
    POST   /api/transfers/{id}/complete         Complete
    POST   /api/transfers/{id}/reject           Reject
    POST   /api/transfers/{id}/cancel           Cancel
    GET    /api/assets/{id}/transfers           History

  Disposal:
    POST   /api/assets/{id}/dispose             Dispose, write off, stolen or damaged
    GET    /api/facilities/{facilityID}/disposals/report  Gain/loss over a date range

  Maintenance:
    POST   /api/assets/{id}/maintenance         Record
    GET    /api/assets/{id}/maintenance         History
    GET    /api/facilities/{facilityID}/maintenance/due  Due within ?days=

  Facility:
    GET    /api/facilities/{facilityID}/register   Asset register
    GET    /api/facilities/{facilityID}/valuation  Valuation totals

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body or query parameter
  - 404: Resource not found
  - 409: Conflict (duplicate code/serial, concurrent write, run in progress)
  - 422: Validation or lifecycle rule rejected the request
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/asset"
	"github.com/warp/asset-engine/depreciation"
	"github.com/warp/asset-engine/lifecycle"
	"github.com/warp/asset-engine/logger"
)

// DefaultProjectionPeriods is used when ?periods= is absent.
const DefaultProjectionPeriods = 12

// MaxProjectionPeriods bounds ?periods=.
const MaxProjectionPeriods = 600

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Services bundles the domain services the handlers delegate to.
type Services struct {
	Registry    *lifecycle.Registry
	Transfers   *lifecycle.Transfers
	Disposals   *lifecycle.Disposals
	Maintenance *lifecycle.Maintenance
	Engine      *depreciation.Engine
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services
	log *zap.Logger
}

// NewHandler creates a new handler over the given services.
func NewHandler(s Services, log *zap.Logger) *Handler {
	return &Handler{Services: s, log: logger.OrNop(log).Named("api")}
}

// =============================================================================
// ASSET HANDLERS
// =============================================================================

// CreateAsset registers a new asset.
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req asset.CreateParams
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := h.Registry.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create asset", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAssetDTO(a))
}

// ListAssets returns a facility's live assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	facilityID := q.Get("facility_id")
	if facilityID == "" {
		writeError(w, http.StatusBadRequest, "facility_id is required", nil)
		return
	}

	assets, err := h.Registry.List(r.Context(), facilityID, lifecycle.ListFilter{
		Category:     asset.Category(q.Get("category")),
		Status:       asset.Status(q.Get("status")),
		DepartmentID: q.Get("department_id"),
		Search:       q.Get("search"),
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to list assets", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssetDTOs(assets))
}

// GetAsset returns a single asset.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.Registry.Get(r.Context(), assetID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get asset", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssetDTO(a))
}

// UpdateAsset applies a partial update.
func (h *Handler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req UpdateAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := h.Registry.Update(r.Context(), assetID(r), req.toPatch())
	if err != nil {
		h.writeServiceError(w, r, "Failed to update asset", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssetDTO(a))
}

// DeleteAsset soft deletes an asset.
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Delete(r.Context(), assetID(r)); err != nil {
		h.writeServiceError(w, r, "Failed to delete asset", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DEPRECIATION HANDLERS
// =============================================================================

// GetDepreciationSchedule returns the posted ledger of an asset.
func (h *Handler) GetDepreciationSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.Schedule(r.Context(), assetID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get depreciation schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, toLedgerEntryDTOs(entries))
}

// GetProjection projects future periods without posting them.
// GET /api/assets/{id}/depreciation/projection?from=2025-07&periods=12
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var from asset.Period
	if s := q.Get("from"); s != "" {
		p, err := asset.ParsePeriod(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM)", err)
			return
		}
		from = p
	}

	n := DefaultProjectionPeriods
	if s := q.Get("periods"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > MaxProjectionPeriods {
			writeError(w, http.StatusBadRequest, "Invalid periods", err)
			return
		}
		n = v
	}

	projected, err := h.Engine.Projection(r.Context(), assetID(r), from, n)
	if err != nil {
		h.writeServiceError(w, r, "Failed to project depreciation", err)
		return
	}

	dtos := make([]ProjectedPeriodDTO, len(projected))
	for i, p := range projected {
		dtos[i] = ProjectedPeriodDTO{
			Period:                  p.Period.String(),
			OpeningBookValue:        p.OpeningBookValue,
			DepreciationAmount:      p.DepreciationAmount,
			AccumulatedDepreciation: p.AccumulatedDepreciation,
			ClosingBookValue:        p.ClosingBookValue,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunDepreciation posts one period for every eligible asset in a facility.
// Per-asset failures are reported in the body; the response is still 200.
func (h *Handler) RunDepreciation(w http.ResponseWriter, r *http.Request) {
	var req RunDepreciationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	period, err := asset.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}
	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "api"
	}

	result, err := h.Engine.Run(r.Context(), chi.URLParam(r, "facilityID"), period, triggeredBy)
	if err != nil {
		h.writeServiceError(w, r, "Depreciation run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toRunResultDTO(result))
}

// ListRuns returns the run history of a facility, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Engine.Runs(r.Context(), chi.URLParam(r, "facilityID"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDepreciationReport summarizes a facility for a year or a month.
// GET /api/facilities/{facilityID}/depreciation/report?year=2025&month=3
func (h *Handler) GetDepreciationReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	var month *int
	if s := q.Get("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		month = &m
	}

	report, err := h.Engine.Report(r.Context(), chi.URLParam(r, "facilityID"), year, month)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build report", err)
		return
	}

	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// InitiateTransfer opens a pending transfer.
func (h *Handler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.InitiateTransferParams
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.Transfers.Initiate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "Failed to initiate transfer", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransferDTO(t))
}

// GetTransfer returns a single transfer.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := h.Transfers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransferDTO(t))
}

// CompleteTransfer moves the asset to the destination.
func (h *Handler) CompleteTransfer(w http.ResponseWriter, r *http.Request) {
	var req CompleteTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.Transfers.Complete(r.Context(), chi.URLParam(r, "id"), req.ReceivedBy)
	if err != nil {
		h.writeServiceError(w, r, "Failed to complete transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransferDTO(t))
}

// RejectTransfer closes a pending transfer at the receiving side.
func (h *Handler) RejectTransfer(w http.ResponseWriter, r *http.Request) {
	var req ResolveTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.Transfers.Reject(r.Context(), chi.URLParam(r, "id"), req.By, req.Note)
	if err != nil {
		h.writeServiceError(w, r, "Failed to reject transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransferDTO(t))
}

// CancelTransfer closes a pending transfer at the sending side.
func (h *Handler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	var req ResolveTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.Transfers.Cancel(r.Context(), chi.URLParam(r, "id"), req.By, req.Note)
	if err != nil {
		h.writeServiceError(w, r, "Failed to cancel transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransferDTO(t))
}

// GetTransferHistory returns an asset's transfers, newest first.
func (h *Handler) GetTransferHistory(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.Transfers.History(r.Context(), assetID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get transfer history", err)
		return
	}

	dtos := make([]TransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = toTransferDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DISPOSAL HANDLERS
// =============================================================================

// DisposeAsset moves an asset into a terminal status.
func (h *Handler) DisposeAsset(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.DisposeParams
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := h.Disposals.Dispose(r.Context(), assetID(r), req)
	if err != nil {
		h.writeServiceError(w, r, "Failed to dispose asset", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssetDTO(a))
}

// GetLossOnDisposalReport totals disposal gains and losses.
// GET /api/facilities/{facilityID}/disposals/report?from=2025-01-01&to=2025-12-31
func (h *Handler) GetLossOnDisposalReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := time.Parse(time.DateOnly, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM-DD)", err)
		return
	}
	to, err := time.Parse(time.DateOnly, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to (use YYYY-MM-DD)", err)
		return
	}

	report, err := h.Disposals.LossOnDisposalReport(r.Context(), chi.URLParam(r, "facilityID"), from, to)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build disposal report", err)
		return
	}

	writeJSON(w, http.StatusOK, toLossOnDisposalDTO(report))
}

// =============================================================================
// MAINTENANCE HANDLERS
// =============================================================================

// RecordMaintenance appends a maintenance record for the asset in the path.
func (h *Handler) RecordMaintenance(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.RecordMaintenanceParams
	if !decodeBody(w, r, &req) {
		return
	}
	req.AssetID = assetID(r)

	rec, err := h.Maintenance.Record(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "Failed to record maintenance", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMaintenanceDTO(*rec))
}

// GetMaintenanceHistory returns an asset's maintenance records, newest first.
func (h *Handler) GetMaintenanceHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.Maintenance.History(r.Context(), assetID(r))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get maintenance history", err)
		return
	}

	dtos := make([]MaintenanceRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toMaintenanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListMaintenanceDue returns assets due for maintenance within ?days=.
func (h *Handler) ListMaintenanceDue(w http.ResponseWriter, r *http.Request) {
	days := lifecycle.DefaultDueWindow
	if s := r.URL.Query().Get("days"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid days", err)
			return
		}
		days = v
	}

	assets, err := h.Maintenance.Due(r.Context(), chi.URLParam(r, "facilityID"), days)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list maintenance due", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssetDTOs(assets))
}

// =============================================================================
// FACILITY HANDLERS
// =============================================================================

// GetRegister returns the asset register of a facility.
func (h *Handler) GetRegister(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Registry.Register(r.Context(), chi.URLParam(r, "facilityID"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get register", err)
		return
	}

	writeJSON(w, http.StatusOK, toAssetDTOs(assets))
}

// GetValuation returns the valuation totals of a facility.
func (h *Handler) GetValuation(w http.ResponseWriter, r *http.Request) {
	v, err := h.Registry.Valuation(r.Context(), chi.URLParam(r, "facilityID"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get valuation", err)
		return
	}

	writeJSON(w, http.StatusOK, toValuationDTO(v))
}

// =============================================================================
// HELPERS
// =============================================================================

func assetID(r *http.Request) asset.AssetID {
	return asset.AssetID(chi.URLParam(r, "id"))
}

// decodeBody decodes the JSON body into dst. On failure it writes a 400
// and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case asset.IsNotFound(err):
		return http.StatusNotFound
	case asset.IsConflict(err):
		return http.StatusConflict
	case asset.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, status, message, nil)
		return
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	var verr *asset.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
