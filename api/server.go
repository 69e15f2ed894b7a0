/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: One zap line per request
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for frontends

ROUTE GROUPS:
  /api/assets/*                     Asset register, depreciation schedule, disposal, maintenance
  /api/transfers/*                  Transfer workflow
  /api/facilities/{facilityID}/*    Runs, reports, register, valuation
  /health                           Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Asset routes
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.CreateAsset)
			r.Get("/{id}", h.GetAsset)
			r.Patch("/{id}", h.UpdateAsset)
			r.Delete("/{id}", h.DeleteAsset)
			r.Get("/{id}/depreciation", h.GetDepreciationSchedule)
			r.Get("/{id}/depreciation/projection", h.GetProjection)
			r.Get("/{id}/transfers", h.GetTransferHistory)
			r.Post("/{id}/dispose", h.DisposeAsset)
			r.Get("/{id}/maintenance", h.GetMaintenanceHistory)
			r.Post("/{id}/maintenance", h.RecordMaintenance)
		})

		// Transfer routes
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", h.InitiateTransfer)
			r.Get("/{id}", h.GetTransfer)
			r.Post("/{id}/complete", h.CompleteTransfer)
			r.Post("/{id}/reject", h.RejectTransfer)
			r.Post("/{id}/cancel", h.CancelTransfer)
		})

		// Facility routes
		r.Route("/facilities/{facilityID}", func(r chi.Router) {
			r.Get("/depreciation/runs", h.ListRuns)
			r.Post("/depreciation/runs", h.RunDepreciation)
			r.Get("/depreciation/report", h.GetDepreciationReport)
			r.Get("/disposals/report", h.GetLossOnDisposalReport)
			r.Get("/maintenance/due", h.ListMaintenanceDue)
			r.Get("/register", h.GetRegister)
			r.Get("/valuation", h.GetValuation)
		})
	})

	return r
}
