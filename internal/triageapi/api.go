// Package triageapi exposes the HTTP surface: triage submissions and reads,
// the dashboard overview, and the WebSocket entry point.
package triageapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Create(ctx context.Context, in *triage.CreateInput) (*triage.Record, error)
	Get(ctx context.Context, id string) (*triage.Record, bool, error)
	List(ctx context.Context, f triage.ListFilter) ([]*triage.Record, error)
	UpdateStatus(ctx context.Context, id string, status triage.Status, updatedBy string) (*triage.Record, bool, error)
}

// DashboardService defines the dashboard read operation.
type DashboardService interface {
	Overview(ctx context.Context, facilityID string) (json.RawMessage, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
	dash   DashboardService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, dash DashboardService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if dash == nil {
		panic(xerrors.New("dashboard service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		dash:   dash,
	}
}

// RegisterRoutes attaches API endpoints to the router. authn guards every
// route; the WebSocket endpoint is registered separately because it
// authenticates from the query string before upgrading.
func (a *API) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn)
		r.Post("/triage", a.handleCreateTriage)
		r.Get("/triage", a.handleListTriage)
		r.Get("/triage/{id}", a.handleGetTriage)
		r.Patch("/triage/{id}/status", a.handleUpdateStatus)
		r.Get("/dashboard/overview", a.handleDashboardOverview)
	})
}

func (a *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error(ctx, err, "failed to write response")
	}
}
