// Package api provides HTTP handlers for the topology planner.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/invariant"
	"github.com/artpar/fa-topology/internal/shell/planner"
	"github.com/artpar/fa-topology/internal/shell/render"
	"github.com/artpar/fa-topology/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	planner *planner.Service
	logger  *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(p *planner.Service, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		planner: p,
		logger:  l.With("component", "api"),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.Get("/health", h.handleHealth)

	r.Route("/api/v1/plans", func(r chi.Router) {
		r.Post("/", h.handleCreatePlan)
		r.Get("/", h.handleListPlans)
		r.Get("/{id}", h.handleGetPlan)
		r.Get("/{id}/terraform", h.handleGetTerraform)
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// =============================================================================
// Plan Handlers
// =============================================================================

func (h *Handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	result, err := h.planner.Plan(r.Context(), config.Raw{
		Region:       req.Region,
		DomainName:   req.DomainName,
		DNSZoneID:    req.DNSZoneID,
		CPUUnits:     req.CPUUnits,
		MemoryMiB:    req.MemoryMiB,
		DesiredCount: req.DesiredCount,
		VPCID:        req.VPCID,
		SubnetIDs:    req.SubnetIDs,
	})

	var cfgErr *config.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: cfgErr.Error(),
			Code:  "config_error",
			Field: cfgErr.Field,
		})
	case errors.Is(err, planner.ErrBlocked):
		h.writeJSON(w, http.StatusUnprocessableEntity, planToResponse(result))
	case err != nil:
		h.logger.Error("failed to plan", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to plan", "internal_error")
	default:
		h.writeJSON(w, http.StatusCreated, planToResponse(result))
	}
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	plan, err := h.planner.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "failed to get plan")
		return
	}

	h.writeJSON(w, http.StatusOK, recordToResponse(plan))
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	opts = opts.Normalize()

	plans, err := h.planner.History(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list plans", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list plans", "internal_error")
		return
	}

	total, err := h.planner.Count(r.Context())
	if err != nil {
		h.logger.Error("failed to count plans", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list plans", "internal_error")
		return
	}

	resp := ListPlansResponse{
		Plans:  make([]PlanRecordResponse, 0, len(plans)),
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for i := range plans {
		resp.Plans = append(resp.Plans, recordToResponse(&plans[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetTerraform(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.planner.Rebuild(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "failed to rebuild plan")
		return
	}

	data, err := render.HCL(result.Config, result.Graph, result.Outputs)
	if err != nil {
		h.logger.Error("failed to render terraform", "plan_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to render terraform", "internal_error")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write terraform", "error", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, message string) {
	if isNotFound(err) {
		h.writeError(w, http.StatusNotFound, "plan not found", "plan_not_found")
		return
	}
	h.logger.Error(message, "error", err)
	h.writeError(w, http.StatusInternalServerError, message, "internal_error")
}

func planToResponse(result *planner.Result) PlanResponse {
	resp := PlanResponse{
		Fingerprint:         result.Document.Fingerprint,
		Routing:             result.Document.Routing,
		Changed:             result.Changed,
		PreviousFingerprint: result.PreviousFingerprint,
		Blocked:             result.Blocked(),
		Outputs:             result.Document.Outputs,
		Violations:          result.Document.Violations,
		ApplyOrder:          result.Document.ApplyOrder,
	}
	if result.Record != nil {
		resp.ID = result.Record.ID
	}
	return resp
}

func recordToResponse(p *store.Plan) PlanRecordResponse {
	violations := p.Violations
	if violations == nil {
		violations = []invariant.Violation{}
	}
	return PlanRecordResponse{
		ID:           p.ID,
		Fingerprint:  p.Fingerprint,
		Region:       p.Region,
		Routing:      p.Routing,
		DomainName:   p.DomainName,
		Blocked:      p.Blocked,
		ErrorCount:   p.ErrorCount,
		WarningCount: p.WarningCount,
		Violations:   violations,
		Document:     p.Document,
		CreatedAt:    p.CreatedAt,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
