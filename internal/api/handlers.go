package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/miradorstack/mirador-guard/internal/cache"
	"github.com/miradorstack/mirador-guard/internal/fuse"
	"github.com/miradorstack/mirador-guard/internal/services"
	"github.com/miradorstack/mirador-guard/internal/utils"
)

// Handler serves the JSON read API over the guard service.
type Handler struct {
	service       *services.GuardService
	gate          *fuse.Gate
	defaultWindow time.Duration
	logger        *slog.Logger
}

// NewHandler builds the API handler. The gate may be nil when admission
// throttling is not wired.
func NewHandler(service *services.GuardService, gate *fuse.Gate, defaultWindow time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultWindow <= 0 {
		defaultWindow = time.Hour
	}
	return &Handler{service: service, gate: gate, defaultWindow: defaultWindow, logger: logger}
}

// Routes returns the full route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /api/v1/status", h.throttled(h.handleStatus))
	mux.HandleFunc("GET /api/v1/stability", h.throttled(h.handleStabilityOverview))
	mux.HandleFunc("GET /api/v1/stability/{component}", h.throttled(h.handleComponentStability))
	mux.HandleFunc("GET /api/v1/stability/{component}/reports", h.throttled(h.handleReports))
	mux.HandleFunc("GET /api/v1/metrics/summary", h.throttled(h.handleMetricsSummary))
	mux.HandleFunc("GET /api/v1/fuses", h.throttled(h.handleFuses))
	mux.HandleFunc("GET /api/v1/fuses/status", h.throttled(h.handleFuseStatus))
	mux.HandleFunc("GET /api/v1/fuses/events", h.throttled(h.handleFuseEvents))
	mux.HandleFunc("GET /api/v1/fuses/patterns", h.throttled(h.handleFusePatterns))
	return mux
}

// throttled rejects requests while the admission gate is engaged. Health
// stays reachable so orchestrators can still probe the process.
func (h *Handler) throttled(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.gate != nil && h.gate.Throttled() {
			writeError(w, http.StatusServiceUnavailable, "admission throttled by emergency fuse")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.CachedStatus(r.Context())
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("cached status read failed", "error", err)
		}
		// Fall back to a live document when the cache has nothing.
		writeJSON(w, http.StatusOK, services.StatusDocument{
			GeneratedAt: time.Now().UTC(),
			Stability:   h.service.StabilityOverview(),
			Fuses:       h.service.FuseStatus(),
			Patterns:    h.service.TripPatterns(),
		})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleStabilityOverview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"components": h.service.StabilityOverview()})
}

func (h *Handler) handleComponentStability(w http.ResponseWriter, r *http.Request) {
	component := r.PathValue("component")
	view, err := h.service.ComponentStability(component)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	component := r.PathValue("component")
	reports := h.service.Reports(component)
	writeJSON(w, http.StatusOK, map[string]any{"component": component, "reports": reports})
}

func (h *Handler) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	window, err := utils.ParseWindow(r.URL.Query().Get("window"), h.defaultWindow)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid window: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.service.MetricsSummary(window))
}

func (h *Handler) handleFuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fuses": h.service.Fuses()})
}

func (h *Handler) handleFuseStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.FuseStatus())
}

func (h *Handler) handleFuseEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": h.service.TriggerEvents()})
}

func (h *Handler) handleFusePatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"patterns": h.service.TripPatterns()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
