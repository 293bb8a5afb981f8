// Package api exposes read-only HTTP views over the engine's state.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/hub"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/oppcache"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/registry"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/tracker"
)

// Handler serves the query API. All endpoints are read-only; mutations
// flow exclusively through the event pipeline.
type Handler struct {
	cache    *oppcache.Cache
	tracker  *tracker.Tracker
	registry *registry.Registry
	hub      *hub.Hub
	log      zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(cache *oppcache.Cache, tr *tracker.Tracker, reg *registry.Registry, h *hub.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		cache:    cache,
		tracker:  tr,
		registry: reg,
		hub:      h,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Router builds the chi router with middleware and routes.
func (h *Handler) Router(wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/api/v1/opportunities", h.Opportunities)
	r.Get("/api/v1/performance/snapshot", h.Snapshot)
	r.Get("/api/v1/performance/streaks", h.Streaks)
	r.Get("/api/v1/models", h.Models)
	r.Get("/ws", wsHandler)

	return r
}

// Health returns service liveness plus a few counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"live_opportunities": h.cache.Len(),
		"hub":                h.hub.Stats(),
	})
}

// Opportunities lists live opportunities, optionally filtered by
// ?sport=, ?market=, ?min_confidence=.
func (h *Handler) Opportunities(w http.ResponseWriter, r *http.Request) {
	filter := oppcache.Filter{
		SportKey:  r.URL.Query().Get("sport"),
		MarketKey: r.URL.Query().Get("market"),
	}
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			respondError(w, http.StatusBadRequest, "min_confidence must be a number in [0,1]")
			return
		}
		filter.MinConfidence = f
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": h.cache.List(filter),
	})
}

// Snapshot returns windowed performance metrics. ?window= is one of
// day, week, month, all (default all).
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(r.URL.Query().Get("window"))
	if !ok {
		respondError(w, http.StatusBadRequest, "window must be one of day, week, month, all")
		return
	}

	snap, err := h.tracker.Snapshot(window)
	if err != nil {
		// Degraded ledger: fail loudly instead of serving zeros.
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Streaks returns the win/loss streaks for a window.
func (h *Handler) Streaks(w http.ResponseWriter, r *http.Request) {
	window, ok := parseWindow(r.URL.Query().Get("window"))
	if !ok {
		respondError(w, http.StatusBadRequest, "window must be one of day, week, month, all")
		return
	}

	streaks, err := h.tracker.Streaks(window)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, streaks)
}

// Models returns the registry state: weights, metrics, evaluation
// counts.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"models": h.registry.Snapshot(),
	})
}

func parseWindow(name string) (tracker.Window, bool) {
	now := time.Now()
	switch name {
	case "day":
		return tracker.Day(now), true
	case "week":
		return tracker.Week(now), true
	case "month":
		return tracker.Month(now), true
	case "", "all":
		return tracker.AllTime(now), true
	default:
		return tracker.Window{}, false
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
