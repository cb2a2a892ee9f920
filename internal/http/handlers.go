package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-watch/internal/lifecycle"
	"github.com/kjstillabower/station-watch/internal/models"
	"github.com/kjstillabower/station-watch/internal/observability"
	"github.com/kjstillabower/station-watch/internal/refresh"
	"github.com/kjstillabower/station-watch/internal/traffic"
	"github.com/kjstillabower/station-watch/internal/watchlist"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinSamples int
	StartTime          time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// RefreshStatus reports the refresher's current state.
type RefreshStatus interface {
	Status() refresh.Status
}

// Handler serves the read-only status surface.
type Handler struct {
	watchlist        *watchlist.Watchlist
	refresher        RefreshStatus
	outcomes         *traffic.Tracker
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a Handler. refresher, outcomes and healthConfig may be nil.
func NewHandler(
	wl *watchlist.Watchlist,
	refresher RefreshStatus,
	outcomes *traffic.Tracker,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		watchlist:    wl,
		refresher:    refresher,
		outcomes:     outcomes,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// NewRouter wires the status routes and middleware.
func NewRouter(h *Handler, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/watchlist", h.GetWatchlist).Methods(http.MethodGet)
	router.HandleFunc("/watchlist/{name}", h.GetStation).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	return router
}

// stationView is the JSON shape of one watchlist entry.
type stationView struct {
	Name         string    `json:"name"`
	ID           string    `json:"id"`
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  int       `json:"humidityPct"`
	RainTrace    string    `json:"rainTrace"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toView(e models.WatchEntry) stationView {
	return stationView{
		Name:         e.Name,
		ID:           e.ID,
		TemperatureC: e.TemperatureC,
		HumidityPct:  e.HumidityPct,
		RainTrace:    e.RainTrace,
		UpdatedAt:    e.UpdatedAt,
	}
}

// GetWatchlist handles GET /watchlist. Entries are newest first.
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	snap := h.watchlist.Snapshot()
	stations := make([]stationView, 0, len(snap))
	for _, e := range snap {
		stations = append(stations, toView(e))
	}
	resp := map[string]interface{}{
		"count":    len(stations),
		"stations": stations,
	}
	if h.refresher != nil {
		resp["refresh"] = h.refresher.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStation handles GET /watchlist/{name}. The name matches ignoring case.
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(mux.Vars(r)["name"])
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_NAME", "station name is required")
		return
	}
	for _, e := range h.watchlist.Snapshot() {
		if strings.EqualFold(e.Name, name) {
			writeJSON(w, http.StatusOK, toView(e))
			return
		}
	}
	LoggerFromContext(r.Context(), h.logger).Debug("station not on watchlist", zap.String("station", name))
	writeError(w, r, http.StatusNotFound, "STATION_NOT_FOUND", "station is not on the watchlist")
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["weatherApi"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "station-watch",
		"phase":     lifecycle.CurrentPhase().String(),
		"stations":  h.watchlist.Len(),
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.refresher != nil {
		resp["refresh"] = h.refresher.Status().StateName
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates, in order: stopping, starting, fetch error rate.
func (h *Handler) computeHealthStatus() healthResult {
	switch lifecycle.CurrentPhase() {
	case lifecycle.Stopping:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "stopping"}
	case lifecycle.Starting:
		return healthResult{"starting", http.StatusServiceUnavailable, "starting"}
	}
	if h.outcomes != nil && h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		if h.outcomes.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct, h.healthConfig.DegradedMinSamples) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": {code, message, requestId}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": CorrelationID(r.Context()),
		},
	})
}
