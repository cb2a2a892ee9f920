package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies label dimensions match how the client, refresh,
// cache and http packages use them.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/watchlist", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/watchlist").Observe(0.01)
	FetchCallsTotal.WithLabelValues("success").Inc()
	FetchCallsTotal.WithLabelValues("error").Inc()
	FetchDuration.WithLabelValues("success").Observe(0.1)
	FetchRetriesTotal.Inc()
	FetchErrorsTotal.WithLabelValues("timeout").Inc()
	RefreshCyclesTotal.WithLabelValues("signal").Inc()
	RefreshCycleDuration.Observe(0.5)
	WatchlistSize.Set(3)
	CacheHitsTotal.WithLabelValues("reading").Inc()
	CacheErrorsTotal.WithLabelValues("get", "timeout").Inc()
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("bom_api", "closed", "open", 1)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("bom_api")); got != 1 {
		t.Errorf("circuitBreakerState = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CircuitBreakerTransitionsTotal.WithLabelValues("bom_api", "closed", "open")); got < 1 {
		t.Errorf("circuitBreakerTransitionsTotal = %v, want >= 1", got)
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies MetricsHandler serves the
// text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	FetchCallsTotal.WithLabelValues("success").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "fetchCallsTotal") {
		t.Error("MetricsHandler response should contain fetchCallsTotal")
	}
}
