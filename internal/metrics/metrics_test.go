package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := rr.Body.String(); !strings.Contains(got, "metrics unavailable") {
		t.Fatalf("expected body to mention metrics unavailable, got %q", got)
	}
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/readyz", http.StatusOK, 12*time.Millisecond)
	m.IncDatasetLoad("json", "ok")
	m.IncLiveEvent("node", "UPDATE", "applied")
	m.ObserveMarkerRebuild(2 * time.Millisecond)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	if !strings.Contains(body, "ipnet_http_requests_total{method=\"GET\",path=\"/readyz\",status=\"200\"} 1") {
		t.Fatalf("expected labeled request counter to be incremented; body=%s", body)
	}
	if !strings.Contains(body, "ipnet_dataset_loads_total{outcome=\"ok\",source=\"json\"} 1") {
		t.Fatalf("expected dataset load counter to be incremented; body=%s", body)
	}
	if !strings.Contains(body, "ipnet_live_events_total{entity=\"node\",kind=\"UPDATE\",outcome=\"applied\"} 1") {
		t.Fatalf("expected live event counter to be incremented; body=%s", body)
	}
	if !strings.Contains(body, "ipnet_marker_rebuilds_total 1") {
		t.Fatalf("expected marker rebuild counter to be incremented; body=%s", body)
	}
	if !strings.Contains(body, "ipnet_marker_rebuild_duration_seconds_count 1") {
		t.Fatalf("expected marker rebuild histogram to have one observation; body=%s", body)
	}
}
