package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/live"
	"ipnet/site-go/internal/mapview"
	"ipnet/site-go/internal/mesh"
	"ipnet/site-go/internal/metrics"
)

func f64Ptr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func testMapConfig() mapview.Config {
	cfg := mapview.DefaultConfig()
	cfg.TileURL = "https://tile.example/{z}/{x}/{y}.png"
	return cfg
}

func testDataset() mesh.Dataset {
	return mesh.Dataset{
		Config: mesh.SiteConfig{"site_name": "test net"},
		Nodes: []mesh.Node{
			{
				ID: "rep01.ip3.ipnt.uk", Name: "Repeater 1", Area: "ip3",
				Hardware: "Heltec V3", MeshRole: "repeater", MemberID: "m1",
				ShowOnMap: true,
				Location:  &mesh.Location{Lat: f64Ptr(52.0), Lng: f64Ptr(1.0)},
			},
			{
				ID: "cli01.ip1.ipnt.uk", Name: "Client 1", Area: "ip1",
				Hardware: "RAK4631", MeshRole: "client", MemberID: "m2",
				ShowOnMap: true, IsOnline: boolPtr(false),
				Location: &mesh.Location{Lat: f64Ptr(52.2), Lng: f64Ptr(1.2)},
			},
			{
				ID: "hid01.ip1.ipnt.uk", Name: "Hidden", Area: "ip1",
				MeshRole: "client", ShowOnMap: false,
			},
		},
		Members: []mesh.Member{{ID: "m1", Name: "Alice"}, {ID: "m2", Name: "Bob"}},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	log := zerolog.Nop()
	m := metrics.New()
	engine := mapview.New(log, testMapConfig())
	listener := live.NewListener(log, engine, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go listener.Run(ctx)
	t.Cleanup(cancel)
	t.Cleanup(listener.Close)

	listener.Replace(testDataset())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(listener.Collections().Nodes) == 3 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	return NewHandler(log, Options{
		Listener:  listener,
		Metrics:   m,
		MapConfig: testMapConfig(),
		Domain:    "ipnt.uk",
	})
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v: %s", err, rr.Body.String())
	}
	return body
}

func get(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.Router().ServeHTTP(rr, req)
	return rr
}

func TestAPIData_ReturnsCombinedPayload(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/data")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	if _, ok := body["config"].(map[string]any); !ok {
		t.Fatalf("expected config object, got %T", body["config"])
	}
	if nodes, ok := body["nodes"].([]any); !ok || len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %T %v", body["nodes"], body["nodes"])
	}
	if members, ok := body["members"].([]any); !ok || len(members) != 2 {
		t.Fatalf("expected 2 members, got %T %v", body["members"], body["members"])
	}
}

func TestMapState_DefaultSelection(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/v1/map")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	markers, ok := body["markers"].([]any)
	if !ok || len(markers) != 2 {
		t.Fatalf("expected 2 markers (hidden node excluded), got %T %v", body["markers"], body["markers"])
	}
	counts := body["counts"].(map[string]any)
	if counts["total"].(float64) != 3 || counts["filtered"].(float64) != 3 || counts["markers"].(float64) != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if body["clustering"] != true {
		t.Fatalf("expected clustering on by default, got %v", body["clustering"])
	}
	viewport, ok := body["viewport"].(map[string]any)
	if !ok || viewport["fit"] != true {
		t.Fatalf("expected bounds-fit viewport for multiple markers, got %v", body["viewport"])
	}
}

func TestMapState_FacetFilters(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/v1/map?hardware=heltec")
	body := decodeBody(t, rr)
	markers := body["markers"].([]any)
	if len(markers) != 1 {
		t.Fatalf("expected 1 heltec marker, got %d", len(markers))
	}
	m := markers[0].(map[string]any)
	if m["nodeId"] != "rep01.ip3.ipnt.uk" {
		t.Fatalf("expected repeater marker, got %v", m["nodeId"])
	}

	rr = get(t, h, "/api/v1/map?online=true")
	body = decodeBody(t, rr)
	if len(body["markers"].([]any)) != 1 {
		t.Fatalf("expected offline node excluded, got %v", body["markers"])
	}

	rr = get(t, h, "/api/v1/map?role=client&owner=m1")
	body = decodeBody(t, rr)
	if len(body["markers"].([]any)) != 0 {
		t.Fatalf("expected AND semantics to exclude everything, got %v", body["markers"])
	}
}

func TestMapState_PinnedNode(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/v1/map?hardware=rak&pinned=rep01.ip3.ipnt.uk")
	body := decodeBody(t, rr)

	markers := body["markers"].([]any)
	if len(markers) != 2 {
		t.Fatalf("expected pinned node unioned into filtered set, got %d markers", len(markers))
	}
	viewport := body["viewport"].(map[string]any)
	if viewport["fit"] == true {
		t.Fatal("expected pinned viewport to never auto-fit")
	}
	if viewport["zoom"].(float64) != float64(testMapConfig().PinnedZoom) {
		t.Fatalf("expected pinned zoom, got %v", viewport["zoom"])
	}
}

func TestMapState_UnknownPinnedNode_Returns404(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/v1/map?pinned=ghost")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	errObj := body["error"].(map[string]any)
	if errObj["code"] != "node_not_found" {
		t.Fatalf("expected node_not_found, got %v", errObj["code"])
	}
}

func TestMapState_InvalidBoolParam_Returns400(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/v1/map?online=banana")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMapState_ClusteringOverride(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/v1/map?clustering=false")
	body := decodeBody(t, rr)
	if body["clustering"] != false {
		t.Fatalf("expected clustering off, got %v", body["clustering"])
	}
	for _, raw := range body["markers"].([]any) {
		m := raw.(map[string]any)
		if m["layer"] != mapview.LayerMap {
			t.Fatalf("expected markers on the map layer, got %v", m["layer"])
		}
	}
}

func TestClusterZoom_Endpoint(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/api/v1/map/cluster-zoom?lat=52.0&lng=1.0&zoom=10")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["zoom"].(float64) != 12 {
		t.Fatalf("expected zoom 12, got %v", body["zoom"])
	}

	rr = get(t, h, "/api/v1/map/cluster-zoom?lat=52.0&zoom=10")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing lng, got %d", rr.Code)
	}
}

func TestShortNodeURL_RedirectsPermanently(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/ip3/rep01")
	if rr.Code != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/nodes/ip3/rep01" {
		t.Fatalf("expected redirect to /nodes/ip3/rep01, got %s", loc)
	}
}

func TestPages_Render(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/", "/contact/", "/members/", "/nodes/", "/stats/"} {
		rr := get(t, h, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d: %s", path, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("expected html for %s, got %s", path, ct)
		}
	}
}

func TestNodeDetailPage_KnownAndUnknown(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/nodes/ip3/rep01")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Repeater 1") {
		t.Fatal("expected node name in detail page")
	}

	// Unknown node falls back to the list view rather than a 404.
	rr = get(t, h, "/nodes/ip9/ghost")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected list fallback 200, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadyz_NoDatabaseConfigured(t *testing.T) {
	h := newTestHandler(t)

	rr := get(t, h, "/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready without database, got %d", rr.Code)
	}
}

func TestMetricsEndpoint_Exposed(t *testing.T) {
	h := newTestHandler(t)

	get(t, h, "/api/data")

	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ipnet_http_requests_total") {
		t.Fatal("expected request counter in metrics output")
	}
}
