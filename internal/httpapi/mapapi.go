package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"ipnet/site-go/internal/mapview"
	"ipnet/site-go/internal/mesh"
)

// mapStateResponse is the full rendering state for one filter selection: the
// marker set, where the camera should go, and the counts the filter bar shows.
type mapStateResponse struct {
	Enabled    bool             `json:"enabled"`
	TileURL    string           `json:"tileUrl,omitempty"`
	Clustering bool             `json:"clustering"`
	Markers    []mapview.Marker `json:"markers"`
	Viewport   mapview.Viewport `json:"viewport"`
	Counts     mapStateCounts   `json:"counts"`
	Filter     mesh.FilterState `json:"filter"`
}

type mapStateCounts struct {
	Total    int `json:"total"`
	Filtered int `json:"filtered"`
	Markers  int `json:"markers"`
}

// handleMapState computes the map for the requested filter selection. Facets
// arrive as query params (hardware, role, owner repeatable; online and
// testing as flags) and combine with AND. Each request gets its own engine
// instance so concurrent selections never share marker state.
func (h *Handler) handleMapState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := mesh.FilterState{
		Hardware: splitParams(q["hardware"]),
		Roles:    splitParams(q["role"]),
		Owners:   splitParams(q["owner"]),
	}
	var err error
	if state.OnlineOnly, err = boolParam(q.Get("online"), false); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_param", "online must be a boolean", nil)
		return
	}
	if state.ShowTesting, err = boolParam(q.Get("testing"), false); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_param", "testing must be a boolean", nil)
		return
	}

	c := h.listener.Collections()
	filtered := mesh.Filter(c.Nodes, state)

	var pinned *mesh.Node
	if pin := q.Get("pinned"); pin != "" {
		for _, n := range c.Nodes {
			if n.ID == pin {
				node := n
				pinned = &node
				break
			}
		}
		if pinned == nil {
			h.writeError(w, http.StatusNotFound, "node_not_found", "pinned node does not exist", map[string]any{"nodeId": pin})
			return
		}
	}

	engine := mapview.New(h.log, h.mapCfg)
	if on := q.Get("clustering"); on != "" {
		clustering, err := boolParam(on, engine.Clustering())
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_param", "clustering must be a boolean", nil)
			return
		}
		engine.SetClustering(clustering)
	}

	markers := engine.Reconcile(filtered, pinned, c.Members)
	if markers == nil {
		markers = []mapview.Marker{}
	}
	viewport := engine.FitViewport(markers, pinned)

	h.writeJSON(w, http.StatusOK, mapStateResponse{
		Enabled:    engine.Enabled(),
		TileURL:    h.mapCfg.TileURL,
		Clustering: engine.Clustering(),
		Markers:    markers,
		Viewport:   viewport,
		Counts: mapStateCounts{
			Total:    len(c.Nodes),
			Filtered: len(filtered),
			Markers:  len(markers),
		},
		Filter: state,
	})
}

// handleClusterZoom resolves a click on a cluster glyph into the next camera
// position.
func (h *Handler) handleClusterZoom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	zoom, errZoom := strconv.Atoi(q.Get("zoom"))
	if errLat != nil || errLng != nil || errZoom != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_param", "lat, lng and zoom are required", nil)
		return
	}

	center, next := mapview.ClusterZoom(zoom, mapview.LatLng{Lat: lat, Lng: lng})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"center": center,
		"zoom":   next,
	})
}

// splitParams flattens repeatable facet params, also accepting comma-joined
// values within a single param.
func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolParam(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}
