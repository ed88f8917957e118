package mapview

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/mesh"
)

// Marker colors. Testing wins over online state; the three are mutually
// exclusive.
const (
	ColorTesting = "#8b5cf6"
	ColorOnline  = "#22c55e"
	ColorOffline = "#ef4444"
)

// The pinned node renders larger than everything else; this is the only size
// distinction on the map.
const (
	sizeDefault = 10
	sizePinned  = 16
)

// Layer names for marker membership.
const (
	LayerMap     = "map"
	LayerCluster = "cluster"
)

const (
	clusterZoomStep = 2
	clusterMaxZoom  = 15
	tooltipOffsetX  = 12
)

// LatLng is a geographic point.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Tooltip is the permanent offset-right label attached to a marker when pin
// labels are enabled. Suppressing tooltips never affects popups.
type Tooltip struct {
	Text      string `json:"text"`
	Direction string `json:"direction"`
	Permanent bool   `json:"permanent"`
	OffsetX   int    `json:"offsetX"`
}

// Popup is the interaction payload for a marker. AutoClose is always false:
// popups stay open across unrelated map interactions.
type Popup struct {
	Title      string `json:"title"`
	Owner      string `json:"owner"`
	DetailPath string `json:"detailPath"`
	AutoClose  bool   `json:"autoClose"`
}

// Marker is the rendered representation of one visible node. Markers are
// exclusively owned by the Engine and rebuilt wholesale on every reconcile.
type Marker struct {
	NodeID  string   `json:"nodeId"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Color   string   `json:"color"`
	Size    int      `json:"size"`
	Pinned  bool     `json:"pinned"`
	Layer   string   `json:"layer"`
	Tooltip *Tooltip `json:"tooltip,omitempty"`
	Popup   Popup    `json:"popup"`
}

// Config holds the engine's rendering settings.
type Config struct {
	TileURL           string
	DefaultCenter     LatLng
	DefaultZoom       int
	PinnedZoom        int
	SingleNodeZoom    int
	MaxFitZoom        int
	FitPadding        int
	ClusteringEnabled bool
	PinLabelsEnabled  bool
}

// DefaultConfig returns sensible map settings; the default center covers the
// network's home region until config overrides it.
func DefaultConfig() Config {
	return Config{
		DefaultCenter:     LatLng{Lat: 52.06, Lng: 1.15},
		DefaultZoom:       10,
		PinnedZoom:        15,
		SingleNodeZoom:    13,
		MaxFitZoom:        15,
		FitPadding:        40,
		ClusteringEnabled: true,
		PinLabelsEnabled:  true,
	}
}

// Engine owns the map marker set. On every reconcile all existing markers are
// removed and a fresh set is built from the visible node selection; no
// incremental diffing is attempted. Redraw cost is traded for simplicity at
// community scale, and a whole class of stale-marker bugs goes away with it.
type Engine struct {
	log        zerolog.Logger
	cfg        Config
	enabled    bool
	clustering bool
	markers    []Marker
}

// New builds an engine. Without a tile URL there is no rendering substrate,
// so the engine short-circuits into a no-op rather than failing the page.
func New(log zerolog.Logger, cfg Config) *Engine {
	e := &Engine{
		log:        log,
		cfg:        cfg,
		enabled:    cfg.TileURL != "",
		clustering: cfg.ClusteringEnabled,
	}
	if !e.enabled {
		log.Warn().Msg("map tile provider not configured, map engine disabled")
	}
	return e
}

// Enabled reports whether the engine renders anything at all.
func (e *Engine) Enabled() bool {
	return e != nil && e.enabled
}

// Markers returns the current marker set.
func (e *Engine) Markers() []Marker {
	if e == nil {
		return nil
	}
	return e.markers
}

// Reconcile rebuilds the marker set from the filtered node list. The pinned
// node, when present, is unioned in even if the active filters exclude it: a
// node being viewed individually must always remain visible. A node renders
// only when ShowOnMap is set and both coordinates exist; nodes with no
// location never reach the map regardless of ShowOnMap. Individual marker
// construction failures are logged and skipped so one bad record never blocks
// the rest of the set.
func (e *Engine) Reconcile(filtered []mesh.Node, pinned *mesh.Node, members []mesh.Member) []Marker {
	if !e.Enabled() {
		return nil
	}

	visible := filtered
	if pinned != nil {
		found := false
		for _, n := range filtered {
			if n.ID == pinned.ID {
				found = true
				break
			}
		}
		if !found {
			visible = make([]mesh.Node, 0, len(filtered)+1)
			visible = append(visible, filtered...)
			visible = append(visible, *pinned)
		}
	}

	layer := LayerMap
	if e.clustering {
		layer = LayerCluster
	}

	markers := make([]Marker, 0, len(visible))
	for _, n := range visible {
		if !n.ShowOnMap || !n.HasLocation() {
			continue
		}
		m, err := e.buildMarker(n, pinned != nil && n.ID == pinned.ID, layer, members)
		if err != nil {
			e.log.Warn().Err(err).Str("node_id", n.ID).Msg("skipping marker")
			continue
		}
		markers = append(markers, m)
	}

	e.markers = markers
	return markers
}

// SetClustering toggles the clustering layer. The entire marker set moves
// between direct-to-map and clustering-layer membership without being
// rebuilt.
func (e *Engine) SetClustering(on bool) {
	if e == nil {
		return
	}
	e.clustering = on
	layer := LayerMap
	if on {
		layer = LayerCluster
	}
	for i := range e.markers {
		e.markers[i].Layer = layer
	}
}

// Clustering reports the current layer mode.
func (e *Engine) Clustering() bool {
	return e != nil && e.clustering
}

// ClusterZoom resolves a click on a cluster glyph: zoom in by two levels
// around the cluster's anchor while below the ceiling. Bounds-fitting to the
// cluster's content is deliberately not used; fitting the view to a cluster
// while other viewport changes race it drives the camera out of range.
func ClusterZoom(current int, anchor LatLng) (LatLng, int) {
	if current < clusterMaxZoom {
		return anchor, current + clusterZoomStep
	}
	return anchor, current
}

func (e *Engine) buildMarker(n mesh.Node, isPinned bool, layer string, members []mesh.Member) (Marker, error) {
	lat := *n.Location.Lat
	lng := *n.Location.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Marker{}, fmt.Errorf("coordinates out of range: %v,%v", lat, lng)
	}

	m := Marker{
		NodeID: n.ID,
		Lat:    lat,
		Lng:    lng,
		Color:  markerColor(n),
		Size:   sizeDefault,
		Pinned: isPinned,
		Layer:  layer,
		Popup: Popup{
			Title:      n.Name,
			Owner:      mesh.OwnerName(members, n.MemberID),
			DetailPath: mesh.DetailPath(n),
			AutoClose:  false,
		},
	}
	if isPinned {
		m.Size = sizePinned
	}
	if e.cfg.PinLabelsEnabled {
		m.Tooltip = &Tooltip{
			Text:      n.ID,
			Direction: "right",
			Permanent: true,
			OffsetX:   tooltipOffsetX,
		}
	}
	return m, nil
}

func markerColor(n mesh.Node) string {
	switch {
	case n.Testing():
		return ColorTesting
	case n.Online():
		return ColorOnline
	default:
		return ColorOffline
	}
}
