package mapview

import "ipnet/site-go/internal/mesh"

// Bounds is a geographic bounding box over markers.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// Viewport describes where the camera should sit. When Fit is true the client
// fits Bounds with the given padding but never zooms past MaxZoom; otherwise
// it centers on Center at Zoom.
type Viewport struct {
	Center  LatLng  `json:"center"`
	Zoom    int     `json:"zoom"`
	Fit     bool    `json:"fit"`
	Bounds  *Bounds `json:"bounds,omitempty"`
	Padding int     `json:"padding,omitempty"`
	MaxZoom int     `json:"maxZoom,omitempty"`
}

// FitViewport computes the camera for the current marker set, independently
// of marker construction. A pinned node centers the view at high zoom and is
// never auto-fitted afterward. Otherwise: no markers falls back to the
// configured default, a single marker centers at the fixed single-node zoom,
// and multiple markers fit the bounding box with padding and a zoom ceiling
// so near-coincident markers don't zoom the view in absurdly far.
func (e *Engine) FitViewport(markers []Marker, pinned *mesh.Node) Viewport {
	if e == nil {
		return Viewport{}
	}

	if pinned != nil && pinned.HasLocation() {
		return Viewport{
			Center: LatLng{Lat: *pinned.Location.Lat, Lng: *pinned.Location.Lng},
			Zoom:   e.cfg.PinnedZoom,
		}
	}

	switch len(markers) {
	case 0:
		return Viewport{Center: e.cfg.DefaultCenter, Zoom: e.cfg.DefaultZoom}
	case 1:
		return Viewport{
			Center: LatLng{Lat: markers[0].Lat, Lng: markers[0].Lng},
			Zoom:   e.cfg.SingleNodeZoom,
		}
	}

	b := Bounds{
		MinLat: markers[0].Lat, MaxLat: markers[0].Lat,
		MinLng: markers[0].Lng, MaxLng: markers[0].Lng,
	}
	for _, m := range markers[1:] {
		if m.Lat < b.MinLat {
			b.MinLat = m.Lat
		}
		if m.Lat > b.MaxLat {
			b.MaxLat = m.Lat
		}
		if m.Lng < b.MinLng {
			b.MinLng = m.Lng
		}
		if m.Lng > b.MaxLng {
			b.MaxLng = m.Lng
		}
	}

	return Viewport{
		Center: LatLng{
			Lat: (b.MinLat + b.MaxLat) / 2,
			Lng: (b.MinLng + b.MaxLng) / 2,
		},
		Zoom:    e.cfg.DefaultZoom,
		Fit:     true,
		Bounds:  &b,
		Padding: e.cfg.FitPadding,
		MaxZoom: e.cfg.MaxFitZoom,
	}
}
