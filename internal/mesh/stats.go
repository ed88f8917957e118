package mesh

import (
	"math"
	"sort"
)

// NodeStats summarises the node collection for the nodes list view.
type NodeStats struct {
	TotalNodes    int `json:"totalNodes"`
	OnlineNodes   int `json:"onlineNodes"`
	RepeaterNodes int `json:"repeaterNodes"`
}

// CalcNodeStats counts totals over the visible node set.
func CalcNodeStats(nodes []Node) NodeStats {
	s := NodeStats{TotalNodes: len(nodes)}
	for _, n := range nodes {
		if n.Online() {
			s.OnlineNodes++
		}
		if n.MeshRole == "repeater" {
			s.RepeaterNodes++
		}
	}
	return s
}

// Areas returns the sorted set of distinct non-empty area keys.
func Areas(nodes []Node) []string {
	seen := make(map[string]struct{})
	for _, n := range nodes {
		if n.Area == "" {
			continue
		}
		seen[n.Area] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// CoverageAreaKm2 approximates the network's coverage as the bounding box
// over all located nodes. One degree of latitude is ~111 km; longitude is
// scaled by cos(latitude) at the box's mid-latitude. Returns 0 when no node
// has a location, otherwise at least 1.
func CoverageAreaKm2(nodes []Node) int {
	var lats, lngs []float64
	for _, n := range nodes {
		if !n.HasLocation() {
			continue
		}
		lats = append(lats, *n.Location.Lat)
		lngs = append(lngs, *n.Location.Lng)
	}
	if len(lats) == 0 {
		return 0
	}

	minLat, maxLat := minMax(lats)
	minLng, maxLng := minMax(lngs)

	latKm := (maxLat - minLat) * 111
	avgLat := (minLat + maxLat) / 2
	lngKm := (maxLng - minLng) * 111 * math.Abs(math.Cos(avgLat*math.Pi/180))

	area := int(math.Round(latKm * lngKm))
	if area < 1 {
		return 1
	}
	return area
}

func minMax(vs []float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
