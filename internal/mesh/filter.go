package mesh

import (
	"sort"
	"strings"
)

// FilterState holds the user-selected facet filters. An empty selected set
// for a facet means no restriction on that facet, not "exclude all".
type FilterState struct {
	Hardware    []string `json:"hardware,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Owners      []string `json:"owners,omitempty"`
	OnlineOnly  bool     `json:"onlineOnly,omitempty"`
	ShowTesting bool     `json:"showTesting,omitempty"`
}

// Empty reports whether the state restricts nothing.
func (s FilterState) Empty() bool {
	return len(s.Hardware) == 0 && len(s.Roles) == 0 && len(s.Owners) == 0 &&
		!s.OnlineOnly && !s.ShowTesting
}

// Filter applies the facet filters to the node collection and returns the
// visible set ordered by (area, id). Pure: neither input is mutated, and the
// output is independent of input order.
//
// A node passes when every facet passes:
//   - hardware: case-insensitive substring match against any selected token
//     (free-text hardware strings, so "heltec" matches "Heltec V3")
//   - role: exact membership in the selected set
//   - owner: member id membership in the selected set
//   - online-only: excludes nodes explicitly flagged offline
//   - testing: excluded unless ShowTesting is set
func Filter(nodes []Node, state FilterState) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if !matches(n, state) {
			continue
		}
		out = append(out, n)
	}
	SortNodes(out)
	return out
}

// SortNodes orders nodes by area, then full id as tie-break. Stable, total
// order over the two-key tuple.
func SortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Area != nodes[j].Area {
			return nodes[i].Area < nodes[j].Area
		}
		return nodes[i].ID < nodes[j].ID
	})
}

func matches(n Node, state FilterState) bool {
	if len(state.Hardware) > 0 && !hardwareMatches(n.Hardware, state.Hardware) {
		return false
	}
	if len(state.Roles) > 0 && !contains(state.Roles, n.MeshRole) {
		return false
	}
	if len(state.Owners) > 0 && !contains(state.Owners, n.MemberID) {
		return false
	}
	if state.OnlineOnly && !n.Online() {
		return false
	}
	if !state.ShowTesting && n.Testing() {
		return false
	}
	return true
}

func hardwareMatches(hardware string, selected []string) bool {
	hw := strings.ToLower(hardware)
	for _, token := range selected {
		if token == "" {
			continue
		}
		if strings.Contains(hw, strings.ToLower(token)) {
			return true
		}
	}
	return false
}

func contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}
