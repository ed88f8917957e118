package mesh

import "time"

// Location is a node's geographic position. Lat/Lng are pointers because the
// upstream payload may carry a location object with either coordinate absent,
// and a node without both coordinates never reaches the map.
type Location struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Description string   `json:"description,omitempty"`
}

// Node is one mesh relay/client device record as delivered by the data
// provider. The site only ever observes these; it never originates one.
//
// IsOnline and IsTesting are tri-state: an absent flag is the non-excluding
// default (absent isOnline behaves as online, absent isTesting as
// not-testing). Decoding them into plain bools would silently change filter
// results, so they stay pointers end to end.
type Node struct {
	ID        string     `json:"id"`
	PublicKey string     `json:"publicKey,omitempty"`
	Name      string     `json:"name"`
	MemberID  string     `json:"memberId,omitempty"`
	Area      string     `json:"area"`
	Location  *Location  `json:"location,omitempty"`
	Hardware  string     `json:"hardware,omitempty"`
	Antenna   string     `json:"antenna,omitempty"`
	Elevation float64    `json:"elevation,omitempty"`
	MeshRole  string     `json:"meshRole,omitempty"`
	ShowOnMap bool       `json:"showOnMap"`
	IsPublic  *bool      `json:"isPublic,omitempty"`
	IsOnline  *bool      `json:"isOnline,omitempty"`
	IsTesting *bool      `json:"isTesting,omitempty"`
	FirstSeen *time.Time `json:"firstSeen,omitempty"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
}

// Online reports the node's effective online state (absent flag counts as
// online).
func (n Node) Online() bool {
	return n.IsOnline == nil || *n.IsOnline
}

// Testing reports whether the node is explicitly flagged as testing.
func (n Node) Testing() bool {
	return n.IsTesting != nil && *n.IsTesting
}

// Public reports whether the node may be shown at all (absent flag counts as
// public, matching the JSON fallback files).
func (n Node) Public() bool {
	return n.IsPublic == nil || *n.IsPublic
}

// HasLocation reports whether both coordinates are present.
func (n Node) HasLocation() bool {
	return n.Location != nil && n.Location.Lat != nil && n.Location.Lng != nil
}

// Member is a community participant. Zero or more nodes reference a member
// through Node.MemberID.
type Member struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	JoinDate          string            `json:"joinDate,omitempty"`
	Location          string            `json:"location,omitempty"`
	Avatar            string            `json:"avatar,omitempty"`
	Bio               string            `json:"bio,omitempty"`
	ContactPreference string            `json:"contactPreference,omitempty"`
	IsPublic          *bool             `json:"isPublic,omitempty"`
	NodeName          string            `json:"nodeName,omitempty"`
	NodePublicKey     string            `json:"nodePublicKey,omitempty"`
	SocialLinks       map[string]string `json:"socialLinks,omitempty"`
}

// Public reports whether the member profile may be listed.
func (m Member) Public() bool {
	return m.IsPublic == nil || *m.IsPublic
}

// SiteConfig is the freeform site configuration blob served alongside the
// collections. The service treats it as opaque.
type SiteConfig map[string]any

// Dataset is the combined payload a loader produces: one site config plus the
// visibility-filtered node and member collections.
type Dataset struct {
	Config  SiteConfig `json:"config"`
	Nodes   []Node     `json:"nodes"`
	Members []Member   `json:"members"`
}

// EmptyDataset is what a failed load degrades to: empty collections, never an
// error surfaced to the caller.
func EmptyDataset() Dataset {
	return Dataset{Config: SiteConfig{}, Nodes: []Node{}, Members: []Member{}}
}

// OwnerName resolves a node's owning member display name. Returns "Unknown"
// when the node has no owner or the reference does not match any member.
func OwnerName(members []Member, memberID string) string {
	if memberID == "" {
		return "Unknown"
	}
	for _, m := range members {
		if m.ID == memberID {
			return m.Name
		}
	}
	return "Unknown"
}
