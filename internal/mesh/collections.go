package mesh

// Collections is an immutable snapshot of the in-memory node and member
// collections. Mutating operations return a fresh snapshot so readers holding
// an old one never observe partial updates. Only the dataset loader
// (wholesale replace) and the live-update listener (targeted ops) produce new
// snapshots; everything else just reads.
type Collections struct {
	Config  SiteConfig
	Nodes   []Node
	Members []Member
}

// NewCollections builds a snapshot from a loaded dataset.
func NewCollections(d Dataset) Collections {
	return Collections{Config: d.Config, Nodes: d.Nodes, Members: d.Members}
}

// Dataset converts the snapshot back to the combined payload shape.
func (c Collections) Dataset() Dataset {
	d := Dataset{Config: c.Config, Nodes: c.Nodes, Members: c.Members}
	if d.Config == nil {
		d.Config = SiteConfig{}
	}
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	if d.Members == nil {
		d.Members = []Member{}
	}
	return d
}

// InsertNode appends the node unless a record with the same id exists, in
// which case the new payload wins (id is the dedup key).
func (c Collections) InsertNode(n Node) Collections {
	for i, existing := range c.Nodes {
		if existing.ID == n.ID {
			nodes := copyNodes(c.Nodes)
			nodes[i] = n
			c.Nodes = nodes
			return c
		}
	}
	nodes := copyNodes(c.Nodes)
	c.Nodes = append(nodes, n)
	return c
}

// UpdateNode replaces the record matching on id. A missing id is a no-op,
// never an implicit insert. The second return reports whether anything
// changed.
func (c Collections) UpdateNode(n Node) (Collections, bool) {
	for i, existing := range c.Nodes {
		if existing.ID == n.ID {
			nodes := copyNodes(c.Nodes)
			nodes[i] = n
			c.Nodes = nodes
			return c, true
		}
	}
	return c, false
}

// DeleteNode removes the record matching on id; missing ids are a no-op.
func (c Collections) DeleteNode(id string) (Collections, bool) {
	for i, existing := range c.Nodes {
		if existing.ID == id {
			nodes := make([]Node, 0, len(c.Nodes)-1)
			nodes = append(nodes, c.Nodes[:i]...)
			nodes = append(nodes, c.Nodes[i+1:]...)
			c.Nodes = nodes
			return c, true
		}
	}
	return c, false
}

// InsertMember mirrors InsertNode for the member collection.
func (c Collections) InsertMember(m Member) Collections {
	for i, existing := range c.Members {
		if existing.ID == m.ID {
			members := copyMembers(c.Members)
			members[i] = m
			c.Members = members
			return c
		}
	}
	members := copyMembers(c.Members)
	c.Members = append(members, m)
	return c
}

// UpdateMember mirrors UpdateNode for the member collection.
func (c Collections) UpdateMember(m Member) (Collections, bool) {
	for i, existing := range c.Members {
		if existing.ID == m.ID {
			members := copyMembers(c.Members)
			members[i] = m
			c.Members = members
			return c, true
		}
	}
	return c, false
}

// DeleteMember mirrors DeleteNode for the member collection.
func (c Collections) DeleteMember(id string) (Collections, bool) {
	for i, existing := range c.Members {
		if existing.ID == id {
			members := make([]Member, 0, len(c.Members)-1)
			members = append(members, c.Members[:i]...)
			members = append(members, c.Members[i+1:]...)
			c.Members = members
			return c, true
		}
	}
	return c, false
}

func copyNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	return out
}

func copyMembers(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	return out
}
