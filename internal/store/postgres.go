package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"ipnet/site-go/internal/db"
	"ipnet/site-go/internal/mesh"
)

const listPublicNodesSQL = `
SELECT node_id, public_key, name, member_id, area,
       lat, lng, location_description,
       hardware, antenna, elevation, mesh_role,
       show_on_map, is_online, is_testing,
       first_seen, last_seen
FROM nodes
WHERE is_public = TRUE
ORDER BY area, node_id
`

const getPublicNodeSQL = `
SELECT node_id, public_key, name, member_id, area,
       lat, lng, location_description,
       hardware, antenna, elevation, mesh_role,
       show_on_map, is_online, is_testing,
       first_seen, last_seen
FROM nodes
WHERE node_id = $1 AND is_public = TRUE
`

const listPublicMembersSQL = `
SELECT member_id, name, join_date, location, avatar, bio,
       contact_preference, node_name, node_public_key
FROM members
WHERE is_public = TRUE
ORDER BY name
`

const updateNodeStatusSQL = `
UPDATE nodes
SET is_online = $2, last_seen = COALESCE($3, last_seen)
WHERE node_id = $1
`

// Queries wraps the hosted relational store. The provider keeps only public
// records reachable through these; private rows never leave the database.
type Queries struct {
	pool *db.Pool
}

func NewQueries(pool *db.Pool) *Queries {
	return &Queries{pool: pool}
}

func (q *Queries) ListPublicNodes(ctx context.Context) ([]mesh.Node, error) {
	rows, err := q.pool.Pgx().Query(ctx, listPublicNodesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mesh.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *Queries) GetPublicNode(ctx context.Context, nodeID string) (mesh.Node, error) {
	rows, err := q.pool.Pgx().Query(ctx, getPublicNodeSQL, nodeID)
	if err != nil {
		return mesh.Node{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return mesh.Node{}, err
		}
		return mesh.Node{}, pgx.ErrNoRows
	}
	return scanNode(rows)
}

func (q *Queries) ListPublicMembers(ctx context.Context) ([]mesh.Member, error) {
	rows, err := q.pool.Pgx().Query(ctx, listPublicMembersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mesh.Member
	for rows.Next() {
		var m mesh.Member
		var joinDate, location, avatar, bio, contactPref, nodeName, nodeKey *string
		if err := rows.Scan(
			&m.ID, &m.Name, &joinDate, &location, &avatar, &bio,
			&contactPref, &nodeName, &nodeKey,
		); err != nil {
			return nil, err
		}
		m.JoinDate = deref(joinDate)
		m.Location = deref(location)
		m.Avatar = deref(avatar)
		m.Bio = deref(bio)
		m.ContactPreference = deref(contactPref)
		m.NodeName = deref(nodeName)
		m.NodePublicKey = deref(nodeKey)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateNodeStatus flips a node's online flag and optionally advances its
// last-seen timestamp.
func (q *Queries) UpdateNodeStatus(ctx context.Context, nodeID string, online bool, lastSeen *time.Time) error {
	_, err := q.pool.Pgx().Exec(ctx, updateNodeStatusSQL, nodeID, online, lastSeen)
	return err
}

func scanNode(rows pgx.Rows) (mesh.Node, error) {
	var n mesh.Node
	var publicKey, memberID, locDesc, hardware, antenna, meshRole *string
	var lat, lng, elevation *float64
	if err := rows.Scan(
		&n.ID, &publicKey, &n.Name, &memberID, &n.Area,
		&lat, &lng, &locDesc,
		&hardware, &antenna, &elevation, &meshRole,
		&n.ShowOnMap, &n.IsOnline, &n.IsTesting,
		&n.FirstSeen, &n.LastSeen,
	); err != nil {
		return mesh.Node{}, err
	}
	n.PublicKey = deref(publicKey)
	n.MemberID = deref(memberID)
	n.Hardware = deref(hardware)
	n.Antenna = deref(antenna)
	n.MeshRole = deref(meshRole)
	if elevation != nil {
		n.Elevation = *elevation
	}
	if lat != nil || lng != nil {
		n.Location = &mesh.Location{Lat: lat, Lng: lng, Description: deref(locDesc)}
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PGStore loads nodes and members from Postgres while the site config blob
// stays on disk next to the other static assets.
type PGStore struct {
	q    *Queries
	json *JSONStore
}

func NewPGStore(pool *db.Pool, assetsDir string) *PGStore {
	return &PGStore{q: NewQueries(pool), json: NewJSONStore(assetsDir)}
}

func (s *PGStore) Name() string { return "postgres" }

// Queries exposes the underlying query layer for status updates.
func (s *PGStore) Queries() *Queries { return s.q }

func (s *PGStore) Load(ctx context.Context) (mesh.Dataset, error) {
	cfg, err := s.json.LoadConfig()
	if err != nil {
		return mesh.Dataset{}, err
	}
	nodes, err := s.q.ListPublicNodes(ctx)
	if err != nil {
		return mesh.Dataset{}, err
	}
	members, err := s.q.ListPublicMembers(ctx)
	if err != nil {
		return mesh.Dataset{}, err
	}
	return mesh.Dataset{Config: cfg, Nodes: nodes, Members: members}, nil
}
