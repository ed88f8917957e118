package live

import (
	"encoding/json"
	"errors"
	"fmt"

	"ipnet/site-go/internal/mesh"
)

// Event kinds as delivered by the change feed.
const (
	KindInsert = "INSERT"
	KindUpdate = "UPDATE"
	KindDelete = "DELETE"
)

// Event entities.
const (
	EntityNode   = "node"
	EntityMember = "member"
)

var (
	errUnknownEntity = errors.New("unknown event entity")
	errUnknownKind   = errors.New("unknown event kind")
	errMissingID     = errors.New("event record has no id")
)

// Event is one tagged change-feed record. New carries the record for inserts
// and updates; Old identifies the victim of a delete.
type Event struct {
	Entity string          `json:"entity"`
	Kind   string          `json:"eventType"`
	New    json.RawMessage `json:"new,omitempty"`
	Old    json.RawMessage `json:"old,omitempty"`
}

func (e Event) validate() error {
	switch e.Entity {
	case EntityNode, EntityMember:
	default:
		return fmt.Errorf("%w: %q", errUnknownEntity, e.Entity)
	}
	switch e.Kind {
	case KindInsert, KindUpdate, KindDelete:
	default:
		return fmt.Errorf("%w: %q", errUnknownKind, e.Kind)
	}
	return nil
}

func (e Event) node() (mesh.Node, error) {
	var n mesh.Node
	if err := json.Unmarshal(e.New, &n); err != nil {
		return mesh.Node{}, fmt.Errorf("decode node payload: %w", err)
	}
	if n.ID == "" {
		return mesh.Node{}, errMissingID
	}
	return n, nil
}

func (e Event) member() (mesh.Member, error) {
	var m mesh.Member
	if err := json.Unmarshal(e.New, &m); err != nil {
		return mesh.Member{}, fmt.Errorf("decode member payload: %w", err)
	}
	if m.ID == "" {
		return mesh.Member{}, errMissingID
	}
	return m, nil
}

// deletedID extracts the id of a delete's victim, preferring the old record.
func (e Event) deletedID() (string, error) {
	var rec struct {
		ID string `json:"id"`
	}
	raw := e.Old
	if len(raw) == 0 {
		raw = e.New
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("decode delete payload: %w", err)
	}
	if rec.ID == "" {
		return "", errMissingID
	}
	return rec.ID, nil
}
