package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ipnet/site-go/internal/mesh"
)

// JSONStore loads the site dataset from flat JSON files under the assets
// directory: config.json, nodes.json ({"nodes":[...]}) and members.json
// ({"members":[...]}). A missing file contributes an empty part; a malformed
// one fails the whole load.
type JSONStore struct {
	dir string
}

func NewJSONStore(assetsDir string) *JSONStore {
	return &JSONStore{dir: filepath.Join(assetsDir, "data")}
}

func (s *JSONStore) Name() string { return "json" }

func (s *JSONStore) Load(ctx context.Context) (mesh.Dataset, error) {
	cfg, err := s.LoadConfig()
	if err != nil {
		return mesh.Dataset{}, err
	}

	var nodesFile struct {
		Nodes []mesh.Node `json:"nodes"`
	}
	if err := s.readJSON("nodes.json", &nodesFile); err != nil {
		return mesh.Dataset{}, err
	}

	var membersFile struct {
		Members []mesh.Member `json:"members"`
	}
	if err := s.readJSON("members.json", &membersFile); err != nil {
		return mesh.Dataset{}, err
	}

	ds := mesh.Dataset{
		Config:  cfg,
		Nodes:   make([]mesh.Node, 0, len(nodesFile.Nodes)),
		Members: make([]mesh.Member, 0, len(membersFile.Members)),
	}
	for _, n := range nodesFile.Nodes {
		if n.Public() {
			ds.Nodes = append(ds.Nodes, n)
		}
	}
	for _, m := range membersFile.Members {
		if m.Public() {
			ds.Members = append(ds.Members, m)
		}
	}
	return ds, nil
}

// LoadConfig reads just the site config blob, shared with the Postgres store
// which keeps node/member data in the database but the config on disk.
func (s *JSONStore) LoadConfig() (mesh.SiteConfig, error) {
	cfg := mesh.SiteConfig{}
	if err := s.readJSON("config.json", &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *JSONStore) readJSON(name string, dst any) error {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
