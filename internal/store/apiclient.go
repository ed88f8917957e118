package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/mesh"
)

const fallbackCacheTTL = time.Minute

// APIClient talks to the external mesh node API. Fetched nodes are cached in
// memory for the configured TTL and mirrored to a file cache so an API outage
// degrades to stale data rather than an empty map.
type APIClient struct {
	log       zerolog.Logger
	baseURL   string
	apiKey    string
	ttl       time.Duration
	cacheFile string
	client    *http.Client

	mu      sync.Mutex
	cached  []mesh.Node
	expires time.Time
}

func NewAPIClient(log zerolog.Logger, baseURL, apiKey string, ttl time.Duration, cacheFile string) *APIClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &APIClient{
		log:       log,
		baseURL:   baseURL,
		apiKey:    apiKey,
		ttl:       ttl,
		cacheFile: cacheFile,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// apiNode is the provider's wire format: identity plus a free-form tag bag
// holding all site-relevant metadata.
type apiNode struct {
	Name      string     `json:"name"`
	PublicKey string     `json:"public_key"`
	FirstSeen *time.Time `json:"first_seen"`
	LastSeen  *time.Time `json:"last_seen"`
	Tags      *apiTags   `json:"tags"`
}

type apiTags struct {
	NodeID              string     `json:"node_id"`
	FriendlyName        string     `json:"friendly_name"`
	MemberID            string     `json:"member_id"`
	Area                string     `json:"area"`
	Location            *apiCoords `json:"location"`
	LocationDescription string     `json:"location_description"`
	Hardware            string     `json:"hardware"`
	Antenna             string     `json:"antenna"`
	Elevation           float64    `json:"elevation"`
	ShowOnMap           bool       `json:"show_on_map"`
	IsPublic            bool       `json:"is_public"`
	IsOnline            bool       `json:"is_online"`
	IsTesting           bool       `json:"is_testing"`
	MeshRole            string     `json:"mesh_role"`
}

type apiCoords struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type apiNodesResponse struct {
	Error  string    `json:"error"`
	Detail string    `json:"detail"`
	Nodes  []apiNode `json:"nodes"`
}

// Advertisement is one raw mesh advert from the stats feed. Node is attached
// by the handler when the public key matches a known node.
type Advertisement struct {
	PublicKey  string     `json:"public_key"`
	Type       string     `json:"type"`
	ReceivedAt *time.Time `json:"received_at"`
	Node       *mesh.Node `json:"node,omitempty"`
}

// GetNodes returns the node collection, preferring the memory cache, then the
// API, then the file cache. Only a cold start with a dead API yields nothing.
func (c *APIClient) GetNodes(ctx context.Context) ([]mesh.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Before(c.expires) && len(c.cached) > 0 {
		return c.cached, nil
	}

	nodes, err := c.fetchNodes(ctx)
	if err == nil && len(nodes) > 0 {
		c.cached = nodes
		c.expires = now.Add(c.ttl)
		c.saveCacheFile(nodes)
		return nodes, nil
	}
	if err != nil {
		c.log.Error().Err(err).Msg("mesh api fetch failed, trying file cache")
	}

	cached := c.loadCacheFile()
	if len(cached) > 0 {
		// Shorter TTL so the API is retried soon after it recovers.
		c.cached = cached
		c.expires = now.Add(fallbackCacheTTL)
		return cached, nil
	}

	if err != nil {
		return nil, err
	}
	return nil, errors.New("mesh api returned no nodes and no cache exists")
}

func (c *APIClient) fetchNodes(ctx context.Context) ([]mesh.Node, error) {
	url := c.baseURL + "/api/v1/nodes?limit=100&offset=0&sort_by=last_seen&order=desc"
	var resp apiNodesResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("mesh api error: %s %s", resp.Error, resp.Detail)
	}

	nodes := make([]mesh.Node, 0, len(resp.Nodes))
	for _, an := range resp.Nodes {
		if n, ok := transformAPINode(an); ok {
			nodes = append(nodes, n)
		}
	}
	c.log.Info().Int("nodes", len(nodes)).Int("raw", len(resp.Nodes)).Msg("fetched nodes from mesh api")
	return nodes, nil
}

// Advertisements fetches the most recent mesh adverts for the stats page.
func (c *APIClient) Advertisements(ctx context.Context, limit int) ([]Advertisement, error) {
	if limit <= 0 {
		limit = 20
	}
	url := fmt.Sprintf("%s/api/v1/advertisements?limit=%d", c.baseURL, limit)
	var resp struct {
		Advertisements []Advertisement `json:"advertisements"`
	}
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return resp.Advertisements, nil
}

func (c *APIClient) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("mesh api returned status %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode mesh api response: %w", err)
	}
	return nil
}

// transformAPINode maps the provider's tag bag to the internal node shape.
// Nodes without tags carry no usable metadata and are skipped.
func transformAPINode(an apiNode) (mesh.Node, bool) {
	if an.Tags == nil {
		return mesh.Node{}, false
	}
	t := an.Tags

	id := t.NodeID
	if id == "" {
		id = an.Name
	}
	if id == "" {
		return mesh.Node{}, false
	}

	name := t.FriendlyName
	if name == "" {
		name = an.Name
	}
	if name == "" {
		name = id
	}

	hardware := t.Hardware
	if hardware == "" {
		hardware = "Unknown"
	}
	role := t.MeshRole
	if role == "" {
		role = "unknown"
	}

	isPublic := t.IsPublic
	isOnline := t.IsOnline
	isTesting := t.IsTesting

	n := mesh.Node{
		ID:        id,
		PublicKey: an.PublicKey,
		Name:      name,
		MemberID:  t.MemberID,
		Area:      t.Area,
		Hardware:  hardware,
		Antenna:   t.Antenna,
		Elevation: t.Elevation,
		MeshRole:  role,
		ShowOnMap: t.ShowOnMap,
		IsPublic:  &isPublic,
		IsOnline:  &isOnline,
		IsTesting: &isTesting,
		FirstSeen: an.FirstSeen,
		LastSeen:  an.LastSeen,
	}
	if t.Location != nil && (t.Location.Latitude != nil || t.Location.Longitude != nil) {
		n.Location = &mesh.Location{
			Lat:         t.Location.Latitude,
			Lng:         t.Location.Longitude,
			Description: t.LocationDescription,
		}
	}
	return n, true
}

type nodeCacheFile struct {
	LastUpdated time.Time   `json:"lastUpdated"`
	Nodes       []mesh.Node `json:"nodes"`
}

func (c *APIClient) saveCacheFile(nodes []mesh.Node) {
	if c.cacheFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.cacheFile), 0o755); err != nil {
		c.log.Error().Err(err).Msg("failed to create api cache dir")
		return
	}
	b, err := json.Marshal(nodeCacheFile{LastUpdated: time.Now().UTC(), Nodes: nodes})
	if err != nil {
		return
	}
	if err := os.WriteFile(c.cacheFile, b, 0o644); err != nil {
		c.log.Error().Err(err).Msg("failed to write api cache file")
	}
}

func (c *APIClient) loadCacheFile() []mesh.Node {
	if c.cacheFile == "" {
		return nil
	}
	b, err := os.ReadFile(c.cacheFile)
	if err != nil {
		return nil
	}
	var f nodeCacheFile
	if err := json.Unmarshal(b, &f); err != nil {
		c.log.Warn().Err(err).Msg("failed to parse api cache file")
		return nil
	}
	c.log.Info().Int("nodes", len(f.Nodes)).Msg("loaded nodes from file cache")
	return f.Nodes
}

// APIStore is a Loader combining API-sourced nodes with file-based config and
// member data.
type APIStore struct {
	api  *APIClient
	json *JSONStore
}

func NewAPIStore(api *APIClient, assetsDir string) *APIStore {
	return &APIStore{api: api, json: NewJSONStore(assetsDir)}
}

func (s *APIStore) Name() string { return "api" }

func (s *APIStore) Load(ctx context.Context) (mesh.Dataset, error) {
	ds, err := s.json.Load(ctx)
	if err != nil {
		return mesh.Dataset{}, err
	}
	nodes, err := s.api.GetNodes(ctx)
	if err != nil {
		return mesh.Dataset{}, err
	}
	public := make([]mesh.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Public() {
			public = append(public, n)
		}
	}
	ds.Nodes = public
	return ds, nil
}
