package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"ipnet/site-go/internal/db"
	"ipnet/site-go/internal/live"
	"ipnet/site-go/internal/mapview"
	"ipnet/site-go/internal/mesh"
	"ipnet/site-go/internal/metrics"
	"ipnet/site-go/internal/store"
)

type Handler struct {
	log      zerolog.Logger
	pool     *db.Pool
	listener *live.Listener
	hub      *live.Hub
	api      *store.APIClient
	metrics  *metrics.Metrics
	mapCfg    mapview.Config
	domain    string
	assetsDir string
}

type Options struct {
	Pool      *db.Pool
	Listener  *live.Listener
	Hub       *live.Hub
	APIClient *store.APIClient
	Metrics   *metrics.Metrics
	MapConfig mapview.Config
	Domain    string
	AssetsDir string
}

func NewHandler(log zerolog.Logger, opts Options) *Handler {
	domain := opts.Domain
	if domain == "" {
		domain = "ipnt.uk"
	}
	return &Handler{
		log:       log,
		pool:      opts.Pool,
		listener:  opts.Listener,
		hub:       opts.Hub,
		api:       opts.APIClient,
		metrics:   opts.Metrics,
		mapCfg:    opts.MapConfig,
		domain:    domain,
		assetsDir: opts.AssetsDir,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Get("/metrics", h.metrics.Handler().ServeHTTP)

	// Pages
	r.Get("/", h.handleHome)
	r.Get("/contact/", h.handleContact)
	r.Get("/members/", h.handleMembers)
	r.Get("/stats/", h.handleStats)
	r.Get("/nodes/", h.handleNodes)
	r.Get("/nodes/{area}/{nodeID}", h.handleNodes)

	// API
	r.Route("/api", func(r chi.Router) {
		r.Get("/data", h.handleAPIData)
		r.Route("/v1", func(r chi.Router) {
			r.Get("/map", h.handleMapState)
			r.Get("/map/cluster-zoom", h.handleClusterZoom)
		})
	})

	// Live updates
	if h.hub != nil {
		r.Get("/ws", h.hub.ServeHTTP)
	}

	if h.assetsDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(h.assetsDir, "static"))))
		r.Get("/static/*", fs.ServeHTTP)
	}

	// Short node URL: /{area}/{nodeID} redirects to the full nodes path.
	r.Get("/{area}/{nodeID}", h.handleNodeRedirect)

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("http_request")

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = r.URL.Path
		}
		h.metrics.ObserveHTTPRequest(r.Method, routePattern, ww.Status(), duration)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	// The site runs without a database (JSON or API backed); only check the
	// pool when one is configured.
	if h.pool == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// handleAPIData serves the combined payload the client bootstraps from. A
// failed load upstream already degraded to the empty triple, so this always
// answers 200.
func (h *Handler) handleAPIData(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.listener.Collections().Dataset())
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	c := h.listener.Collections()
	h.render(w, http.StatusOK, "index.html", pageData{
		Config:  c.Config,
		Nodes:   c.Nodes,
		Members: c.Members,
		Summary: &siteSummary{
			TotalNodes:   len(c.Nodes),
			TotalMembers: len(c.Members),
			CoverageKm2:  mesh.CoverageAreaKm2(c.Nodes),
		},
	})
}

func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	c := h.listener.Collections()
	h.render(w, http.StatusOK, "contact.html", pageData{Config: c.Config})
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	c := h.listener.Collections()
	h.render(w, http.StatusOK, "members.html", pageData{
		Config:  c.Config,
		Nodes:   c.Nodes,
		Members: c.Members,
	})
}

// handleNodes serves both the node list and the individual node view. An
// unknown area/id pair falls back to the list view, same as the original
// site.
func (h *Handler) handleNodes(w http.ResponseWriter, r *http.Request) {
	c := h.listener.Collections()

	data := pageData{
		Config:  c.Config,
		Nodes:   c.Nodes,
		Members: c.Members,
	}

	area := chi.URLParam(r, "area")
	nodeID := chi.URLParam(r, "nodeID")
	if area != "" && nodeID != "" {
		if n, ok := mesh.FindNode(c.Nodes, area, nodeID, h.domain); ok {
			data.CurrentNode = &n
		} else if h.pool != nil {
			// A record can be newer than the current snapshot; try the
			// database before falling back to the list view.
			n, err := store.NewQueries(h.pool).GetPublicNode(r.Context(), mesh.FullID(nodeID, area, h.domain))
			switch {
			case err == nil:
				data.CurrentNode = &n
			case !errors.Is(err, pgx.ErrNoRows):
				h.log.Error().Err(err).Str("area", area).Str("node_id", nodeID).Msg("node lookup failed")
			}
		}
	}
	if data.CurrentNode == nil {
		stats := mesh.CalcNodeStats(c.Nodes)
		data.NodeStats = &stats
	}

	h.render(w, http.StatusOK, "nodes.html", data)
}

func (h *Handler) handleNodeRedirect(w http.ResponseWriter, r *http.Request) {
	area := chi.URLParam(r, "area")
	nodeID := chi.URLParam(r, "nodeID")
	http.Redirect(w, r, "/nodes/"+area+"/"+nodeID, http.StatusMovedPermanently)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	c := h.listener.Collections()
	data := pageData{
		Config:  c.Config,
		Nodes:   c.Nodes,
		Members: c.Members,
	}

	if h.api != nil {
		advs, err := h.api.Advertisements(r.Context(), 20)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to fetch advertisements")
		} else {
			for i := range advs {
				if n, ok := mesh.FindNodeByPublicKey(c.Nodes, advs[i].PublicKey); ok {
					node := n
					advs[i].Node = &node
				}
			}
			data.Advertisements = advs
		}
	}

	h.render(w, http.StatusOK, "stats.html", data)
}
