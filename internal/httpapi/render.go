package httpapi

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"ipnet/site-go/internal/mesh"
	"ipnet/site-go/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"ownerName": mesh.OwnerName,
	"detailPath": func(v any) string {
		return mesh.DetailPath(derefNode(v))
	},
	"statusLabel": func(v any) string {
		n := derefNode(v)
		switch {
		case n.Testing():
			return "testing"
		case n.Online():
			return "online"
		default:
			return "offline"
		}
	},
}).ParseFS(templateFS, "templates/*.html"))

// Templates hand nodes to helpers both by value (range) and by pointer (the
// pinned detail node).
func derefNode(v any) mesh.Node {
	switch n := v.(type) {
	case mesh.Node:
		return n
	case *mesh.Node:
		if n != nil {
			return *n
		}
	}
	return mesh.Node{}
}

type siteSummary struct {
	TotalNodes   int
	TotalMembers int
	CoverageKm2  int
}

type pageData struct {
	Config         mesh.SiteConfig
	Nodes          []mesh.Node
	Members        []mesh.Member
	Summary        *siteSummary
	CurrentNode    *mesh.Node
	NodeStats      *mesh.NodeStats
	Advertisements []store.Advertisement
}

// render executes the named page into a buffer first so a template failure
// yields a clean 500 instead of a half-written body.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error().Err(err).Str("template", name).Msg("template render failed")
		h.writeError(w, http.StatusInternalServerError, "render_failed", "failed to render page", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
