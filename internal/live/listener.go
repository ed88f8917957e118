package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/mapview"
	"ipnet/site-go/internal/mesh"
	"ipnet/site-go/internal/metrics"
)

// View is the published result of one pipeline run: the default-filtered node
// list, its stats, and the reconciled marker set with its viewport.
type View struct {
	Nodes    []mesh.Node      `json:"nodes"`
	Stats    mesh.NodeStats   `json:"stats"`
	Markers  []mapview.Marker `json:"markers"`
	Viewport mapview.Viewport `json:"viewport"`
}

type statusUpdate struct {
	nodeID   string
	online   bool
	lastSeen *time.Time
}

type op struct {
	ev      *Event
	replace *mesh.Dataset
	status  *statusUpdate
}

// Listener serializes all mutations of the in-memory collections on a single
// goroutine: change-feed events are processed strictly in arrival order, and
// the recompute triggered by event N (filter, marker reconciliation, view
// publish) completes before event N+1 is taken. No coalescing or debouncing;
// bursts each pay for a full marker rebuild, which is fine at community
// scale.
type Listener struct {
	log     zerolog.Logger
	engine  *mapview.Engine
	metrics *metrics.Metrics
	onView  func(View)

	ops  chan op
	done chan struct{}
	once sync.Once

	current atomic.Pointer[mesh.Collections]
	view    atomic.Pointer[View]
}

// NewListener wires the pipeline. onView, when non-nil, is invoked after
// every published view (used for websocket fan-out); it runs on the listener
// goroutine and must not block.
func NewListener(log zerolog.Logger, engine *mapview.Engine, m *metrics.Metrics, onView func(View)) *Listener {
	l := &Listener{
		log:     log,
		engine:  engine,
		metrics: m,
		onView:  onView,
		ops:     make(chan op, 64),
		done:    make(chan struct{}),
	}
	empty := mesh.NewCollections(mesh.EmptyDataset())
	l.current.Store(&empty)
	v := View{Nodes: []mesh.Node{}, Markers: []mapview.Marker{}}
	l.view.Store(&v)
	return l
}

// Run processes operations until the context ends or Close is called.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case o := <-l.ops:
			l.handle(o)
		}
	}
}

// Close tears down the listener; pending submissions are abandoned.
func (l *Listener) Close() {
	l.once.Do(func() { close(l.done) })
}

// Submit enqueues one change-feed event.
func (l *Listener) Submit(ev Event) {
	l.enqueue(op{ev: &ev})
}

// Replace enqueues a wholesale dataset replacement from a loader.
func (l *Listener) Replace(ds mesh.Dataset) {
	l.enqueue(op{replace: &ds})
}

// SubmitStatus enqueues an online-state flip for a single node, as reported
// by the broker. A status for an unknown node is a no-op.
func (l *Listener) SubmitStatus(nodeID string, online bool, lastSeen *time.Time) {
	l.enqueue(op{status: &statusUpdate{nodeID: nodeID, online: online, lastSeen: lastSeen}})
}

// Collections returns the current immutable snapshot.
func (l *Listener) Collections() mesh.Collections {
	return *l.current.Load()
}

// View returns the most recently published pipeline output.
func (l *Listener) View() View {
	return *l.view.Load()
}

func (l *Listener) enqueue(o op) {
	select {
	case l.ops <- o:
	case <-l.done:
	}
}

func (l *Listener) handle(o op) {
	switch {
	case o.replace != nil:
		c := mesh.NewCollections(*o.replace)
		l.current.Store(&c)
		l.recompute(c)
	case o.status != nil:
		l.handleStatus(*o.status)
	case o.ev != nil:
		l.handleEvent(*o.ev)
	}
}

func (l *Listener) handleStatus(s statusUpdate) {
	c := *l.current.Load()
	for _, n := range c.Nodes {
		if n.ID != s.nodeID {
			continue
		}
		online := s.online
		n.IsOnline = &online
		if s.lastSeen != nil {
			n.LastSeen = s.lastSeen
		}
		updated, _ := c.UpdateNode(n)
		l.current.Store(&updated)
		l.metrics.IncLiveEvent(EntityNode, KindUpdate, "applied")
		l.recompute(updated)
		return
	}
	l.metrics.IncLiveEvent(EntityNode, KindUpdate, "noop")
}

// handleEvent applies one event to the collections. Malformed events are
// logged and dropped; the loop keeps processing whatever comes next.
func (l *Listener) handleEvent(ev Event) {
	if err := ev.validate(); err != nil {
		l.log.Warn().Err(err).Str("entity", ev.Entity).Str("kind", ev.Kind).Msg("dropping malformed live event")
		l.metrics.IncLiveEvent(ev.Entity, ev.Kind, "dropped")
		return
	}

	c := *l.current.Load()
	updated, changed, err := applyEvent(c, ev)
	if err != nil {
		l.log.Warn().Err(err).Str("entity", ev.Entity).Str("kind", ev.Kind).Msg("dropping malformed live event")
		l.metrics.IncLiveEvent(ev.Entity, ev.Kind, "dropped")
		return
	}

	outcome := "applied"
	if !changed {
		outcome = "noop"
	}
	l.metrics.IncLiveEvent(ev.Entity, ev.Kind, outcome)

	l.current.Store(&updated)
	if ev.Entity == EntityNode && changed {
		l.recompute(updated)
	}
}

func applyEvent(c mesh.Collections, ev Event) (mesh.Collections, bool, error) {
	switch ev.Entity {
	case EntityNode:
		switch ev.Kind {
		case KindInsert:
			n, err := ev.node()
			if err != nil {
				return c, false, err
			}
			return c.InsertNode(n), true, nil
		case KindUpdate:
			n, err := ev.node()
			if err != nil {
				return c, false, err
			}
			updated, changed := c.UpdateNode(n)
			return updated, changed, nil
		case KindDelete:
			id, err := ev.deletedID()
			if err != nil {
				return c, false, err
			}
			updated, changed := c.DeleteNode(id)
			return updated, changed, nil
		}
	case EntityMember:
		switch ev.Kind {
		case KindInsert:
			m, err := ev.member()
			if err != nil {
				return c, false, err
			}
			return c.InsertMember(m), true, nil
		case KindUpdate:
			m, err := ev.member()
			if err != nil {
				return c, false, err
			}
			updated, changed := c.UpdateMember(m)
			return updated, changed, nil
		case KindDelete:
			id, err := ev.deletedID()
			if err != nil {
				return c, false, err
			}
			updated, changed := c.DeleteMember(id)
			return updated, changed, nil
		}
	}
	return c, false, errUnknownEntity
}

// recompute runs the downstream pipeline: filter with the default state, full
// marker reconciliation, viewport fit, then view publication.
func (l *Listener) recompute(c mesh.Collections) {
	start := time.Now()

	filtered := mesh.Filter(c.Nodes, mesh.FilterState{})
	markers := l.engine.Reconcile(filtered, nil, c.Members)
	viewport := l.engine.FitViewport(markers, nil)

	v := View{
		Nodes:    filtered,
		Stats:    mesh.CalcNodeStats(filtered),
		Markers:  markers,
		Viewport: viewport,
	}
	if v.Markers == nil {
		v.Markers = []mapview.Marker{}
	}
	l.view.Store(&v)
	l.metrics.ObserveMarkerRebuild(time.Since(start))

	if l.onView != nil {
		l.onView(v)
	}
}
