package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/live"
	"ipnet/site-go/internal/mapview"
	"ipnet/site-go/internal/mesh"
	"ipnet/site-go/internal/metrics"
)

type fakeLoader struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeLoader) Name() string { return "fake" }

func (f *fakeLoader) Load(ctx context.Context) (mesh.Dataset, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return mesh.Dataset{}, errors.New("source down")
	}
	return mesh.Dataset{
		Config: mesh.SiteConfig{},
		Nodes:  []mesh.Node{{ID: "a.ip1.ipnt.uk", Name: "A", Area: "ip1"}},
	}, nil
}

func newTestListener(t *testing.T) *live.Listener {
	t.Helper()
	l := live.NewListener(zerolog.Nop(), mapview.New(zerolog.Nop(), mapview.DefaultConfig()), metrics.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l
}

func TestWorker_RefreshReplacesSnapshot(t *testing.T) {
	listener := newTestListener(t)
	loader := &fakeLoader{}
	w := New(zerolog.Nop(), loader, listener, metrics.New(), Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(listener.Collections().Nodes) == 1 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("expected refreshed dataset to reach the listener")
}

func TestWorker_FailedLoadKeepsPreviousSnapshot(t *testing.T) {
	listener := newTestListener(t)
	loader := &fakeLoader{}
	loader.fail.Store(true)
	w := New(zerolog.Nop(), loader, listener, metrics.New(), Options{Interval: 5 * time.Millisecond})

	listener.Replace(mesh.Dataset{Nodes: []mesh.Node{{ID: "keep", Name: "Keep"}}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if loader.calls.Load() >= 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if loader.calls.Load() < 1 {
		t.Fatal("expected at least one load attempt")
	}

	nodes := listener.Collections().Nodes
	if len(nodes) != 1 || nodes[0].ID != "keep" {
		t.Fatalf("expected previous snapshot retained, got %v", nodes)
	}
}

func TestBackoffDuration(t *testing.T) {
	base := time.Minute

	if got := backoffDuration(base, 0); got != base {
		t.Fatalf("expected base interval with no failures, got %s", got)
	}
	if got := backoffDuration(base, 2); got != 4*time.Minute {
		t.Fatalf("expected base*4 after 2 failures, got %s", got)
	}
	if got := backoffDuration(base, 10); got != 16*time.Minute {
		t.Fatalf("expected failure count capped, got %s", got)
	}
	if got := backoffDuration(time.Hour, 4); got != time.Hour {
		t.Fatalf("expected hour ceiling, got %s", got)
	}
}
