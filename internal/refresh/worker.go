package refresh

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/live"
	"ipnet/site-go/internal/metrics"
	"ipnet/site-go/internal/store"
)

// Worker periodically re-loads the dataset from the configured source and
// publishes fresh snapshots through the listener, so the site keeps tracking
// the provider between live-update events.
type Worker struct {
	log      zerolog.Logger
	loader   store.Loader
	listener *live.Listener
	metrics  *metrics.Metrics
	interval time.Duration
}

type Options struct {
	Interval time.Duration
}

func New(log zerolog.Logger, loader store.Loader, l *live.Listener, m *metrics.Metrics, opts Options) *Worker {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Worker{
		log:      log,
		loader:   loader,
		listener: l,
		metrics:  m,
		interval: interval,
	}
}

// Run reloads on the interval until the context ends. Failed loads keep the
// previous snapshot and stretch the next attempt with backoff.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.loader == nil {
		return
	}

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		ds, err := w.loader.Load(ctx)
		if err != nil {
			consecutiveFailures++
			w.metrics.IncDatasetLoad(w.loader.Name(), "error")
			w.log.Error().Err(err).Str("source", w.loader.Name()).Int("failures", consecutiveFailures).Msg("dataset refresh failed, keeping previous snapshot")
		} else {
			consecutiveFailures = 0
			w.metrics.IncDatasetLoad(w.loader.Name(), "ok")
			w.listener.Replace(ds)
			w.log.Debug().Str("source", w.loader.Name()).Int("nodes", len(ds.Nodes)).Int("members", len(ds.Members)).Msg("dataset refreshed")
		}

		timer.Reset(backoffDuration(w.interval, consecutiveFailures))
	}
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 5 * time.Minute
	}
	if failures <= 0 {
		return base
	}

	// Exponential-ish backoff: base * 2^failures, capped.
	if failures > 4 {
		failures = 4
	}
	d := base * time.Duration(1<<failures)
	if d > time.Hour {
		return time.Hour
	}
	return d
}
