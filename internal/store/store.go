package store

import (
	"context"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/mesh"
	"ipnet/site-go/internal/metrics"
)

// Loader produces the combined site payload from some backing source.
type Loader interface {
	// Name identifies the source in logs and metrics.
	Name() string
	Load(ctx context.Context) (mesh.Dataset, error)
}

// SafeLoad runs the loader but never surfaces an error: a failed load yields
// the empty triple and a log entry. There is no retry here; the surrounding
// page lifecycle (or the refresh worker) is the only path back to data.
func SafeLoad(ctx context.Context, l Loader, log zerolog.Logger, m *metrics.Metrics) mesh.Dataset {
	ds, err := l.Load(ctx)
	if err != nil {
		log.Error().Err(err).Str("source", l.Name()).Msg("dataset load failed, serving empty collections")
		m.IncDatasetLoad(l.Name(), "error")
		return mesh.EmptyDataset()
	}
	m.IncDatasetLoad(l.Name(), "ok")
	return ds
}
