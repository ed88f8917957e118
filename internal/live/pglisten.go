package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"ipnet/site-go/internal/db"
)

const (
	nodeChannel   = "node_changes"
	memberChannel = "member_changes"
)

// PGListener consumes the database change feed over Postgres LISTEN/NOTIFY.
// Row triggers publish `{"type":"INSERT|UPDATE|DELETE","new":…,"old":…}` on
// per-entity channels, already filtered to public records.
type PGListener struct {
	log      zerolog.Logger
	pool     *db.Pool
	listener *Listener
}

func NewPGListener(log zerolog.Logger, pool *db.Pool, l *Listener) *PGListener {
	return &PGListener{log: log, pool: pool, listener: l}
}

// Run holds a LISTEN session open, re-acquiring the connection with backoff
// when it drops. Returns when the context ends.
func (p *PGListener) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := p.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		p.log.Error().Err(err).Dur("retry_in", backoff).Msg("change feed session ended, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (p *PGListener) listen(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, ch := range []string{nodeChannel, memberChannel} {
		if _, err := conn.Exec(ctx, "LISTEN "+ch); err != nil {
			return err
		}
	}
	p.log.Info().Msg("listening for database change notifications")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		entity := EntityNode
		if n.Channel == memberChannel {
			entity = EntityMember
		}

		var payload struct {
			Type string          `json:"type"`
			New  json.RawMessage `json:"new"`
			Old  json.RawMessage `json:"old"`
		}
		if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
			p.log.Warn().Err(err).Str("channel", n.Channel).Msg("dropping unparseable notification")
			continue
		}

		p.listener.Submit(Event{
			Entity: entity,
			Kind:   payload.Type,
			New:    payload.New,
			Old:    payload.Old,
		})
	}
}
