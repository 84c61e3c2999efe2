// Package pgnotify subscribes to activity log inserts announced through Postgres LISTEN/NOTIFY.
package pgnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/realtime"
)

// Option configures the Channel.
type Option func(*Channel)

// WithLogger overrides the channel logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// Channel is a realtime.Channel holding one dedicated pool connection per subscription.
type Channel struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewChannel constructs a Channel.
func NewChannel(pool *pgxpool.Pool, opts ...Option) *Channel {
	c := &Channel{pool: pool, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe issues LISTEN on topic and streams decoded notification payloads.
func (c *Channel) Subscribe(ctx context.Context, topic string) (realtime.Stream, error) {
	if c.pool == nil {
		return nil, fmt.Errorf("pgnotify: no pool: %w", realtime.ErrUnavailable)
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgnotify: acquire: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{topic}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pgnotify: listen %s: %w", topic, err)
	}
	c.logger.Info().Str("channel", topic).Msg("postgres listen started")

	run := func(ctx context.Context, emit realtime.Emit) error {
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("pgnotify: wait: %w", err)
			}
			if n.Channel != topic {
				continue
			}

			var rec domain.RawRecord
			if err := json.Unmarshal([]byte(n.Payload), &rec); err != nil {
				c.logger.Warn().Err(err).Str("channel", n.Channel).Msg("decode error")
				continue
			}
			if !emit(rec) {
				return nil
			}
		}
	}

	release := func() error {
		defer conn.Release()
		if conn.Conn().IsClosed() {
			return nil
		}
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := conn.Exec(unlistenCtx, "UNLISTEN "+pgx.Identifier{topic}.Sanitize())
		return err
	}

	return realtime.NewStream(ctx, run, release), nil
}
