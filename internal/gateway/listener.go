package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Listener holds one dedicated connection, LISTENs on the change channels of
// the registered tables and fans raw notification payloads out to table
// subscriptions. Delivery is active only while Run holds a live connection.
type Listener struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]map[int64]func(payload []byte)
	nextID   int64
	channels []string
}

// NewListener constructs a Listener for the given tables. Each table is
// expected to notify on "<table>_changes" (see migrations/0002_notify.sql).
func NewListener(pool *pgxpool.Pool, logger *slog.Logger, tables ...string) *Listener {
	channels := make([]string, 0, len(tables))
	for _, t := range tables {
		channels = append(channels, t+"_changes")
	}
	return &Listener{
		pool:     pool,
		logger:   logger,
		handlers: make(map[string]map[int64]func(payload []byte)),
		channels: channels,
	}
}

// Attach registers a payload handler for a table and returns a detach func.
func (l *Listener) Attach(table string, fn func(payload []byte)) func() {
	channel := table + "_changes"
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	if l.handlers[channel] == nil {
		l.handlers[channel] = make(map[int64]func(payload []byte))
	}
	l.handlers[channel][id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers[channel], id)
	}
}

// Run pumps notifications until the context is cancelled. A broken connection
// is re-acquired with backoff; missed events during the gap are recovered by
// the scheduled full resync, not replayed here.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("change feed connection lost, reconnecting", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("gateway: acquire listen connection: %w", err)
	}
	defer conn.Release()

	for _, channel := range l.channels {
		if _, err := conn.Exec(ctx, "LISTEN "+quoteIdent(channel)); err != nil {
			return fmt.Errorf("gateway: listen %s: %w", channel, err)
		}
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(notification.Channel, []byte(notification.Payload))
	}
}

func (l *Listener) dispatch(channel string, payload []byte) {
	l.mu.Lock()
	fns := make([]func([]byte), 0, len(l.handlers[channel]))
	for _, fn := range l.handlers[channel] {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}
