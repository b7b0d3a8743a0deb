package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGTable implements Table on a PostgreSQL table. Rows scan through `db`
// struct tags; columns missing from a projection leave their fields zero.
type PGTable[T any] struct {
	pool     *pgxpool.Pool
	name     string
	listener *Listener
	logger   *slog.Logger
}

// NewPGTable builds a typed handle on one table. listener may be nil when the
// caller never subscribes (e.g. projected lookup handles).
func NewPGTable[T any](pool *pgxpool.Pool, name string, listener *Listener, logger *slog.Logger) *PGTable[T] {
	return &PGTable[T]{pool: pool, name: name, listener: listener, logger: logger}
}

// Select runs a filtered, ordered query.
func (t *PGTable[T]) Select(ctx context.Context, q Query) ([]T, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		sb.WriteString("*")
	} else {
		cols := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			cols[i] = quoteIdent(c)
		}
		sb.WriteString(strings.Join(cols, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(t.name))

	args := appendWhere(&sb, q.Filters, nil)
	if q.Order != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(quoteIdent(q.Order.Column))
		if q.Order.Descending {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := t.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, t.wrap("select", err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, t.wrap("select", err)
	}
	return result, nil
}

// Insert writes one row and returns it as persisted (defaults applied).
func (t *PGTable[T]) Insert(ctx context.Context, fields Fields) (T, error) {
	var zero T
	cols, args := sortedFields(fields)
	placeholders := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quoteIdent(t.name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	rows, err := t.pool.Query(ctx, sql, args...)
	if err != nil {
		return zero, t.wrap("insert", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return zero, t.wrap("insert", err)
	}
	return row, nil
}

// Update applies the fields to every row matching the filters and returns the
// updated row. A filter that matches nothing yields ErrNoRows.
func (t *PGTable[T]) Update(ctx context.Context, filters []Filter, fields Fields) (T, error) {
	var zero T
	cols, args := sortedFields(fields)
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(quoteIdent(t.name))
	sb.WriteString(" SET ")
	assignments := make([]string, len(cols))
	for i, c := range cols {
		assignments[i] = fmt.Sprintf("%s = $%d", quoteIdent(c), i+1)
	}
	sb.WriteString(strings.Join(assignments, ", "))
	args = appendWhere(&sb, filters, args)
	sb.WriteString(" RETURNING *")

	rows, err := t.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return zero, t.wrap("update", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return zero, t.wrap("update", err)
	}
	return row, nil
}

// Delete removes matching rows. Deleting an absent row is not an error.
func (t *PGTable[T]) Delete(ctx context.Context, filters []Filter) error {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(quoteIdent(t.name))
	args := appendWhere(&sb, filters, nil)
	if _, err := t.pool.Exec(ctx, sb.String(), args...); err != nil {
		return t.wrap("delete", err)
	}
	return nil
}

// Subscribe attaches to the table change feed.
func (t *PGTable[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	if t.listener == nil {
		return nil, fmt.Errorf("gateway: table %s has no listener", t.name)
	}
	sub := NewSubscription[T](64, nil)
	detach := t.listener.Attach(t.name, func(payload []byte) {
		evt, err := decodeEvent[T](payload)
		if err != nil {
			t.logger.Warn("malformed change notification",
				slog.String("table", t.name), slog.Any("error", err))
			return
		}
		if !sub.Publish(evt) {
			t.logger.Warn("change notification dropped",
				slog.String("table", t.name), slog.String("type", string(evt.Type)))
		}
	})
	sub.cancel = detach
	return sub, nil
}

type wireEvent struct {
	Type string          `json:"type"`
	Old  json.RawMessage `json:"old"`
	New  json.RawMessage `json:"new"`
}

func decodeEvent[T any](payload []byte) (Event[T], error) {
	var wire wireEvent
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Event[T]{}, err
	}
	evt := Event[T]{Type: EventType(wire.Type)}
	switch evt.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return Event[T]{}, fmt.Errorf("unknown event type %q", wire.Type)
	}
	if len(wire.Old) > 0 && string(wire.Old) != "null" {
		var old T
		if err := json.Unmarshal(wire.Old, &old); err != nil {
			return Event[T]{}, err
		}
		evt.Old = &old
	}
	if len(wire.New) > 0 && string(wire.New) != "null" {
		var next T
		if err := json.Unmarshal(wire.New, &next); err != nil {
			return Event[T]{}, err
		}
		evt.New = &next
	}
	return evt, nil
}

func appendWhere(sb *strings.Builder, filters []Filter, args []any) []any {
	for i, f := range filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(sb, "%s = $%d", quoteIdent(f.Column), len(args))
	}
	return args
}

func sortedFields(fields Fields) ([]string, []any) {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = fields[c]
	}
	return cols, args
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (t *PGTable[T]) wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("gateway: %s %s: %s: %w", op, t.name, pgErr.Message, ErrConflict)
		case pgErr.Code == "42501":
			return fmt.Errorf("gateway: %s %s: %w", op, t.name, ErrPermission)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("gateway: %s %s: %w", op, t.name, ErrNoRows)
	}
	return fmt.Errorf("gateway: %s %s: %w", op, t.name, err)
}
