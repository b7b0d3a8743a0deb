// Package gatewaytest provides an in-memory gateway.Table for store tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
)

// Table is an in-memory gateway.Table. Rows round-trip through their JSON
// form on writes, mimicking the backend materializing a row from fields.
// Feed events are only delivered when the test emits them explicitly, so
// tests control the interleaving of local mutations and feed echoes.
type Table[T any] struct {
	mu   sync.Mutex
	rows []T
	subs []*gateway.Subscription[T]

	// Err, when set, fails the next gateway call and clears itself.
	Err error
	// Inserted counts Insert calls, Selected counts Select calls.
	Inserted int
	Selected int
}

// New builds an empty fake table.
func New[T any]() *Table[T] {
	return &Table[T]{}
}

// Seed replaces the stored rows.
func (t *Table[T]) Seed(rows ...T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append([]T(nil), rows...)
}

// Rows returns a copy of the stored rows.
func (t *Table[T]) Rows() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]T(nil), t.rows...)
}

// Select applies equality filters and the projection is ignored (fakes return
// whole rows; stores never rely on projected zeroing).
func (t *Table[T]) Select(_ context.Context, q gateway.Query) ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Selected++
	if err := t.takeErr(); err != nil {
		return nil, err
	}
	var out []T
	for _, row := range t.rows {
		if matches(row, q.Filters) {
			out = append(out, row)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert materializes a row from the fields, assigning id and timestamps the
// way the backend's column defaults would.
func (t *Table[T]) Insert(_ context.Context, fields gateway.Fields) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Inserted++
	var zero T
	if err := t.takeErr(); err != nil {
		return zero, err
	}
	row, err := materialize[T](fields, nil)
	if err != nil {
		return zero, err
	}
	t.rows = append(t.rows, row)
	return row, nil
}

// Update patches every matching row and returns the last one touched.
func (t *Table[T]) Update(_ context.Context, filters []gateway.Filter, fields gateway.Fields) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	if err := t.takeErr(); err != nil {
		return zero, err
	}
	updated := false
	var last T
	for i, row := range t.rows {
		if !matches(row, filters) {
			continue
		}
		next, err := materialize[T](fields, &row)
		if err != nil {
			return zero, err
		}
		t.rows[i] = next
		last = next
		updated = true
	}
	if !updated {
		return zero, gateway.ErrNoRows
	}
	return last, nil
}

// Delete removes matching rows; absent rows are not an error.
func (t *Table[T]) Delete(_ context.Context, filters []gateway.Filter) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.takeErr(); err != nil {
		return err
	}
	kept := t.rows[:0]
	for _, row := range t.rows {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	t.rows = kept
	return nil
}

// Subscribe hands out a subscription fed only by Emit.
func (t *Table[T]) Subscribe(_ context.Context) (*gateway.Subscription[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.takeErr(); err != nil {
		return nil, err
	}
	sub := gateway.NewSubscription[T](64, nil)
	t.subs = append(t.subs, sub)
	return sub, nil
}

// Emit delivers a feed event to every live subscription.
func (t *Table[T]) Emit(evt gateway.Event[T]) {
	t.mu.Lock()
	subs := append([]*gateway.Subscription[T](nil), t.subs...)
	t.mu.Unlock()
	for _, sub := range subs {
		sub.Publish(evt)
	}
}

func (t *Table[T]) takeErr() error {
	err := t.Err
	t.Err = nil
	return err
}

// materialize builds a T from write fields layered over an optional base row,
// filling id/created_at/updated_at defaults for inserts.
func materialize[T any](fields gateway.Fields, base *T) (T, error) {
	var zero T
	raw := map[string]json.RawMessage{}
	if base != nil {
		data, err := json.Marshal(base)
		if err != nil {
			return zero, err
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return zero, err
		}
	}
	now := time.Now().UTC()
	if base == nil {
		setDefault(raw, "id", uuid.NewString())
		setDefault(raw, "created_at", now)
	}
	setDefault(raw, "updated_at", now)
	for col, val := range fields {
		data, err := json.Marshal(val)
		if err != nil {
			return zero, err
		}
		raw[col] = data
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return zero, err
	}
	var row T
	if err := json.Unmarshal(data, &row); err != nil {
		return zero, fmt.Errorf("gatewaytest: materialize row: %w", err)
	}
	return row, nil
}

func setDefault(raw map[string]json.RawMessage, col string, val any) {
	if _, ok := raw[col]; ok {
		return
	}
	data, _ := json.Marshal(val)
	raw[col] = data
}

// matches compares filter values against the row's JSON field values, which
// keeps the fake oblivious to concrete row types.
func matches[T any](row T, filters []gateway.Filter) bool {
	if len(filters) == 0 {
		return true
	}
	data, err := json.Marshal(row)
	if err != nil {
		return false
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return false
	}
	for _, f := range filters {
		want := fmt.Sprintf("%v", f.Value)
		got, ok := raw[f.Column]
		if !ok {
			return false
		}
		if !strings.EqualFold(fmt.Sprintf("%v", got), want) && !reflect.DeepEqual(got, f.Value) {
			return false
		}
	}
	return true
}
