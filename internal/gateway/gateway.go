// Package gateway defines the narrow contract the stores use to talk to the
// backing relational store: point queries, filtered writes and a per-table
// change-feed subscription.
package gateway

import (
	"context"
	"errors"
	"sync"
)

// EventType enumerates change-feed event kinds.
type EventType string

const (
	// EventInsert signals a newly committed row.
	EventInsert EventType = "INSERT"
	// EventUpdate signals a committed row update.
	EventUpdate EventType = "UPDATE"
	// EventDelete signals a committed row deletion.
	EventDelete EventType = "DELETE"
)

// Event is a single row-level change notification.
type Event[T any] struct {
	Type EventType
	Old  *T
	New  *T
}

// Filter is an equality predicate on a single column.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Order describes the requested result ordering.
type Order struct {
	Column     string
	Descending bool
}

// Query shapes a Select call. Zero value means "all rows, all columns,
// storage order".
type Query struct {
	Columns []string
	Filters []Filter
	Order   *Order
	Limit   int
}

// Fields carries the column values of a write. Mutations always send fully
// computed absolute values, never remote increments.
type Fields map[string]any

// Table is the per-table gateway contract.
type Table[T any] interface {
	Select(ctx context.Context, q Query) ([]T, error)
	Insert(ctx context.Context, fields Fields) (T, error)
	Update(ctx context.Context, filters []Filter, fields Fields) (T, error)
	Delete(ctx context.Context, filters []Filter) error
	Subscribe(ctx context.Context) (*Subscription[T], error)
}

var (
	// ErrNoRows indicates a point query or filtered write matched nothing.
	ErrNoRows = errors.New("gateway: no rows")
	// ErrConflict indicates a constraint violation.
	ErrConflict = errors.New("gateway: constraint violation")
	// ErrPermission indicates the backend rejected the call.
	ErrPermission = errors.New("gateway: permission denied")
)

// Subscription delivers change-feed events for one table. After Unsubscribe
// the handle is inert: in-flight notifications are dropped.
type Subscription[T any] struct {
	mu     sync.Mutex
	events chan Event[T]
	closed bool
	cancel func()
}

// NewSubscription builds a subscription with the given buffer. cancel runs
// once on Unsubscribe and detaches the handle from its producer.
func NewSubscription[T any](buffer int, cancel func()) *Subscription[T] {
	if buffer <= 0 {
		buffer = 64
	}
	return &Subscription[T]{events: make(chan Event[T], buffer), cancel: cancel}
}

// Events returns the event stream. The channel closes on Unsubscribe.
func (s *Subscription[T]) Events() <-chan Event[T] {
	return s.events
}

// Publish offers an event to the subscriber. It reports false when the
// subscription is closed or the buffer is full (the event is dropped).
func (s *Subscription[T]) Publish(evt Event[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- evt:
		return true
	default:
		return false
	}
}

// Unsubscribe stops delivery and closes the event channel.
func (s *Subscription[T]) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
