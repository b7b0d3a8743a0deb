// Package mirror holds the ordered in-memory collection every store keeps in
// step with its remote table. All collection changes, local-origin and
// feed-origin alike, flow through Apply so a single code path maintains the
// ordering and consistency invariants.
package mirror

import (
	"sort"
	"sync"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
)

// Config wires the per-entity behavior of a Mirror.
type Config[T any] struct {
	// Key extracts the row identity.
	Key func(T) string
	// Less defines the canonical sort order.
	Less func(a, b T) bool
	// Merge reconciles an incoming row with the locally held one on UPDATE,
	// letting locally-derived fields survive partial remote payloads. When
	// nil the incoming row replaces the local one wholesale.
	Merge func(incoming, existing T) T
}

// Mirror is an ordered mirror of one remote table.
type Mirror[T any] struct {
	cfg Config[T]

	mu    sync.RWMutex
	items []T
}

// New constructs an empty mirror.
func New[T any](cfg Config[T]) *Mirror[T] {
	return &Mirror[T]{cfg: cfg}
}

// Replace swaps in a freshly fetched collection.
func (m *Mirror[T]) Replace(items []T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]T(nil), items...)
	m.sortLocked()
}

// Apply reconciles one change event into the collection:
// an INSERT for a known identity is ignored, an UPDATE for an unknown
// identity is a no-op (never speculatively created), a DELETE is idempotent.
// The collection is re-sorted after every event so the observed order stays
// total even under out-of-order delivery.
func (m *Mirror[T]) Apply(evt gateway.Event[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch evt.Type {
	case gateway.EventInsert:
		if evt.New == nil {
			return
		}
		if m.indexLocked(m.cfg.Key(*evt.New)) >= 0 {
			return
		}
		m.items = append(m.items, *evt.New)
	case gateway.EventUpdate:
		if evt.New == nil {
			return
		}
		idx := m.indexLocked(m.cfg.Key(*evt.New))
		if idx < 0 {
			return
		}
		incoming := *evt.New
		if m.cfg.Merge != nil {
			incoming = m.cfg.Merge(incoming, m.items[idx])
		}
		m.items[idx] = incoming
	case gateway.EventDelete:
		if evt.Old == nil {
			return
		}
		idx := m.indexLocked(m.cfg.Key(*evt.Old))
		if idx < 0 {
			return
		}
		m.items = append(m.items[:idx], m.items[idx+1:]...)
	default:
		return
	}
	m.sortLocked()
}

// Snapshot returns a copy of the collection in canonical order.
func (m *Mirror[T]) Snapshot() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]T(nil), m.items...)
}

// Get performs a local lookup by identity.
func (m *Mirror[T]) Get(key string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx := m.indexLocked(key); idx >= 0 {
		return m.items[idx], true
	}
	var zero T
	return zero, false
}

// Find returns the rows matching pred, in canonical order.
func (m *Mirror[T]) Find(pred func(T) bool) []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []T
	for _, item := range m.items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// Len reports the collection size.
func (m *Mirror[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Mirror[T]) indexLocked(key string) int {
	for i, item := range m.items {
		if m.cfg.Key(item) == key {
			return i
		}
	}
	return -1
}

func (m *Mirror[T]) sortLocked() {
	sort.SliceStable(m.items, func(i, j int) bool {
		return m.cfg.Less(m.items[i], m.items[j])
	})
}
