// Package unitcache memoizes item-id to unit-of-measure lookups so movement
// and request stores can enrich feed events without re-querying the backend
// for every notification in a burst.
package unitcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
)

// ItemUnit is the projected inventory row the cache queries.
type ItemUnit struct {
	ID   string `db:"id" json:"id"`
	Unit string `db:"unit" json:"unit"`
}

// Cache maps item ids to units. A miss performs exactly one projected point
// query; results are memoized for the session, known-absent items included.
// Concurrent misses for the same id collapse into a single query.
type Cache struct {
	table gateway.Table[ItemUnit]

	mu    sync.RWMutex
	units map[string]string
	group singleflight.Group
}

// New constructs a Cache over the inventory table.
func New(table gateway.Table[ItemUnit]) *Cache {
	return &Cache{table: table, units: make(map[string]string)}
}

// Unit resolves the unit for an item, empty for items with no known unit.
// Query failures are returned without being memoized.
func (c *Cache) Unit(ctx context.Context, itemID string) (string, error) {
	if itemID == "" {
		return "", nil
	}
	c.mu.RLock()
	unit, ok := c.units[itemID]
	c.mu.RUnlock()
	if ok {
		return unit, nil
	}

	v, err, _ := c.group.Do(itemID, func() (any, error) {
		rows, err := c.table.Select(ctx, gateway.Query{
			Columns: []string{"id", "unit"},
			Filters: []gateway.Filter{gateway.Eq("id", itemID)},
			Limit:   1,
		})
		if err != nil && !errors.Is(err, gateway.ErrNoRows) {
			return "", fmt.Errorf("unitcache: lookup %s: %w", itemID, err)
		}
		unit := ""
		if len(rows) > 0 {
			unit = rows[0].Unit
		}
		c.Warm(itemID, unit)
		return unit, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Warm seeds an entry, typically from a fetch that already carried the unit.
func (c *Cache) Warm(itemID, unit string) {
	if itemID == "" {
		return
	}
	c.mu.Lock()
	c.units[itemID] = unit
	c.mu.Unlock()
}

// Invalidate drops an entry; the next lookup re-queries. Driven by the
// inventory feed when an item's unit changes or the item is deleted.
func (c *Cache) Invalidate(itemID string) {
	c.mu.Lock()
	delete(c.units, itemID)
	c.mu.Unlock()
}
