package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
	"github.com/ngshijun/clinic-inventory-manager/internal/mirror"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// MovementLog appends stock movement records. Implemented by the stock
// movement store; nil disables movement logging.
type MovementLog interface {
	Record(ctx context.Context, entry MovementEntry) error
}

// UnitCache receives unit warm/invalidate signals from this store's fetches
// and feed events.
type UnitCache interface {
	Warm(itemID, unit string)
	Invalidate(itemID string)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Store mirrors the inventory table: an ordered in-memory collection kept
// consistent with both local mutations and remote change notifications. The
// persisted row is the source of truth; the collection is a cache.
type Store struct {
	logger    *slog.Logger
	table     gateway.Table[Item]
	movements MovementLog
	units     UnitCache
	audit     AuditPort
	status    shared.Status
	mirror    *mirror.Mirror[Item]
}

// NewStore constructs the inventory store. movements, units and audit may be
// nil.
func NewStore(logger *slog.Logger, table gateway.Table[Item], movements MovementLog, units UnitCache, audit AuditPort) *Store {
	coll := collate.New(language.English)
	return &Store{
		logger:    logger,
		table:     table,
		movements: movements,
		units:     units,
		audit:     audit,
		mirror: mirror.New(mirror.Config[Item]{
			Key: func(it Item) string { return it.ID },
			Less: func(a, b Item) bool {
				if c := coll.CompareString(a.ItemName, b.ItemName); c != 0 {
					return c < 0
				}
				return a.ID < b.ID
			},
		}),
	}
}

// FetchAll replaces the local collection with a full table query. On failure
// the previous collection stays available and the error is recorded.
func (s *Store) FetchAll(ctx context.Context) error {
	s.status.Begin()
	rows, err := s.table.Select(ctx, gateway.Query{
		Order: &gateway.Order{Column: "item_name"},
	})
	if err != nil {
		err = fmt.Errorf("inventory: fetch items: %w", err)
		s.status.Fail(err)
		return err
	}
	s.mirror.Replace(rows)
	if s.units != nil {
		for _, it := range rows {
			s.units.Warm(it.ID, it.Unit)
		}
	}
	s.status.End()
	return nil
}

// Add validates and inserts a new item. An initial stock movement is logged
// when the item starts with a positive quantity.
func (s *Store) Add(ctx context.Context, in NewItem) (Item, error) {
	s.status.Begin()
	reason := in.NonOrderReason
	if in.OrderDate != nil {
		// order_date and non_order_reason are mutually exclusive.
		reason = nil
	}
	fields := gateway.Fields{
		"item_name":        in.ItemName,
		"quantity":         max64(0, in.Quantity),
		"reorder_level":    max64(NeverReorder, in.ReorderLevel),
		"unit":             in.Unit,
		"remark":           in.Remark,
		"order_date":       in.OrderDate,
		"non_order_reason": reason,
	}
	row, err := s.table.Insert(ctx, fields)
	if err != nil {
		err = fmt.Errorf("inventory: add item: %w", err)
		s.status.Fail(err)
		return Item{}, err
	}
	s.apply(gateway.Event[Item]{Type: gateway.EventInsert, New: &row})
	if s.units != nil {
		s.units.Warm(row.ID, row.Unit)
	}
	if row.Quantity > 0 {
		s.logMovement(ctx, MovementEntry{
			ItemID:   row.ID,
			ItemName: row.ItemName,
			Quantity: row.Quantity,
			Type:     MovementStockIn,
			Remark:   "Initial stock",
		})
	}
	s.recordAudit(ctx, "inventory:add", row.ID, map[string]any{"item_name": row.ItemName, "quantity": row.Quantity})
	s.status.End()
	return row, nil
}

// StockIn adds to an item's quantity and logs a stock_in movement of the
// requested amount. clearOrderDate also closes out an outstanding order.
func (s *Store) StockIn(ctx context.Context, itemID string, quantity int64, clearOrderDate bool) error {
	s.status.Begin()
	item, ok := s.mirror.Get(itemID)
	if !ok {
		s.status.Fail(ErrItemNotFound)
		return ErrItemNotFound
	}
	fields := gateway.Fields{
		"quantity":   item.Quantity + max64(0, quantity),
		"updated_at": time.Now().UTC(),
	}
	if clearOrderDate {
		fields["order_date"] = nil
	}
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", itemID)}, fields)
	if err != nil {
		err = fmt.Errorf("inventory: stock in %s: %w", itemID, err)
		s.status.Fail(err)
		return err
	}
	s.apply(gateway.Event[Item]{Type: gateway.EventUpdate, New: &row})
	s.logMovement(ctx, MovementEntry{
		ItemID:   itemID,
		ItemName: item.ItemName,
		Quantity: quantity,
		Type:     MovementStockIn,
	})
	s.recordAudit(ctx, "inventory:stock_in", itemID, map[string]any{"quantity": quantity})
	s.status.End()
	return nil
}

// StockOut subtracts from an item's quantity, clamping at zero, and logs a
// stock_out movement of the requested amount (not the clamped delta).
func (s *Store) StockOut(ctx context.Context, itemID string, quantity int64) error {
	s.status.Begin()
	item, ok := s.mirror.Get(itemID)
	if !ok {
		s.status.Fail(ErrItemNotFound)
		return ErrItemNotFound
	}
	newQuantity := max64(0, item.Quantity-max64(0, quantity))
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", itemID)}, gateway.Fields{
		"quantity":   newQuantity,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		err = fmt.Errorf("inventory: stock out %s: %w", itemID, err)
		s.status.Fail(err)
		return err
	}
	s.apply(gateway.Event[Item]{Type: gateway.EventUpdate, New: &row})
	s.logMovement(ctx, MovementEntry{
		ItemID:   itemID,
		ItemName: item.ItemName,
		Quantity: quantity,
		Type:     MovementStockOut,
	})
	s.recordAudit(ctx, "inventory:stock_out", itemID, map[string]any{"quantity": quantity})
	s.status.End()
	return nil
}

// MarkAsOrdered stamps the outstanding-order date (now when at is nil) and
// clears any non-order reason.
func (s *Store) MarkAsOrdered(ctx context.Context, itemID string, at *time.Time) error {
	orderDate := time.Now().UTC()
	if at != nil {
		orderDate = *at
	}
	return s.patch(ctx, itemID, "inventory:mark_ordered", gateway.Fields{
		"order_date":       orderDate,
		"non_order_reason": nil,
	})
}

// ClearOrderDate removes the outstanding-order mark.
func (s *Store) ClearOrderDate(ctx context.Context, itemID string) error {
	return s.patch(ctx, itemID, "inventory:clear_order", gateway.Fields{
		"order_date": nil,
	})
}

// SetNonOrderReason records why an item is not being reordered and clears the
// order date. A nil reason clears the field.
func (s *Store) SetNonOrderReason(ctx context.Context, itemID string, reason *string) error {
	return s.patch(ctx, itemID, "inventory:non_order_reason", gateway.Fields{
		"non_order_reason": reason,
		"order_date":       nil,
	})
}

// Update applies a partial edit. Order state stays mutually exclusive: an
// edit that sets order_date clears non_order_reason and vice versa.
func (s *Store) Update(ctx context.Context, itemID string, upd ItemUpdate) error {
	fields := gateway.Fields{}
	if upd.ItemName != nil {
		fields["item_name"] = *upd.ItemName
	}
	if upd.Quantity != nil {
		fields["quantity"] = max64(0, *upd.Quantity)
	}
	if upd.ReorderLevel != nil {
		fields["reorder_level"] = max64(NeverReorder, *upd.ReorderLevel)
	}
	if upd.Unit != nil {
		fields["unit"] = *upd.Unit
	}
	if upd.Remark != nil {
		fields["remark"] = *upd.Remark
	}
	if upd.OrderDate != nil {
		fields["order_date"] = *upd.OrderDate
		fields["non_order_reason"] = nil
	}
	if upd.NonOrderReason != nil {
		fields["non_order_reason"] = *upd.NonOrderReason
		fields["order_date"] = nil
	}
	return s.patch(ctx, itemID, "inventory:update", fields)
}

// Remove deletes an item.
func (s *Store) Remove(ctx context.Context, itemID string) error {
	s.status.Begin()
	if err := s.table.Delete(ctx, []gateway.Filter{gateway.Eq("id", itemID)}); err != nil {
		err = fmt.Errorf("inventory: delete %s: %w", itemID, err)
		s.status.Fail(err)
		return err
	}
	old := Item{ID: itemID}
	if item, ok := s.mirror.Get(itemID); ok {
		old = item
	}
	s.apply(gateway.Event[Item]{Type: gateway.EventDelete, Old: &old})
	s.recordAudit(ctx, "inventory:delete", itemID, nil)
	s.status.End()
	return nil
}

// Get performs a local lookup only; no remote call.
func (s *Store) Get(itemID string) (Item, error) {
	if item, ok := s.mirror.Get(itemID); ok {
		return item, nil
	}
	return Item{}, ErrItemNotFound
}

// Search filters the local collection by case-insensitive substring match on
// the item name. An empty query returns everything.
func (s *Store) Search(query string) []Item {
	if query == "" {
		return s.mirror.Snapshot()
	}
	q := strings.ToLower(query)
	return s.mirror.Find(func(it Item) bool {
		return strings.Contains(strings.ToLower(it.ItemName), q)
	})
}

// LowStock lists items at or below their reorder level, excluding items that
// are already out of stock.
func (s *Store) LowStock() []Item {
	return s.mirror.Find(func(it Item) bool {
		return it.Quantity <= it.ReorderLevel && it.Quantity != 0
	})
}

// OutOfStock lists depleted items, excluding never-reorder items.
func (s *Store) OutOfStock() []Item {
	return s.mirror.Find(func(it Item) bool {
		return it.Quantity == 0 && it.ReorderLevel != NeverReorder
	})
}

// Stats summarises the local collection.
func (s *Store) Stats() Stats {
	items := s.mirror.Snapshot()
	st := Stats{TotalProducts: len(items)}
	for _, it := range items {
		st.TotalItems += it.Quantity
		if it.Quantity <= it.ReorderLevel && it.Quantity != 0 {
			st.LowStock++
		}
		if it.Quantity == 0 && it.ReorderLevel != NeverReorder {
			st.OutOfStock++
		}
	}
	return st
}

// Loading reports whether a store operation is in flight.
func (s *Store) Loading() bool { return s.status.Loading() }

// LastError returns the last recorded operation error, empty when none.
func (s *Store) LastError() string { return s.status.Err() }

// Run consumes the change feed until ctx is cancelled. The collection is
// mutated only here and in the action methods above.
func (s *Store) Run(ctx context.Context) error {
	sub, err := s.table.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("inventory: subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			s.apply(evt)
		}
	}
}

// apply is the single reconciliation path for both feed events and synthetic
// local-origin events.
func (s *Store) apply(evt gateway.Event[Item]) {
	if s.units != nil {
		switch evt.Type {
		case gateway.EventUpdate:
			if evt.New != nil {
				if prev, ok := s.mirror.Get(evt.New.ID); ok && prev.Unit != evt.New.Unit {
					s.units.Invalidate(evt.New.ID)
				}
			}
		case gateway.EventDelete:
			if evt.Old != nil {
				s.units.Invalidate(evt.Old.ID)
			}
		}
	}
	s.mirror.Apply(evt)
}

func (s *Store) patch(ctx context.Context, itemID, action string, fields gateway.Fields) error {
	s.status.Begin()
	if _, ok := s.mirror.Get(itemID); !ok {
		s.status.Fail(ErrItemNotFound)
		return ErrItemNotFound
	}
	fields["updated_at"] = time.Now().UTC()
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", itemID)}, fields)
	if err != nil {
		err = fmt.Errorf("inventory: %s %s: %w", strings.TrimPrefix(action, "inventory:"), itemID, err)
		s.status.Fail(err)
		return err
	}
	s.apply(gateway.Event[Item]{Type: gateway.EventUpdate, New: &row})
	s.recordAudit(ctx, action, itemID, nil)
	s.status.End()
	return nil
}

// logMovement is best-effort: the inventory mutation has already been
// committed, so a failed movement write is logged, not propagated.
func (s *Store) logMovement(ctx context.Context, entry MovementEntry) {
	if s.movements == nil {
		return
	}
	if err := s.movements.Record(ctx, entry); err != nil {
		s.logger.Warn("record stock movement",
			slog.String("item_id", entry.ItemID),
			slog.String("movement_type", entry.Type),
			slog.Any("error", err))
	}
}

func (s *Store) recordAudit(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   TableName,
		EntityID: entityID,
		Meta:     meta,
	})
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
