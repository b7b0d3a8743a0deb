package stockreq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
	"github.com/ngshijun/clinic-inventory-manager/internal/mirror"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// UnitResolver looks up the unit of measure for an item.
type UnitResolver interface {
	Unit(ctx context.Context, itemID string) (string, error)
}

// InventoryControl is the slice of the inventory store the approval saga
// calls through. Cross-store mutations go through public store methods only.
type InventoryControl interface {
	StockOut(ctx context.Context, itemID string, quantity int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Store mirrors the stock_requests table, newest first.
type Store struct {
	logger    *slog.Logger
	table     gateway.Table[Request]
	units     UnitResolver
	inventory InventoryControl
	audit     AuditPort
	status    shared.Status
	mirror    *mirror.Mirror[Request]
}

// NewStore constructs the requests store. units, inventory and audit may be
// nil; without inventory, approval fails closed.
func NewStore(logger *slog.Logger, table gateway.Table[Request], units UnitResolver, inv InventoryControl, audit AuditPort) *Store {
	return &Store{
		logger:    logger,
		table:     table,
		units:     units,
		inventory: inv,
		audit:     audit,
		mirror: mirror.New(mirror.Config[Request]{
			Key: func(r Request) string { return r.ID },
			Less: func(a, b Request) bool {
				if !a.CreatedAt.Equal(b.CreatedAt) {
					return a.CreatedAt.After(b.CreatedAt)
				}
				return a.ID < b.ID
			},
			// Feed payloads do not carry the derived unit.
			Merge: func(incoming, existing Request) Request {
				if incoming.Unit == "" {
					incoming.Unit = existing.Unit
				}
				return incoming
			},
		}),
	}
}

// FetchAll replaces the local collection, resolving units through the cache
// (which this also warms for subsequent feed events). On failure the
// previous collection stays available.
func (s *Store) FetchAll(ctx context.Context) error {
	s.status.Begin()
	rows, err := s.table.Select(ctx, gateway.Query{
		Order: &gateway.Order{Column: "created_at", Descending: true},
	})
	if err != nil {
		err = fmt.Errorf("stockreq: fetch requests: %w", err)
		s.status.Fail(err)
		return err
	}
	for i := range rows {
		rows[i].Unit = s.resolveUnit(ctx, rows[i].ItemID)
	}
	s.mirror.Replace(rows)
	s.status.End()
	return nil
}

// Add files a new pending request.
func (s *Store) Add(ctx context.Context, in NewRequest) (Request, error) {
	s.status.Begin()
	row, err := s.table.Insert(ctx, gateway.Fields{
		"item_id":   in.ItemID,
		"item_name": in.ItemName,
		"quantity":  in.Quantity,
		"remark":    in.Remark,
		"status":    StatusPending,
	})
	if err != nil {
		err = fmt.Errorf("stockreq: add request: %w", err)
		s.status.Fail(err)
		return Request{}, err
	}
	row.Unit = s.resolveUnit(ctx, row.ItemID)
	s.mirror.Apply(gateway.Event[Request]{Type: gateway.EventInsert, New: &row})
	s.recordAudit(ctx, "stockreq:add", row.ID, map[string]any{"item_id": row.ItemID, "quantity": row.Quantity})
	s.status.End()
	return row, nil
}

// Approve is a two-step saga: mark the request Approved, then stock the
// inventory out (which appends the movement record). The second leg is not
// compensated: if it fails the request stays Approved with the stock never
// decremented, and recovery is a manual stock-out. The failure is logged and
// surfaced so the inconsistency is discoverable.
func (s *Store) Approve(ctx context.Context, requestID string) error {
	s.status.Begin()
	req, ok := s.mirror.Get(requestID)
	if !ok {
		s.status.Fail(ErrRequestNotFound)
		return ErrRequestNotFound
	}
	if req.Status != StatusPending {
		s.status.Fail(ErrNotPending)
		return ErrNotPending
	}
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", requestID)}, gateway.Fields{
		"status":     StatusApproved,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		err = fmt.Errorf("stockreq: approve %s: %w", requestID, err)
		s.status.Fail(err)
		return err
	}
	s.apply(ctx, gateway.Event[Request]{Type: gateway.EventUpdate, New: &row})
	s.recordAudit(ctx, "stockreq:approve", requestID, map[string]any{"item_id": req.ItemID, "quantity": req.Quantity})

	if s.inventory == nil {
		err := fmt.Errorf("stockreq: approve %s: no inventory control wired", requestID)
		s.status.Fail(err)
		return err
	}
	if err := s.inventory.StockOut(ctx, req.ItemID, req.Quantity); err != nil {
		err = fmt.Errorf("stockreq: approve %s: stock out: %w", requestID, err)
		s.logger.Error("request approved but inventory was not decremented; manual stock-out required",
			slog.String("request_id", requestID),
			slog.String("item_id", req.ItemID),
			slog.Int64("quantity", req.Quantity),
			slog.Any("error", err))
		s.status.Fail(err)
		return err
	}
	s.status.End()
	return nil
}

// Cancel moves a pending request to its terminal Cancelled state, optionally
// replacing the remark.
func (s *Store) Cancel(ctx context.Context, requestID string, remark *string) error {
	s.status.Begin()
	req, ok := s.mirror.Get(requestID)
	if !ok {
		s.status.Fail(ErrRequestNotFound)
		return ErrRequestNotFound
	}
	if req.Status != StatusPending {
		s.status.Fail(ErrNotPending)
		return ErrNotPending
	}
	fields := gateway.Fields{
		"status":     StatusCancelled,
		"updated_at": time.Now().UTC(),
	}
	if remark != nil {
		fields["remark"] = *remark
	}
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", requestID)}, fields)
	if err != nil {
		err = fmt.Errorf("stockreq: cancel %s: %w", requestID, err)
		s.status.Fail(err)
		return err
	}
	s.apply(ctx, gateway.Event[Request]{Type: gateway.EventUpdate, New: &row})
	s.recordAudit(ctx, "stockreq:cancel", requestID, nil)
	s.status.End()
	return nil
}

// Update edits the quantity and/or remark of a request.
func (s *Store) Update(ctx context.Context, requestID string, upd RequestUpdate) error {
	s.status.Begin()
	if _, ok := s.mirror.Get(requestID); !ok {
		s.status.Fail(ErrRequestNotFound)
		return ErrRequestNotFound
	}
	fields := gateway.Fields{"updated_at": time.Now().UTC()}
	if upd.Quantity != nil {
		fields["quantity"] = *upd.Quantity
	}
	if upd.Remark != nil {
		fields["remark"] = *upd.Remark
	}
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", requestID)}, fields)
	if err != nil {
		err = fmt.Errorf("stockreq: update %s: %w", requestID, err)
		s.status.Fail(err)
		return err
	}
	s.apply(ctx, gateway.Event[Request]{Type: gateway.EventUpdate, New: &row})
	s.status.End()
	return nil
}

// Remove deletes a request.
func (s *Store) Remove(ctx context.Context, requestID string) error {
	s.status.Begin()
	if err := s.table.Delete(ctx, []gateway.Filter{gateway.Eq("id", requestID)}); err != nil {
		err = fmt.Errorf("stockreq: delete %s: %w", requestID, err)
		s.status.Fail(err)
		return err
	}
	old := Request{ID: requestID}
	if req, ok := s.mirror.Get(requestID); ok {
		old = req
	}
	s.mirror.Apply(gateway.Event[Request]{Type: gateway.EventDelete, Old: &old})
	s.recordAudit(ctx, "stockreq:delete", requestID, nil)
	s.status.End()
	return nil
}

// Get performs a local lookup only.
func (s *Store) Get(requestID string) (Request, error) {
	if req, ok := s.mirror.Get(requestID); ok {
		return req, nil
	}
	return Request{}, ErrRequestNotFound
}

// Search matches the query against item name, item id and remark,
// case-insensitive. An empty query returns everything.
func (s *Store) Search(query string) []Request {
	if query == "" {
		return s.mirror.Snapshot()
	}
	q := strings.ToLower(query)
	return s.mirror.Find(func(r Request) bool {
		return strings.Contains(strings.ToLower(r.ItemName), q) ||
			strings.Contains(strings.ToLower(r.ItemID), q) ||
			strings.Contains(strings.ToLower(r.Remark), q)
	})
}

// FilterByStatus returns requests in the given status; empty means all.
func (s *Store) FilterByStatus(status Status) []Request {
	if status == "" {
		return s.mirror.Snapshot()
	}
	return s.mirror.Find(func(r Request) bool { return r.Status == status })
}

// FilterByDate returns requests created on the same calendar day as date.
func (s *Store) FilterByDate(date time.Time) []Request {
	y, m, d := date.Date()
	return s.mirror.Find(func(r Request) bool {
		ry, rm, rd := r.CreatedAt.In(date.Location()).Date()
		return ry == y && rm == m && rd == d
	})
}

// Pending lists requests still awaiting a decision.
func (s *Store) Pending() []Request {
	return s.FilterByStatus(StatusPending)
}

// Loading reports whether a store operation is in flight.
func (s *Store) Loading() bool { return s.status.Loading() }

// LastError returns the last recorded operation error, empty when none.
func (s *Store) LastError() string { return s.status.Err() }

// Run consumes the change feed until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	sub, err := s.table.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("stockreq: subscribe: %w", err)
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
			s.apply(ctx, evt)
		}
	}
}

func (s *Store) apply(ctx context.Context, evt gateway.Event[Request]) {
	if evt.Type == gateway.EventInsert && evt.New != nil {
		enriched := *evt.New
		enriched.Unit = s.resolveUnit(ctx, enriched.ItemID)
		evt.New = &enriched
	}
	s.mirror.Apply(evt)
}

func (s *Store) resolveUnit(ctx context.Context, itemID string) string {
	if s.units == nil {
		return ""
	}
	unit, err := s.units.Unit(ctx, itemID)
	if err != nil {
		s.logger.Warn("resolve unit", slog.String("item_id", itemID), slog.Any("error", err))
		return ""
	}
	return unit
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
