package stockmove

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
	"github.com/ngshijun/clinic-inventory-manager/internal/inventory"
	"github.com/ngshijun/clinic-inventory-manager/internal/mirror"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// UnitResolver looks up the unit of measure for an item; unknown items
// resolve to an empty string.
type UnitResolver interface {
	Unit(ctx context.Context, itemID string) (string, error)
}

// Store mirrors the stock_movements table, newest first. Movements are an
// append-only log; nothing in the normal flow deletes them.
type Store struct {
	logger *slog.Logger
	table  gateway.Table[Movement]
	units  UnitResolver
	status shared.Status
	mirror *mirror.Mirror[Movement]
}

// NewStore constructs the movements store. units may be nil.
func NewStore(logger *slog.Logger, table gateway.Table[Movement], units UnitResolver) *Store {
	return &Store{
		logger: logger,
		table:  table,
		units:  units,
		mirror: mirror.New(mirror.Config[Movement]{
			Key: func(m Movement) string { return m.ID },
			Less: func(a, b Movement) bool {
				if !a.CreatedAt.Equal(b.CreatedAt) {
					return a.CreatedAt.After(b.CreatedAt)
				}
				return a.ID < b.ID
			},
			// The feed payload never carries the derived unit; keep the
			// locally resolved value instead of clobbering it to empty.
			Merge: func(incoming, existing Movement) Movement {
				if incoming.Unit == "" {
					incoming.Unit = existing.Unit
				}
				return incoming
			},
		}),
	}
}

// FetchAll replaces the local collection, enriching each row with its unit.
// On failure the previous collection stays available.
func (s *Store) FetchAll(ctx context.Context) error {
	s.status.Begin()
	rows, err := s.table.Select(ctx, gateway.Query{
		Order: &gateway.Order{Column: "created_at", Descending: true},
	})
	if err != nil {
		err = fmt.Errorf("stockmove: fetch movements: %w", err)
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

// Add appends a movement.
func (s *Store) Add(ctx context.Context, in NewMovement) (Movement, error) {
	row, err := s.table.Insert(ctx, gateway.Fields{
		"item_id":       in.ItemID,
		"item_name":     in.ItemName,
		"quantity":      in.Quantity,
		"movement_type": in.MovementType,
		"remark":        in.Remark,
	})
	if err != nil {
		err = fmt.Errorf("stockmove: add movement: %w", err)
		s.status.Fail(err)
		return Movement{}, err
	}
	row.Unit = s.resolveUnit(ctx, row.ItemID)
	s.mirror.Apply(gateway.Event[Movement]{Type: gateway.EventInsert, New: &row})
	return row, nil
}

// Record implements inventory.MovementLog.
func (s *Store) Record(ctx context.Context, entry inventory.MovementEntry) error {
	_, err := s.Add(ctx, NewMovement{
		ItemID:       entry.ItemID,
		ItemName:     entry.ItemName,
		Quantity:     entry.Quantity,
		MovementType: MovementType(entry.Type),
		Remark:       entry.Remark,
	})
	return err
}

// UpdateRemark edits the one mutable field of a movement.
func (s *Store) UpdateRemark(ctx context.Context, movementID, remark string) error {
	s.status.Begin()
	if _, ok := s.mirror.Get(movementID); !ok {
		s.status.Fail(ErrMovementNotFound)
		return ErrMovementNotFound
	}
	row, err := s.table.Update(ctx, []gateway.Filter{gateway.Eq("id", movementID)}, gateway.Fields{
		"remark":     remark,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		err = fmt.Errorf("stockmove: update remark %s: %w", movementID, err)
		s.status.Fail(err)
		return err
	}
	s.mirror.Apply(gateway.Event[Movement]{Type: gateway.EventUpdate, New: &row})
	s.status.End()
	return nil
}

// Search filters the local collection by item name, case-insensitive. An
// empty query returns everything.
func (s *Store) Search(query string) []Movement {
	if query == "" {
		return s.mirror.Snapshot()
	}
	q := strings.ToLower(query)
	return s.mirror.Find(func(m Movement) bool {
		return strings.Contains(strings.ToLower(m.ItemName), q)
	})
}

// Get performs a local lookup only.
func (s *Store) Get(movementID string) (Movement, error) {
	if m, ok := s.mirror.Get(movementID); ok {
		return m, nil
	}
	return Movement{}, ErrMovementNotFound
}

// Loading reports whether a store operation is in flight.
func (s *Store) Loading() bool { return s.status.Loading() }

// LastError returns the last recorded operation error, empty when none.
func (s *Store) LastError() string { return s.status.Err() }

// Run consumes the change feed until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	sub, err := s.table.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("stockmove: subscribe: %w", err)
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

func (s *Store) apply(ctx context.Context, evt gateway.Event[Movement]) {
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
