package stockmove

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
	"github.com/ngshijun/clinic-inventory-manager/internal/gateway/gatewaytest"
	"github.com/ngshijun/clinic-inventory-manager/internal/inventory"
)

type unitResolverStub struct {
	units map[string]string
}

func (u *unitResolverStub) Unit(_ context.Context, itemID string) (string, error) {
	return u.units[itemID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *gatewaytest.Table[Movement]) {
	t.Helper()
	table := gatewaytest.New[Movement]()
	units := &unitResolverStub{units: map[string]string{"item-1": "box"}}
	return NewStore(testLogger(), table, units), table
}

func TestAddEnrichesUnit(t *testing.T) {
	store, _ := newTestStore(t)

	move, err := store.Add(context.Background(), NewMovement{
		ItemID:       "item-1",
		ItemName:     "Gloves",
		Quantity:     4,
		MovementType: StockIn,
	})
	require.NoError(t, err)
	require.Equal(t, "box", move.Unit)
}

func TestRecordImplementsMovementLog(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Record(context.Background(), inventory.MovementEntry{
		ItemID:   "item-1",
		ItemName: "Gloves",
		Quantity: 2,
		Type:     inventory.MovementStockOut,
		Remark:   "damaged",
	})
	require.NoError(t, err)

	moves := store.Search("")
	require.Len(t, moves, 1)
	require.Equal(t, StockOut, moves[0].MovementType)
	require.Equal(t, "damaged", moves[0].Remark)
}

func TestUpdateRemark(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	move, err := store.Add(ctx, NewMovement{ItemID: "item-1", ItemName: "Gloves", Quantity: 1, MovementType: StockIn})
	require.NoError(t, err)

	require.NoError(t, store.UpdateRemark(ctx, move.ID, "recount"))
	got, err := store.Get(move.ID)
	require.NoError(t, err)
	require.Equal(t, "recount", got.Remark)

	require.ErrorIs(t, store.UpdateRemark(ctx, "missing", "x"), ErrMovementNotFound)
}

func TestFeedUpdateKeepsResolvedUnit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	move, err := store.Add(ctx, NewMovement{ItemID: "item-1", ItemName: "Gloves", Quantity: 1, MovementType: StockIn})
	require.NoError(t, err)
	require.Equal(t, "box", move.Unit)

	// Feed echo of a remark edit: no unit in the payload.
	echo := move
	echo.Unit = ""
	echo.Remark = "edited elsewhere"
	store.apply(ctx, gateway.Event[Movement]{Type: gateway.EventUpdate, New: &echo})

	got, err := store.Get(move.ID)
	require.NoError(t, err)
	require.Equal(t, "edited elsewhere", got.Remark)
	require.Equal(t, "box", got.Unit)
}

func TestCollectionNewestFirst(t *testing.T) {
	store, table := newTestStore(t)

	now := time.Now().UTC()
	table.Seed(
		Movement{ID: "a", ItemName: "Old", CreatedAt: now.Add(-time.Hour)},
		Movement{ID: "b", ItemName: "New", CreatedAt: now},
		Movement{ID: "c", ItemName: "Middle", CreatedAt: now.Add(-time.Minute)},
	)
	require.NoError(t, store.FetchAll(context.Background()))

	moves := store.Search("")
	require.Equal(t, []string{"b", "c", "a"}, []string{moves[0].ID, moves[1].ID, moves[2].ID})
}
