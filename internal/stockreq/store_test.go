package stockreq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway/gatewaytest"
	"github.com/ngshijun/clinic-inventory-manager/internal/inventory"
	"github.com/ngshijun/clinic-inventory-manager/internal/stockmove"
)

type unitResolverStub struct {
	units map[string]string
}

func (u *unitResolverStub) Unit(_ context.Context, itemID string) (string, error) {
	return u.units[itemID], nil
}

type inventoryControlStub struct {
	calls []struct {
		itemID string
		qty    int64
	}
	err error
}

func (i *inventoryControlStub) StockOut(_ context.Context, itemID string, qty int64) error {
	if i.err != nil {
		return i.err
	}
	i.calls = append(i.calls, struct {
		itemID string
		qty    int64
	}{itemID, qty})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *gatewaytest.Table[Request], *inventoryControlStub) {
	t.Helper()
	table := gatewaytest.New[Request]()
	inv := &inventoryControlStub{}
	units := &unitResolverStub{units: map[string]string{"item-1": "box"}}
	return NewStore(testLogger(), table, units, inv, nil), table, inv
}

func TestAddCreatesPendingRequest(t *testing.T) {
	store, _, _ := newTestStore(t)

	req, err := store.Add(context.Background(), NewRequest{ItemID: "item-1", ItemName: "Gloves", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, "box", req.Unit)
}

func TestApproveDecrementsInventory(t *testing.T) {
	store, _, inv := newTestStore(t)
	ctx := context.Background()

	req, err := store.Add(ctx, NewRequest{ItemID: "item-1", ItemName: "Gloves", Quantity: 3})
	require.NoError(t, err)

	require.NoError(t, store.Approve(ctx, req.ID))

	got, err := store.Get(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)

	require.Len(t, inv.calls, 1)
	require.Equal(t, "item-1", inv.calls[0].itemID)
	require.Equal(t, int64(3), inv.calls[0].qty)
}

func TestApproveTerminalGuards(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	req, err := store.Add(ctx, NewRequest{ItemID: "item-1", ItemName: "Gloves", Quantity: 3})
	require.NoError(t, err)

	require.NoError(t, store.Approve(ctx, req.ID))
	require.ErrorIs(t, store.Approve(ctx, req.ID), ErrNotPending)
	require.ErrorIs(t, store.Cancel(ctx, req.ID, nil), ErrNotPending)
	require.ErrorIs(t, store.Approve(ctx, "missing"), ErrRequestNotFound)
}

func TestApproveSecondLegFailureLeavesRequestApproved(t *testing.T) {
	store, _, inv := newTestStore(t)
	ctx := context.Background()

	req, err := store.Add(ctx, NewRequest{ItemID: "item-1", ItemName: "Gloves", Quantity: 3})
	require.NoError(t, err)

	inv.err = errors.New("stock out failed")
	err = store.Approve(ctx, req.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stock out")

	// The request stays Approved; there is no compensation.
	got, err := store.Get(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)
	require.Contains(t, store.LastError(), "stock out")
}

func TestCancelReplacesRemark(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	req, err := store.Add(ctx, NewRequest{ItemID: "item-1", ItemName: "Gloves", Quantity: 3, Remark: "urgent"})
	require.NoError(t, err)

	remark := "duplicate request"
	require.NoError(t, store.Cancel(ctx, req.ID, &remark))

	got, err := store.Get(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)
	require.Equal(t, remark, got.Remark)
}

func TestFilters(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, NewRequest{ItemID: "item-1", ItemName: "Gloves", Quantity: 3})
	require.NoError(t, err)
	_, err = store.Add(ctx, NewRequest{ItemID: "item-2", ItemName: "Masks", Quantity: 5, Remark: "monthly top-up"})
	require.NoError(t, err)
	require.NoError(t, store.Approve(ctx, first.ID))

	require.Len(t, store.FilterByStatus(StatusApproved), 1)
	require.Len(t, store.FilterByStatus(StatusPending), 1)
	require.Len(t, store.Pending(), 1)
	require.Len(t, store.Search("glove"), 1)
	require.Len(t, store.Search("item-2"), 1)
	require.Len(t, store.Search("top-up"), 1)
	require.Len(t, store.FilterByDate(time.Now()), 2)
	require.Empty(t, store.FilterByDate(time.Now().AddDate(0, 0, -1)))
}

// TestApprovalEndToEnd wires the real inventory and movement stores behind
// the request store and checks the whole approval flow: request Approved,
// stock decremented by the requested quantity, exactly one stock_out
// movement recorded.
func TestApprovalEndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	movementTable := gatewaytest.New[stockmove.Movement]()
	movementStore := stockmove.NewStore(logger, movementTable, nil)

	itemTable := gatewaytest.New[inventory.Item]()
	inventoryStore := inventory.NewStore(logger, itemTable, movementStore, nil, nil)

	item, err := inventoryStore.Add(ctx, inventory.NewItem{ItemName: "Gloves", Quantity: 10})
	require.NoError(t, err)

	requestTable := gatewaytest.New[Request]()
	requestStore := NewStore(logger, requestTable, nil, inventoryStore, nil)

	req, err := requestStore.Add(ctx, NewRequest{ItemID: item.ID, ItemName: item.ItemName, Quantity: 3})
	require.NoError(t, err)
	require.NoError(t, requestStore.Approve(ctx, req.ID))

	got, err := requestStore.Get(req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)

	stocked, err := inventoryStore.Get(item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(7), stocked.Quantity)

	var stockOuts []stockmove.Movement
	for _, m := range movementStore.Search("") {
		if m.MovementType == stockmove.StockOut {
			stockOuts = append(stockOuts, m)
		}
	}
	require.Len(t, stockOuts, 1)
	require.Equal(t, int64(3), stockOuts[0].Quantity)
	require.Equal(t, item.ID, stockOuts[0].ItemID)
}
