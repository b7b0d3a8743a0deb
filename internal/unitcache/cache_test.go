package unitcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway/gatewaytest"
)

func TestUnitMemoizesLookups(t *testing.T) {
	table := gatewaytest.New[ItemUnit]()
	table.Seed(ItemUnit{ID: "item-1", Unit: "box"})
	cache := New(table)
	ctx := context.Background()

	unit, err := cache.Unit(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, "box", unit)

	unit, err = cache.Unit(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, "box", unit)

	require.Equal(t, 1, table.Selected)
}

func TestUnitMemoizesAbsence(t *testing.T) {
	table := gatewaytest.New[ItemUnit]()
	cache := New(table)
	ctx := context.Background()

	unit, err := cache.Unit(ctx, "ghost")
	require.NoError(t, err)
	require.Empty(t, unit)

	_, err = cache.Unit(ctx, "ghost")
	require.NoError(t, err)
	require.Equal(t, 1, table.Selected)
}

func TestUnitErrorNotMemoized(t *testing.T) {
	table := gatewaytest.New[ItemUnit]()
	table.Seed(ItemUnit{ID: "item-1", Unit: "box"})
	cache := New(table)
	ctx := context.Background()

	table.Err = errors.New("connection refused")
	_, err := cache.Unit(ctx, "item-1")
	require.Error(t, err)

	unit, err := cache.Unit(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, "box", unit)
}

func TestInvalidateForcesRequery(t *testing.T) {
	table := gatewaytest.New[ItemUnit]()
	table.Seed(ItemUnit{ID: "item-1", Unit: "box"})
	cache := New(table)
	ctx := context.Background()

	_, err := cache.Unit(ctx, "item-1")
	require.NoError(t, err)

	table.Seed(ItemUnit{ID: "item-1", Unit: "carton"})
	cache.Invalidate("item-1")

	unit, err := cache.Unit(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, "carton", unit)
	require.Equal(t, 2, table.Selected)
}

func TestWarmSkipsQueryEntirely(t *testing.T) {
	table := gatewaytest.New[ItemUnit]()
	cache := New(table)

	cache.Warm("item-1", "roll")
	unit, err := cache.Unit(context.Background(), "item-1")
	require.NoError(t, err)
	require.Equal(t, "roll", unit)
	require.Zero(t, table.Selected)

	unit, err = cache.Unit(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, unit)
}
