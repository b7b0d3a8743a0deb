package payroll

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway/gatewaytest"
)

func newTestStore(t *testing.T) (*Store, *gatewaytest.Table[Employee]) {
	t.Helper()
	table := gatewaytest.New[Employee]()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(logger, table, nil), table
}

func TestAddAndTotals(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, NewEmployee{Name: "Tan Mei Ling", BasicSalary: 4200, EPFEmployer: 546})
	require.NoError(t, err)
	_, err = store.Add(ctx, NewEmployee{Name: "Ahmad Faizal", BasicSalary: 5600, EPFEmployer: 672})
	require.NoError(t, err)

	require.Equal(t, 2, store.TotalEmployees())
	require.InDelta(t, 9800.0, store.TotalBasicSalary(), 0.001)

	// Name-ascending order.
	employees := store.Search("")
	require.Equal(t, "Ahmad Faizal", employees[0].Name)
	require.Equal(t, "Tan Mei Ling", employees[1].Name)
}

func TestUpdateAndRemove(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	e, err := store.Add(ctx, NewEmployee{Name: "Priya Nair", BasicSalary: 3100})
	require.NoError(t, err)

	salary := 3400.0
	require.NoError(t, store.Update(ctx, e.ID, EmployeeUpdate{BasicSalary: &salary}))
	got, err := store.Get(e.ID)
	require.NoError(t, err)
	require.InDelta(t, 3400.0, got.BasicSalary, 0.001)

	// Empty update is a no-op, not an error.
	require.NoError(t, store.Update(ctx, e.ID, EmployeeUpdate{}))

	require.NoError(t, store.Remove(ctx, e.ID))
	_, err = store.Get(e.ID)
	require.ErrorIs(t, err, ErrEmployeeNotFound)

	require.ErrorIs(t, store.Update(ctx, "missing", EmployeeUpdate{BasicSalary: &salary}), ErrEmployeeNotFound)
}

func TestSearchByName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, NewEmployee{Name: "Tan Mei Ling", BasicSalary: 4200})
	require.NoError(t, err)
	_, err = store.Add(ctx, NewEmployee{Name: "Ahmad Faizal", BasicSalary: 5600})
	require.NoError(t, err)

	require.Len(t, store.Search("mei"), 1)
	require.Len(t, store.Search("zzz"), 0)
}

func TestReport(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, NewEmployee{Name: "Tan Mei Ling", BasicSalary: 4200, EPFEmployer: 546})
	require.NoError(t, err)
	_, err = store.Add(ctx, NewEmployee{Name: "Ahmad Faizal", BasicSalary: 5600, EPFEmployer: 672})
	require.NoError(t, err)

	lines, summary := store.Report()
	require.Len(t, lines, 2)
	require.Equal(t, 2, summary.TotalEmployees)
	require.InDelta(t, 9800.0, summary.TotalBasicSalary, 0.001)
	// Stored employer EPF flows into the report untouched.
	require.InDelta(t, 672.0, lines[0].EPFEmployer, 0.001)
	require.InDelta(t, 546.0, lines[1].EPFEmployer, 0.001)
}
