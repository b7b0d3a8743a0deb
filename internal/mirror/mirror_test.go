package mirror

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngshijun/clinic-inventory-manager/internal/gateway"
)

type row struct {
	ID   string
	Name string
	Qty  int64
	Unit string
}

func newTestMirror() *Mirror[row] {
	return New(Config[row]{
		Key: func(r row) string { return r.ID },
		Less: func(a, b row) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		},
	})
}

func names(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestApplyInsertDeduplicates(t *testing.T) {
	m := newTestMirror()
	r := row{ID: "a", Name: "gauze"}

	m.Apply(gateway.Event[row]{Type: gateway.EventInsert, New: &r})
	m.Apply(gateway.Event[row]{Type: gateway.EventInsert, New: &r})

	require.Equal(t, 1, m.Len())
}

func TestApplyUpdateUnknownIsNoOp(t *testing.T) {
	m := newTestMirror()
	r := row{ID: "ghost", Name: "ghost"}

	m.Apply(gateway.Event[row]{Type: gateway.EventUpdate, New: &r})

	require.Equal(t, 0, m.Len())
}

func TestApplyDeleteIdempotent(t *testing.T) {
	m := newTestMirror()
	r := row{ID: "a", Name: "gauze"}
	m.Replace([]row{r})

	m.Apply(gateway.Event[row]{Type: gateway.EventDelete, Old: &r})
	m.Apply(gateway.Event[row]{Type: gateway.EventDelete, Old: &r})

	require.Equal(t, 0, m.Len())
}

func TestApplyKeepsCanonicalOrder(t *testing.T) {
	m := newTestMirror()
	rows := []row{
		{ID: "1", Name: "bandage"},
		{ID: "2", Name: "gloves"},
		{ID: "3", Name: "mask"},
		{ID: "4", Name: "syringe"},
		{ID: "5", Name: "thermometer"},
	}

	shuffled := append([]row(nil), rows...)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for i := range shuffled {
		m.Apply(gateway.Event[row]{Type: gateway.EventInsert, New: &shuffled[i]})
	}

	require.Equal(t, names(rows), names(m.Snapshot()))

	// A rename re-sorts.
	renamed := row{ID: "1", Name: "zinc cream"}
	m.Apply(gateway.Event[row]{Type: gateway.EventUpdate, New: &renamed})
	got := m.Snapshot()
	require.Equal(t, "zinc cream", got[len(got)-1].Name)
}

func TestMergePreservesLocalFields(t *testing.T) {
	m := New(Config[row]{
		Key:  func(r row) string { return r.ID },
		Less: func(a, b row) bool { return a.ID < b.ID },
		Merge: func(incoming, existing row) row {
			if incoming.Unit == "" {
				incoming.Unit = existing.Unit
			}
			return incoming
		},
	})
	m.Replace([]row{{ID: "a", Name: "gauze", Qty: 5, Unit: "roll"}})

	// Feed payload without the derived unit must not clobber it.
	m.Apply(gateway.Event[row]{Type: gateway.EventUpdate, New: &row{ID: "a", Name: "gauze", Qty: 9}})

	got, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, int64(9), got.Qty)
	require.Equal(t, "roll", got.Unit)
}

func TestInterleavedLocalAndFeedMutations(t *testing.T) {
	m := newTestMirror()
	r := row{ID: "a", Name: "gauze", Qty: 3}

	// Local synthetic insert, then the feed echo of the same commit.
	m.Apply(gateway.Event[row]{Type: gateway.EventInsert, New: &r})
	m.Apply(gateway.Event[row]{Type: gateway.EventInsert, New: &r})

	updated := row{ID: "a", Name: "gauze", Qty: 5}
	m.Apply(gateway.Event[row]{Type: gateway.EventUpdate, New: &updated})
	m.Apply(gateway.Event[row]{Type: gateway.EventUpdate, New: &updated})

	require.Equal(t, 1, m.Len())
	got, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, int64(5), got.Qty)
}
