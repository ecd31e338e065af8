package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/rangeset"
)

// namedRow lets tests tell an updated accessor from the original.
type namedRow string

func (r namedRow) Get(core.ColumnRef) any               { return string(r) }
func (r namedRow) Format(core.ColumnRef) core.CellFormat { return core.CellFormat{} }

func snapshotWindow(start, end int64, rows int) *Window {
	snap := &core.Snapshot{Offset: start}
	for i := 0; i < rows; i++ {
		snap.Rows = append(snap.Rows, namedRow("orig"))
	}
	return newWindow(1, Viewport{StartRow: start, EndRow: end}, snap, 0)
}

func TestNewWindow(t *testing.T) {
	w := snapshotWindow(10, 19, 10)
	assert.Equal(t, "[10-19]", w.Visible.String())
	assert.Equal(t, int64(10), w.RowCount())

	_, ok := w.Row(9)
	assert.False(t, ok)
	r, ok := w.Row(19)
	require.True(t, ok)
	assert.Equal(t, "orig", r.Get(core.ColumnRef{}))

	empty := snapshotWindow(0, 9, 0)
	assert.True(t, empty.Visible.IsEmpty())

	var nilWindow *Window
	assert.Zero(t, nilWindow.RowCount())
	_, ok = nilWindow.Row(0)
	assert.False(t, ok)
}

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		// window requests rows [0,9]; the snapshot delivered the first n
		delivered int
		ev        core.DeltaEvent
		want      string
	}{
		{
			name:      "added beyond requested range",
			delivered: 10,
			ev:        core.DeltaEvent{Added: rangeset.MustOfRange(10, 14)},
			want:      "[0-14]",
		},
		{
			name:      "removed",
			delivered: 10,
			ev:        core.DeltaEvent{Removed: rangeset.OfItems(0, 5, 9)},
			want:      "[1-4,6-8]",
		},
		{
			name:      "updated visible row stays",
			delivered: 10,
			ev:        core.DeltaEvent{Updated: rangeset.OfItems(3)},
			want:      "[0-9]",
		},
		{
			name:      "updated inside requested range acts as added",
			delivered: 5,
			ev:        core.DeltaEvent{Updated: rangeset.OfItems(7)},
			want:      "[0-4,7]",
		},
		{
			name:      "updated outside requested range is ignored",
			delivered: 10,
			ev:        core.DeltaEvent{Updated: rangeset.MustOfRange(50, 60)},
			want:      "[0-9]",
		},
		{
			name:      "mixed",
			delivered: 10,
			ev: core.DeltaEvent{
				Added:   rangeset.MustOfRange(10, 11),
				Removed: rangeset.MustOfRange(0, 1),
				Updated: rangeset.OfItems(5, 99),
			},
			want: "[2-11]",
		},
		{
			name:      "empty event",
			delivered: 10,
			ev:        core.DeltaEvent{},
			want:      "[0-9]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := snapshotWindow(0, 9, tt.delivered)
			before := w.Visible.String()

			got := Fold(w, tt.ev)
			assert.Equal(t, tt.want, got.Visible.String())
			assert.Equal(t, before, w.Visible.String(), "input window must not change")
		})
	}
}

func TestFold_RowAccessors(t *testing.T) {
	w := snapshotWindow(0, 9, 10)

	got := Fold(w, core.DeltaEvent{
		Added:   rangeset.OfItems(10),
		Updated: rangeset.OfItems(3, 42),
		Removed: rangeset.OfItems(4),
		Rows: map[int64]core.RowAccessor{
			10: namedRow("added"),
			3:  namedRow("updated"),
			42: namedRow("outside"),
		},
	})

	r, ok := got.Row(10)
	require.True(t, ok)
	assert.Equal(t, "added", r.Get(core.ColumnRef{}))

	r, ok = got.Row(3)
	require.True(t, ok)
	assert.Equal(t, "updated", r.Get(core.ColumnRef{}))

	_, ok = got.Row(42)
	assert.False(t, ok, "out-of-viewport update is a no-op")
	_, ok = got.Row(4)
	assert.False(t, ok)

	// The original window still sees its own accessors.
	r, _ = w.Row(3)
	assert.Equal(t, "orig", r.Get(core.ColumnRef{}))
	_, ok = w.Row(4)
	assert.True(t, ok)
}

func TestViewport(t *testing.T) {
	cols := []core.ColumnRef{{Index: 0, Name: "Id"}}
	v := Viewport{StartRow: 5, EndRow: 9, Columns: cols}

	assert.Equal(t, int64(5), v.Height())
	assert.Equal(t, "[5-9]", v.Rows().String())
	assert.True(t, v.Equal(Viewport{StartRow: 5, EndRow: 9, Columns: cols}))
	assert.False(t, v.Equal(Viewport{StartRow: 5, EndRow: 9}))

	var vpErr *InvalidViewportError
	require.ErrorAs(t, validate(Viewport{StartRow: 3, EndRow: 2}, 10), &vpErr)
	assert.Contains(t, vpErr.Error(), "end row is before start row")
	require.ErrorAs(t, validate(Viewport{StartRow: -1, EndRow: 2}, 10), &vpErr)
	assert.Contains(t, vpErr.Error(), "negative")
	require.ErrorAs(t, validate(Viewport{StartRow: 0, EndRow: 10}, 10), &vpErr)
	assert.Contains(t, vpErr.Error(), "exceeds 10 rows")
	assert.NoError(t, validate(Viewport{StartRow: 0, EndRow: 9}, 10))
}
