package viewport

import (
	"maps"

	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/rangeset"
)

// Window is a materialized viewport. Windows are immutable once published;
// folding a delta produces a new Window.
type Window struct {
	Generation uint64
	Viewport   Viewport

	// Columns is the column set the snapshot was delivered with.
	Columns []core.ColumnRef

	// Visible is the set of row indices currently known to the window.
	Visible rangeset.RangeSet

	// TableSize is the remote row count observed at the last update.
	TableSize int64

	rows map[int64]core.RowAccessor
}

// Row returns the accessor for a visible row.
func (w *Window) Row(i int64) (core.RowAccessor, bool) {
	if w == nil || !w.Visible.Contains(i) {
		return nil, false
	}
	r, ok := w.rows[i]
	return r, ok
}

// RowCount returns the number of visible rows.
func (w *Window) RowCount() int64 {
	if w == nil {
		return 0
	}
	return w.Visible.Size()
}

// newWindow materializes a snapshot for the given request.
func newWindow(gen uint64, vp Viewport, snap *core.Snapshot, tableSize int64) *Window {
	w := &Window{
		Generation: gen,
		Viewport:   vp,
		Columns:    snap.Columns,
		TableSize:  tableSize,
		rows:       make(map[int64]core.RowAccessor, len(snap.Rows)),
	}
	if w.Columns == nil {
		w.Columns = vp.Columns
	}
	if len(snap.Rows) > 0 {
		w.Visible = rangeset.MustOfRange(snap.Offset, snap.Offset+int64(len(snap.Rows))-1)
		for i, r := range snap.Rows {
			w.rows[snap.Offset+int64(i)] = r
		}
	}
	return w
}

// Fold applies a delta event to a window and returns the result:
//
//	visible = (visible ∪ added ∪ (updated ∩ requested rows)) − removed
//
// Updated rows inside the requested range that are not yet visible are
// treated as added. Updated rows outside the requested range are ignored.
// The input window is left untouched.
func Fold(w *Window, ev core.DeltaEvent) *Window {
	requested := w.Viewport.Rows()
	updated := ev.Updated.Intersect(requested)

	out := *w
	out.Visible = w.Visible.Union(ev.Added).Union(updated).Subtract(ev.Removed)
	out.rows = maps.Clone(w.rows)
	if out.rows == nil {
		out.rows = make(map[int64]core.RowAccessor)
	}

	maps.DeleteFunc(out.rows, func(i int64, _ core.RowAccessor) bool {
		return ev.Removed.Contains(i)
	})
	for i, r := range ev.Rows {
		if (ev.Added.Contains(i) || updated.Contains(i)) && out.Visible.Contains(i) {
			out.rows[i] = r
		}
	}
	return &out
}
