// Package columns maps between visual column positions and stable model
// column indices, given the user's column moves and hidden columns.
package columns

import (
	"math"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// ColumnMove moves the column at visual position From to visual position To.
// Moves are applied in list order.
type ColumnMove struct {
	From core.VisualIndex `json:"from"`
	To   core.VisualIndex `json:"to"`
}

// Window is a requested range of visual columns, inclusive on both ends.
type Window struct {
	Left  core.VisualIndex
	Right core.VisualIndex
}

// ModelIndexOf translates a visual position to the model index shown there.
// Moves are undone in reverse order, so later moves act on the result of
// earlier ones.
func ModelIndexOf(visual core.VisualIndex, moves []ColumnMove) core.ModelIndex {
	idx := visual
	for i := len(moves) - 1; i >= 0; i-- {
		from, to := moves[i].From, moves[i].To
		switch {
		case idx == to:
			idx = from
		case from < to && idx >= from && idx < to:
			idx++
		case to < from && idx > to && idx <= from:
			idx--
		}
	}
	return core.ModelIndex(idx)
}

// VisualIndexOf translates a model index to the visual position it occupies.
func VisualIndexOf(model core.ModelIndex, moves []ColumnMove) core.VisualIndex {
	idx := core.VisualIndex(model)
	for _, m := range moves {
		switch {
		case idx == m.From:
			idx = m.To
		case m.From < m.To && idx > m.From && idx <= m.To:
			idx--
		case m.To < m.From && idx >= m.To && idx < m.From:
			idx++
		}
	}
	return idx
}

// InvertMoves returns the move list that undoes moves.
func InvertMoves(moves []ColumnMove) []ColumnMove {
	out := make([]ColumnMove, len(moves))
	for i, m := range moves {
		out[len(moves)-1-i] = ColumnMove{From: m.To, To: m.From}
	}
	return out
}

// columnAt resolves the column shown at a visual position.
// ok is false when the position is out of bounds or the column is hidden.
func columnAt(all []core.ColumnRef, visual core.VisualIndex, layout Layout) (core.ColumnRef, bool) {
	if visual < 0 || int(visual) >= len(all) {
		return core.ColumnRef{}, false
	}
	model := ModelIndexOf(visual, layout.Moves)
	if model < 0 || int(model) >= len(all) {
		return core.ColumnRef{}, false
	}
	if layout.IsHidden(model) {
		return core.ColumnRef{}, false
	}
	return all[model], true
}

// VisibleColumnsInRange returns the visible columns at visual positions
// [left, right] in visual order. all is indexed by model index.
func VisibleColumnsInRange(all []core.ColumnRef, left, right core.VisualIndex, layout Layout) []core.ColumnRef {
	cols := []core.ColumnRef{}
	for v := max(left, 0); v <= right && int(v) < len(all); v++ {
		if c, ok := columnAt(all, v, layout); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// PrevVisibleColumns walks left from start (inclusive) and collects up to
// count visible columns, returned in visual order.
func PrevVisibleColumns(all []core.ColumnRef, start core.VisualIndex, count int, layout Layout) []core.ColumnRef {
	var cols []core.ColumnRef
	if start >= core.VisualIndex(len(all)) {
		start = core.VisualIndex(len(all) - 1)
	}
	for v := start; v >= 0 && len(cols) < count; v-- {
		if c, ok := columnAt(all, v, layout); ok {
			cols = append(cols, c)
		}
	}
	// collected right to left
	for i, j := 0, len(cols)-1; i < j; i, j = i+1, j-1 {
		cols[i], cols[j] = cols[j], cols[i]
	}
	return cols
}

// NextVisibleColumns walks right from start (inclusive) and collects up to
// count visible columns.
func NextVisibleColumns(all []core.ColumnRef, start core.VisualIndex, count int, layout Layout) []core.ColumnRef {
	var cols []core.ColumnRef
	for v := max(start, 0); int(v) < len(all) && len(cols) < count; v++ {
		if c, ok := columnAt(all, v, layout); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// ModelViewportColumns computes the columns to fetch for a viewport: the
// visible columns in the window, a buffer of ceil(visible*bufferPages)
// columns on each side, and the alwaysFetch columns by name.
//
// It returns nil when window is nil, meaning no viewport has been requested
// yet. A loaded viewport with no columns yields an empty, non-nil slice.
func ModelViewportColumns(
	all []core.ColumnRef,
	window *Window,
	layout Layout,
	alwaysFetch []string,
	bufferPages float64,
) []core.ColumnRef {
	if window == nil {
		return nil
	}

	visible := VisibleColumnsInRange(all, window.Left, window.Right, layout)
	bufferWidth := 0
	if bufferPages > 0 {
		bufferWidth = int(math.Ceil(float64(len(visible)) * bufferPages))
	}

	cols := make([]core.ColumnRef, 0, len(visible)+2*bufferWidth+len(alwaysFetch))
	seen := make(map[core.ModelIndex]bool)
	add := func(cs ...core.ColumnRef) {
		for _, c := range cs {
			if !seen[c.Index] {
				seen[c.Index] = true
				cols = append(cols, c)
			}
		}
	}

	if bufferWidth > 0 {
		add(PrevVisibleColumns(all, window.Left-1, bufferWidth, layout)...)
	}
	add(visible...)
	if bufferWidth > 0 {
		add(NextVisibleColumns(all, window.Right+1, bufferWidth, layout)...)
	}

	for _, name := range alwaysFetch {
		if c, ok := core.FindColumn(all, name); ok {
			add(c)
		}
	}

	return cols
}
