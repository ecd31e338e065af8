package columns

import (
	"slices"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// Layout is the user's column arrangement: an ordered move list and a set of
// hidden model indices. Layout values are immutable; every method returns a
// new Layout.
type Layout struct {
	Moves  []ColumnMove
	Hidden []core.ModelIndex
}

// NewLayout returns a layout with copies of the given moves and hidden set.
func NewLayout(moves []ColumnMove, hidden []core.ModelIndex) Layout {
	l := Layout{Moves: slices.Clone(moves)}
	for _, h := range hidden {
		if !slices.Contains(l.Hidden, h) {
			l.Hidden = append(l.Hidden, h)
		}
	}
	slices.Sort(l.Hidden)
	return l
}

// IsHidden reports whether the model index is hidden.
func (l Layout) IsHidden(idx core.ModelIndex) bool {
	_, found := slices.BinarySearch(l.Hidden, idx)
	return found
}

// Move appends a move. A move that continues the previous one (the column
// just moved is moved again) is merged into it; a move that returns a column
// to where it started removes it.
func (l Layout) Move(from, to core.VisualIndex) Layout {
	if from == to {
		return l
	}
	moves := slices.Clone(l.Moves)
	if n := len(moves); n > 0 && moves[n-1].To == from {
		moves[n-1].To = to
		if moves[n-1].From == moves[n-1].To {
			moves = moves[:n-1]
		}
	} else {
		moves = append(moves, ColumnMove{From: from, To: to})
	}
	return Layout{Moves: moves, Hidden: slices.Clone(l.Hidden)}
}

// Hide returns a layout with idx hidden.
func (l Layout) Hide(idx core.ModelIndex) Layout {
	return NewLayout(l.Moves, append(slices.Clone(l.Hidden), idx))
}

// Show returns a layout with idx visible.
func (l Layout) Show(idx core.ModelIndex) Layout {
	hidden := slices.DeleteFunc(slices.Clone(l.Hidden), func(h core.ModelIndex) bool {
		return h == idx
	})
	return Layout{Moves: slices.Clone(l.Moves), Hidden: hidden}
}

// Sanitize drops moves and hidden indices that fall outside [0, columnCount).
func (l Layout) Sanitize(columnCount int) Layout {
	inBounds := func(i int) bool { return i >= 0 && i < columnCount }

	var moves []ColumnMove
	for _, m := range l.Moves {
		if inBounds(int(m.From)) && inBounds(int(m.To)) {
			moves = append(moves, m)
		}
	}
	var hidden []core.ModelIndex
	for _, h := range l.Hidden {
		if inBounds(int(h)) {
			hidden = append(hidden, h)
		}
	}
	return NewLayout(moves, hidden)
}

// VisibleCount returns the number of visible columns out of columnCount.
func (l Layout) VisibleCount(columnCount int) int {
	n := columnCount
	for _, h := range l.Hidden {
		if int(h) >= 0 && int(h) < columnCount {
			n--
		}
	}
	return n
}

// VisualOrder returns all visible columns in on-screen order.
func (l Layout) VisualOrder(all []core.ColumnRef) []core.ColumnRef {
	return VisibleColumnsInRange(all, 0, core.VisualIndex(len(all)-1), l)
}
