package grid

import (
	"slices"

	"github.com/leapstack-labs/gridview/pkg/columns"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/format"
	"github.com/leapstack-labs/gridview/pkg/rangeset"
	"github.com/leapstack-labs/gridview/pkg/viewport"
)

// Frame is a rendered view of the materialized window, restricted to the
// requested rows and visible columns. It is what the dashboard pushes to
// browsers and what the terminal commands print.
type Frame struct {
	Table      string            `json:"table"`
	Generation uint64            `json:"generation"`
	State      string            `json:"state"`
	TableSize  int64             `json:"tableSize"`
	Top        int64             `json:"top"`
	Bottom     int64             `json:"bottom"`
	Visible    rangeset.RangeSet `json:"visible"`
	Columns    []FrameColumn     `json:"columns"`
	Rows       []FrameRow        `json:"rows"`
	Error      string            `json:"error,omitempty"`
}

// FrameColumn is a column header.
type FrameColumn struct {
	Index  core.ModelIndex  `json:"index"`
	Visual core.VisualIndex `json:"visual"`
	Name   string           `json:"name"`
	Type   string           `json:"type"`
	Sort   string           `json:"sort,omitempty"`
	Filter string           `json:"filter,omitempty"`
	Right  bool             `json:"right,omitempty"`
}

// FrameRow is one row of cells, in column order.
type FrameRow struct {
	Index int64       `json:"index"`
	Cells []FrameCell `json:"cells"`
}

// FrameCell is one rendered cell. Pending cells belong to a column that is
// not part of the fetched window yet.
type FrameCell struct {
	Text    string `json:"text"`
	Color   string `json:"color,omitempty"`
	Pending bool   `json:"pending,omitempty"`
}

// Frame renders the current window.
func (s *Session) Frame() Frame {
	all := s.table.Columns()

	s.mu.Lock()
	state := cloneState(s.state)
	top, bottom := s.top, s.bottom
	var win columns.Window
	if s.colWindow != nil {
		win = *s.colWindow
	} else {
		win = columns.Window{Left: 0, Right: core.VisualIndex(len(all) - 1)}
	}
	s.mu.Unlock()

	f := Frame{
		Table:     s.Name(),
		State:     s.ctrl.State().String(),
		TableSize: s.table.Size(),
		Top:       top,
		Bottom:    bottom,
	}
	if err := s.ctrl.Err(); err != nil {
		f.Error = err.Error()
	}

	sortOf := make(map[core.ModelIndex]string, len(state.Sorts))
	for _, srt := range state.Sorts {
		label := string(srt.Direction)
		if srt.IsAbs {
			label = "ABS " + label
		}
		sortOf[srt.Column] = label
	}

	cols := columns.VisibleColumnsInRange(all, win.Left, win.Right, state.Layout)
	for _, c := range cols {
		f.Columns = append(f.Columns, FrameColumn{
			Index:  c.Index,
			Visual: columns.VisualIndexOf(c.Index, state.Layout.Moves),
			Name:   c.Name,
			Type:   c.Type,
			Sort:   sortOf[c.Index],
			Filter: state.QuickFilters[c.Index],
			Right:  format.KindOf(c.Type).IsNumeric(),
		})
	}

	w := s.ctrl.Window()
	if w == nil {
		return f
	}
	f.Generation = w.Generation
	f.TableSize = max(f.TableSize, w.TableSize)

	requested, err := rangeset.OfRange(top, bottom)
	if err != nil {
		requested = w.Viewport.Rows()
	}
	f.Visible = w.Visible.Intersect(requested)

	for i := range f.Visible.All() {
		r, ok := w.Row(i)
		if !ok {
			continue
		}
		row := FrameRow{Index: i, Cells: make([]FrameCell, 0, len(cols))}
		for _, c := range cols {
			row.Cells = append(row.Cells, renderCell(w, r, c))
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

func renderCell(w *viewport.Window, r core.RowAccessor, c core.ColumnRef) FrameCell {
	if !slices.ContainsFunc(w.Columns, func(wc core.ColumnRef) bool { return wc.Index == c.Index }) {
		return FrameCell{Pending: true}
	}
	v := r.Get(c)
	hint := r.Format(c)
	text := format.Display(v, c.Type)
	if hint.NumberFormat != "" {
		text = format.Number(v, c.Type, hint.NumberFormat)
	}
	return FrameCell{Text: text, Color: hint.Color}
}
