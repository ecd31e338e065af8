// Package persist converts live viewport configuration to the
// schema-independent PersistedViewportState and back.
//
// Persisted state references columns by name. Hydrating against a schema
// that has since changed drops every reference that no longer resolves and
// restores the rest.
package persist

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/leapstack-labs/gridview/pkg/columns"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/format"
)

// ViewportState is the live column, filter and sort configuration of a
// viewport, keyed by model index.
type ViewportState struct {
	Layout          columns.Layout
	QuickFilters    map[core.ModelIndex]string
	AdvancedFilters map[core.ModelIndex]AdvancedFilter
	Sorts           []SortState
	CustomColumns   []string
}

// AdvancedFilter is a structured filter. SelectedValues hold typed values
// (int64, time.Time, ...) as read from the table.
type AdvancedFilter struct {
	Conditions      []core.Condition
	Operators       []string
	InvertSelection bool
	SelectedValues  []any
}

// SortState is one sort key.
type SortState struct {
	Column    core.ModelIndex
	Direction core.SortDirection
	IsAbs     bool
}

// ColumnNotFoundError reports a reference that does not resolve against the
// schema. Hydrate and Dehydrate never return it; they drop the reference.
type ColumnNotFoundError struct {
	Name  string
	Index core.ModelIndex
}

func (e *ColumnNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("column %q not found", e.Name)
	}
	return fmt.Sprintf("column index %d out of range", e.Index)
}

// Serializer dehydrates and hydrates viewport state.
type Serializer struct {
	Logger *slog.Logger
}

// NewSerializer returns a serializer logging dropped references to logger.
func NewSerializer(logger *slog.Logger) *Serializer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Serializer{Logger: logger}
}

func (s *Serializer) logger() *slog.Logger {
	if s == nil || s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Serializer) drop(what string, err error) {
	s.logger().Debug("dropping reference", slog.String("field", what), slog.String("reason", err.Error()))
}

// schema resolves references against a column list.
type schema struct {
	cols []core.ColumnRef
}

func (sc schema) byIndex(idx core.ModelIndex) (core.ColumnRef, error) {
	if int(idx) < 0 || int(idx) >= len(sc.cols) {
		return core.ColumnRef{}, &ColumnNotFoundError{Index: idx}
	}
	c, ok := core.FindColumnByIndex(sc.cols, idx)
	if !ok {
		return core.ColumnRef{}, &ColumnNotFoundError{Index: idx}
	}
	return c, nil
}

func (sc schema) byName(name string) (core.ColumnRef, error) {
	c, ok := core.FindColumn(sc.cols, name)
	if !ok {
		return core.ColumnRef{}, &ColumnNotFoundError{Name: name}
	}
	return c, nil
}

// Dehydrate converts state to its persisted form. References to model
// indices outside [0, len(cols)) are dropped.
func (s *Serializer) Dehydrate(cols []core.ColumnRef, state ViewportState) core.PersistedViewportState {
	sc := schema{cols: cols}
	var out core.PersistedViewportState

	// Each move is recorded as the names at its endpoints at the time it was
	// made, so it can be replayed against a reordered schema.
	var applied []columns.ColumnMove
	for _, m := range state.Layout.Moves {
		from, errFrom := sc.byIndex(columns.ModelIndexOf(m.From, applied))
		to, errTo := sc.byIndex(columns.ModelIndexOf(m.To, applied))
		applied = append(applied, m)
		if err := firstErr(errFrom, errTo); err != nil {
			s.drop("movedColumns", err)
			continue
		}
		out.MovedColumns = append(out.MovedColumns, core.PersistedMove{From: from.Name, To: to.Name})
	}

	for _, idx := range state.Layout.Hidden {
		c, err := sc.byIndex(idx)
		if err != nil {
			s.drop("hiddenColumns", err)
			continue
		}
		out.HiddenColumns = append(out.HiddenColumns, c.Name)
	}

	for _, idx := range slices.Sorted(maps.Keys(state.QuickFilters)) {
		c, err := sc.byIndex(idx)
		if err != nil {
			s.drop("quickFilters", err)
			continue
		}
		out.QuickFilters = append(out.QuickFilters, core.PersistedQuickFilter{Column: c.Name, Text: state.QuickFilters[idx]})
	}

	for _, idx := range slices.Sorted(maps.Keys(state.AdvancedFilters)) {
		c, err := sc.byIndex(idx)
		if err != nil {
			s.drop("advancedFilters", err)
			continue
		}
		f := state.AdvancedFilters[idx]
		opts := core.PersistedFilterOptions{
			Operators:       slices.Clone(f.Operators),
			InvertSelection: f.InvertSelection,
		}
		for _, cond := range f.Conditions {
			opts.Items = append(opts.Items, core.PersistedFilterItem{Type: cond.Type, Value: cond.Value})
		}
		for _, v := range f.SelectedValues {
			opts.SelectedValues = append(opts.SelectedValues, format.Encode(v, c.Type))
		}
		out.AdvancedFilters = append(out.AdvancedFilters, core.PersistedAdvancedFilter{Column: c.Name, Options: opts})
	}

	for _, srt := range state.Sorts {
		c, err := sc.byIndex(srt.Column)
		if err != nil {
			s.drop("sorts", err)
			continue
		}
		out.Sorts = append(out.Sorts, core.PersistedSort{Column: c.Name, Direction: srt.Direction, IsAbs: srt.IsAbs})
	}

	out.CustomColumns = slices.Clone(state.CustomColumns)
	return out
}

// Hydrate resolves persisted state against cols. Names that no longer exist
// are dropped; everything else is restored.
func (s *Serializer) Hydrate(cols []core.ColumnRef, p core.PersistedViewportState) ViewportState {
	sc := schema{cols: cols}
	state := ViewportState{
		QuickFilters:    make(map[core.ModelIndex]string),
		AdvancedFilters: make(map[core.ModelIndex]AdvancedFilter),
		CustomColumns:   slices.Clone(p.CustomColumns),
	}

	layout := columns.Layout{}
	for _, m := range p.MovedColumns {
		from, errFrom := sc.byName(m.From)
		to, errTo := sc.byName(m.To)
		if err := firstErr(errFrom, errTo); err != nil {
			s.drop("movedColumns", err)
			continue
		}
		layout = layout.Move(
			columns.VisualIndexOf(from.Index, layout.Moves),
			columns.VisualIndexOf(to.Index, layout.Moves),
		)
	}
	var hidden []core.ModelIndex
	for _, name := range p.HiddenColumns {
		c, err := sc.byName(name)
		if err != nil {
			s.drop("hiddenColumns", err)
			continue
		}
		hidden = append(hidden, c.Index)
	}
	state.Layout = columns.NewLayout(layout.Moves, hidden).Sanitize(len(cols))

	for _, qf := range p.QuickFilters {
		c, err := sc.byName(qf.Column)
		if err != nil {
			s.drop("quickFilters", err)
			continue
		}
		state.QuickFilters[c.Index] = qf.Text
	}

	for _, af := range p.AdvancedFilters {
		c, err := sc.byName(af.Column)
		if err != nil {
			s.drop("advancedFilters", err)
			continue
		}
		f := AdvancedFilter{
			Operators:       slices.Clone(af.Options.Operators),
			InvertSelection: af.Options.InvertSelection,
		}
		for _, item := range af.Options.Items {
			f.Conditions = append(f.Conditions, core.Condition{Type: item.Type, Value: item.Value})
		}
		for _, v := range af.Options.SelectedValues {
			decoded, err := format.Decode(v, c.Type)
			if err != nil {
				s.drop("advancedFilters.selectedValues", err)
				continue
			}
			f.SelectedValues = append(f.SelectedValues, decoded)
		}
		state.AdvancedFilters[c.Index] = f
	}

	for _, ps := range p.Sorts {
		c, err := sc.byName(ps.Column)
		if err != nil {
			s.drop("sorts", err)
			continue
		}
		state.Sorts = append(state.Sorts, SortState{Column: c.Index, Direction: ps.Direction, IsAbs: ps.IsAbs})
	}

	return state
}

// RemoteSorts resolves sort state to the remote sort list.
func (st ViewportState) RemoteSorts(cols []core.ColumnRef) []core.Sort {
	var out []core.Sort
	for _, srt := range st.Sorts {
		c, ok := core.FindColumnByIndex(cols, srt.Column)
		if !ok {
			continue
		}
		out = append(out, core.Sort{Column: c, Direction: srt.Direction, IsAbs: srt.IsAbs})
	}
	return out
}

// RemoteFilters resolves quick and advanced filters to the remote filter
// list, ordered by model index.
func (st ViewportState) RemoteFilters(cols []core.ColumnRef) []core.Filter {
	var out []core.Filter
	for _, idx := range slices.Sorted(maps.Keys(st.QuickFilters)) {
		c, ok := core.FindColumnByIndex(cols, idx)
		if !ok || st.QuickFilters[idx] == "" {
			continue
		}
		out = append(out, core.Filter{Column: c, Expression: st.QuickFilters[idx]})
	}
	for _, idx := range slices.Sorted(maps.Keys(st.AdvancedFilters)) {
		c, ok := core.FindColumnByIndex(cols, idx)
		if !ok {
			continue
		}
		f := st.AdvancedFilters[idx]
		out = append(out, core.Filter{
			Column:     c,
			Conditions: slices.Clone(f.Conditions),
			Operators:  slices.Clone(f.Operators),
			Values:     slices.Clone(f.SelectedValues),
			Invert:     f.InvertSelection,
		})
	}
	return out
}

// AlwaysFetch returns the names of columns referenced by filters and sorts,
// which the viewport fetches even when they are scrolled out of view.
func (st ViewportState) AlwaysFetch(cols []core.ColumnRef) []string {
	seen := make(map[core.ModelIndex]bool)
	var names []string
	add := func(idx core.ModelIndex) {
		if seen[idx] {
			return
		}
		seen[idx] = true
		if c, ok := core.FindColumnByIndex(cols, idx); ok {
			names = append(names, c.Name)
		}
	}
	for _, idx := range slices.Sorted(maps.Keys(st.QuickFilters)) {
		add(idx)
	}
	for _, idx := range slices.Sorted(maps.Keys(st.AdvancedFilters)) {
		add(idx)
	}
	for _, srt := range st.Sorts {
		add(srt.Column)
	}
	return names
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
