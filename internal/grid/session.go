// Package grid ties a remote table, a viewport controller and the user's
// column, filter and sort state into one session. The dashboard server and
// the terminal commands both drive the engine through a Session.
package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/gridview/internal/config"
	"github.com/leapstack-labs/gridview/internal/remote"
	"github.com/leapstack-labs/gridview/pkg/adapter"
	"github.com/leapstack-labs/gridview/pkg/columns"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/persist"
	"github.com/leapstack-labs/gridview/pkg/viewport"
)

// ErrNoStore is returned when saving or restoring without a state store.
var ErrNoStore = errors.New("no state store configured")

// ErrNoViewport is returned by Wait before anything was requested.
var ErrNoViewport = errors.New("no viewport requested")

// Options configure a Session.
type Options struct {
	Viewport config.ViewportConfig

	// Store persists named layouts. Optional.
	Store core.StateStore

	// Scheduler overrides the debounce scheduler built from Viewport.Debounce.
	Scheduler viewport.Scheduler

	Logger *slog.Logger
}

// Session is one user's view of one table.
type Session struct {
	ID string

	table       *remote.Table
	ctrl        *viewport.Controller
	serializer  *persist.Serializer
	store       core.StateStore
	bufferPages float64
	logger      *slog.Logger

	mu        sync.Mutex
	state     persist.ViewportState
	top       int64
	bottom    int64
	colWindow *columns.Window
}

// Open opens table on db and starts a session over it.
func Open(ctx context.Context, db adapter.Adapter, table string, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	opts.Viewport.ApplyDefaults()

	id := uuid.NewString()
	logger := opts.Logger.With(slog.String("session", id), slog.String("table", table))

	tbl, err := remote.Open(ctx, db, table, remote.Options{
		PollInterval: opts.Viewport.PollInterval,
		QueryTimeout: opts.Viewport.QueryTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = viewport.Debounce(opts.Viewport.Debounce)
	}

	return &Session{
		ID:          id,
		table:       tbl,
		serializer:  persist.NewSerializer(logger),
		store:       opts.Store,
		bufferPages: opts.Viewport.BufferPages,
		logger:      logger,
		state:       emptyState(),
		ctrl: viewport.New(viewport.Config{
			Table:     tbl,
			MaxRows:   opts.Viewport.MaxRows,
			Scheduler: scheduler,
			Logger:    logger,
		}),
	}, nil
}

func emptyState() persist.ViewportState {
	return persist.ViewportState{
		QuickFilters:    make(map[core.ModelIndex]string),
		AdvancedFilters: make(map[core.ModelIndex]persist.AdvancedFilter),
	}
}

// Name returns the table name.
func (s *Session) Name() string { return s.table.Name() }

// Table returns the remote table.
func (s *Session) Table() *remote.Table { return s.table }

// Controller returns the viewport controller.
func (s *Session) Controller() *viewport.Controller { return s.ctrl }

// Columns returns all columns in model order, hidden ones included.
func (s *Session) Columns() []core.ColumnRef { return s.table.Columns() }

// State returns a copy of the current viewport state.
func (s *Session) State() persist.ViewportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

// Layout returns the current column layout.
func (s *Session) Layout() columns.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Layout
}

// VisualColumns returns the visible columns in on-screen order.
func (s *Session) VisualColumns() []core.ColumnRef {
	return s.Layout().VisualOrder(s.Columns())
}

// Subscribe registers fn for controller changes.
func (s *Session) Subscribe(fn func(viewport.Change)) *viewport.Listener {
	return s.ctrl.Subscribe(fn)
}

// Scroll requests rows [top, bottom] and visual columns [left, right].
func (s *Session) Scroll(top, bottom int64, left, right core.VisualIndex) error {
	s.mu.Lock()
	s.top, s.bottom = top, bottom
	s.colWindow = &columns.Window{Left: left, Right: right}
	s.mu.Unlock()
	return s.request()
}

// Rows returns the requested row range.
func (s *Session) Rows() (top, bottom int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.top, s.bottom
}

// ColumnWindow returns the requested visual column range, or nil before the
// first Scroll.
func (s *Session) ColumnWindow() *columns.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.colWindow == nil {
		return nil
	}
	w := *s.colWindow
	return &w
}

// request pushes the current rows and fetch columns to the controller.
func (s *Session) request() error {
	all := s.table.Columns()

	s.mu.Lock()
	if s.colWindow == nil {
		s.mu.Unlock()
		return nil
	}
	cols := columns.ModelViewportColumns(all, s.colWindow, s.state.Layout,
		s.state.AlwaysFetch(all), s.bufferPages)
	top, bottom := s.top, s.bottom
	s.mu.Unlock()

	return s.ctrl.SetViewport(top, bottom, cols)
}

// Wait blocks until the current request is materialized or has failed.
func (s *Session) Wait(ctx context.Context) (*viewport.Window, error) {
	wake := make(chan struct{}, 1)
	l := s.ctrl.Subscribe(func(viewport.Change) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer l.Close()

	for {
		switch s.ctrl.State() {
		case viewport.Materialized:
			return s.ctrl.Window(), nil
		case viewport.Unbound:
			return nil, ErrNoViewport
		}
		if err := s.ctrl.Err(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// ToggleSort cycles the sort on a column: none, ascending, descending, none.
// Unless multi is set, sorts on other columns are cleared.
func (s *Session) ToggleSort(ctx context.Context, name string, multi bool) error {
	c, err := s.column(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var sorts []persist.SortState
	next := &persist.SortState{Column: c.Index, Direction: core.SortAsc}
	for _, srt := range s.state.Sorts {
		if srt.Column != c.Index {
			if multi {
				sorts = append(sorts, srt)
			}
			continue
		}
		switch srt.Direction {
		case core.SortAsc:
			next.Direction = core.SortDesc
			next.IsAbs = srt.IsAbs
		default:
			next = nil
		}
	}
	if next != nil {
		sorts = append(sorts, *next)
	}
	s.mu.Unlock()

	return s.SetSorts(ctx, sorts)
}

// SetSorts replaces the sort list.
func (s *Session) SetSorts(ctx context.Context, sorts []persist.SortState) error {
	all := s.table.Columns()
	next := persist.ViewportState{Sorts: sorts}
	if err := s.ctrl.ApplySort(ctx, next.RemoteSorts(all)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.Sorts = slices.Clone(sorts)
	s.mu.Unlock()
	return s.request()
}

// SetQuickFilter sets the quick filter text of a column. Empty text clears it.
func (s *Session) SetQuickFilter(ctx context.Context, name, text string) error {
	c, err := s.column(name)
	if err != nil {
		return err
	}
	return s.updateFilters(ctx, func(st *persist.ViewportState) {
		if text == "" {
			delete(st.QuickFilters, c.Index)
		} else {
			st.QuickFilters[c.Index] = text
		}
	})
}

// SetAdvancedFilter sets the advanced filter of a column. A nil filter clears it.
func (s *Session) SetAdvancedFilter(ctx context.Context, name string, f *persist.AdvancedFilter) error {
	c, err := s.column(name)
	if err != nil {
		return err
	}
	return s.updateFilters(ctx, func(st *persist.ViewportState) {
		if f == nil {
			delete(st.AdvancedFilters, c.Index)
		} else {
			st.AdvancedFilters[c.Index] = *f
		}
	})
}

// ClearFilters removes every filter.
func (s *Session) ClearFilters(ctx context.Context) error {
	return s.updateFilters(ctx, func(st *persist.ViewportState) {
		clear(st.QuickFilters)
		clear(st.AdvancedFilters)
	})
}

// updateFilters applies fn to a copy of the state and commits it once the
// remote table accepted the resulting filters.
func (s *Session) updateFilters(ctx context.Context, fn func(*persist.ViewportState)) error {
	s.mu.Lock()
	next := cloneState(s.state)
	s.mu.Unlock()

	fn(&next)
	if err := s.ctrl.ApplyFilter(ctx, next.RemoteFilters(s.table.Columns())); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.QuickFilters = next.QuickFilters
	s.state.AdvancedFilters = next.AdvancedFilters
	s.mu.Unlock()
	return s.request()
}

// SetCustomColumns replaces the custom column expressions. Layout, filter
// and sort references are carried over by name; references to removed
// columns are dropped.
func (s *Session) SetCustomColumns(ctx context.Context, exprs []string) error {
	before := s.table.Columns()
	s.mu.Lock()
	persisted := s.serializer.Dehydrate(before, s.state)
	s.mu.Unlock()

	if err := s.ctrl.ApplyCustomColumns(ctx, exprs); err != nil {
		return err
	}

	persisted.CustomColumns = slices.Clone(exprs)
	state := s.serializer.Hydrate(s.table.Columns(), persisted)

	// removed columns may have carried sorts or filters
	if err := s.ctrl.ApplySort(ctx, state.RemoteSorts(s.table.Columns())); err != nil {
		return err
	}
	if err := s.ctrl.ApplyFilter(ctx, state.RemoteFilters(s.table.Columns())); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return s.request()
}

// MoveColumn moves the column at visual position from to position to.
func (s *Session) MoveColumn(from, to core.VisualIndex) error {
	n := core.VisualIndex(len(s.table.Columns()))
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("column move %d -> %d out of range [0, %d)", from, to, n)
	}
	s.mu.Lock()
	s.state.Layout = s.state.Layout.Move(from, to)
	s.mu.Unlock()
	return s.request()
}

// HideColumn hides a column by name.
func (s *Session) HideColumn(name string) error {
	c, err := s.column(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Layout = s.state.Layout.Hide(c.Index)
	s.mu.Unlock()
	return s.request()
}

// ShowColumn shows a hidden column by name.
func (s *Session) ShowColumn(name string) error {
	c, err := s.column(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Layout = s.state.Layout.Show(c.Index)
	s.mu.Unlock()
	return s.request()
}

// Persisted returns the current state in its persisted form.
func (s *Session) Persisted() core.PersistedViewportState {
	all := s.table.Columns()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serializer.Dehydrate(all, s.state)
}

// Apply replaces the session state with a persisted one. Custom columns are
// applied first so that references to them resolve.
func (s *Session) Apply(ctx context.Context, p core.PersistedViewportState) error {
	if err := s.ctrl.ApplyCustomColumns(ctx, p.CustomColumns); err != nil {
		return fmt.Errorf("failed to restore custom columns: %w", err)
	}
	all := s.table.Columns()
	state := s.serializer.Hydrate(all, p)

	if err := s.ctrl.ApplySort(ctx, state.RemoteSorts(all)); err != nil {
		return fmt.Errorf("failed to restore sorts: %w", err)
	}
	if err := s.ctrl.ApplyFilter(ctx, state.RemoteFilters(all)); err != nil {
		return fmt.Errorf("failed to restore filters: %w", err)
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return s.request()
}

// Save stores the current state under key.
func (s *Session) Save(ctx context.Context, key string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if key == "" {
		key = s.Name()
	}
	p := s.Persisted()
	if err := s.store.SaveViewportState(ctx, key, s.Name(), &p); err != nil {
		return err
	}
	s.logger.Debug("viewport state saved", slog.String("key", key))
	return nil
}

// Restore loads the state stored under key and applies it. It reports
// whether a state was found.
func (s *Session) Restore(ctx context.Context, key string) (bool, error) {
	if s.store == nil {
		return false, ErrNoStore
	}
	if key == "" {
		key = s.Name()
	}
	p, err := s.store.LoadViewportState(ctx, key)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	if err := s.Apply(ctx, *p); err != nil {
		return false, err
	}
	s.logger.Debug("viewport state restored", slog.String("key", key))
	return true, nil
}

// Poke re-reads the open window now.
func (s *Session) Poke() { s.table.Poke() }

// Close closes the controller and the remote table.
func (s *Session) Close() error {
	return errors.Join(s.ctrl.Close(), s.table.Close())
}

func (s *Session) column(name string) (core.ColumnRef, error) {
	c, ok := core.FindColumn(s.table.Columns(), name)
	if !ok {
		return core.ColumnRef{}, &persist.ColumnNotFoundError{Name: name}
	}
	return c, nil
}

func cloneState(st persist.ViewportState) persist.ViewportState {
	return persist.ViewportState{
		Layout:          columns.NewLayout(st.Layout.Moves, st.Layout.Hidden),
		QuickFilters:    maps.Clone(st.QuickFilters),
		AdvancedFilters: maps.Clone(st.AdvancedFilters),
		Sorts:           slices.Clone(st.Sorts),
		CustomColumns:   slices.Clone(st.CustomColumns),
	}
}
