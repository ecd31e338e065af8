// Package remote implements core.RemoteTable over a SQL adapter.
//
// Windows are read with LIMIT/OFFSET queries built by squirrel. Filters and
// sorts are translated to SQL and evaluated by the database. Open windows
// are re-read on a poll interval, or when Poke is called, and every change
// is pushed to the window's listeners as a DeltaEvent.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/leapstack-labs/gridview/pkg/adapter"
	"github.com/leapstack-labs/gridview/pkg/core"
)

var (
	// ErrTableNotFound is returned by Open when the table does not exist.
	ErrTableNotFound = adapter.ErrTableNotFound

	// ErrInvalidCustomColumn is returned for a malformed or failing custom
	// column expression.
	ErrInvalidCustomColumn = errors.New("invalid custom column")

	// ErrClosed is returned by operations on a closed table.
	ErrClosed = errors.New("remote table is closed")
)

// Options configure a Table.
type Options struct {
	// PollInterval re-reads open windows periodically. Zero disables polling;
	// Poke still triggers a read.
	PollInterval time.Duration

	// QueryTimeout bounds every query. Zero means no timeout.
	QueryTimeout time.Duration

	Logger *slog.Logger
}

// Table is a SQL table exposed as a core.RemoteTable.
type Table struct {
	db     adapter.Adapter
	name   string
	opts   Options
	logger *slog.Logger

	mu      sync.RWMutex
	base    []core.ColumnRef
	custom  []customColumn
	sorts   []core.Sort
	filters []core.Filter
	size    int64
	closed  bool
	handles map[*handle]struct{}

	poke   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// Open loads the schema of table and starts the poller. Model indices are
// the columns' ordinal positions, starting at zero.
func Open(ctx context.Context, db adapter.Adapter, table string, opts Options) (*Table, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	meta, err := db.GetTableMetadata(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", table, err)
	}

	t := &Table{
		db:      db,
		name:    table,
		opts:    opts,
		logger:  opts.Logger.With(slog.String("table", table)),
		handles: make(map[*handle]struct{}),
		poke:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		size:    meta.RowCount,
		base:    meta.ColumnRefs(),
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(pollCtx)

	t.logger.Debug("opened remote table", slog.Int("columns", len(t.base)), slog.Int64("rows", t.size))
	return t, nil
}

// Name returns the table reference the table was opened with.
func (t *Table) Name() string { return t.name }

// Columns returns the table's columns followed by the custom columns.
// Custom columns take the model indices after the last table column, in
// the order they were applied.
func (t *Table) Columns() []core.ColumnRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cols := slices.Clone(t.base)
	for _, c := range t.custom {
		cols = append(cols, c.ref)
	}
	return cols
}

// Size returns the filtered row count as of the last refresh.
func (t *Table) Size() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Sorts returns the current sort order.
func (t *Table) Sorts() []core.Sort {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.sorts)
}

// Filters returns the current filters.
func (t *Table) Filters() []core.Filter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.filters)
}

// SetViewport opens a window over [startRow, endRow]. Rows are read by the
// handle's Snapshot.
func (t *Table) SetViewport(_ context.Context, startRow, endRow int64, cols []core.ColumnRef) (core.ViewportHandle, error) {
	if startRow < 0 || endRow < startRow {
		return nil, fmt.Errorf("invalid window [%d, %d]", startRow, endRow)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	for _, c := range cols {
		if !t.hasColumn(c) {
			return nil, fmt.Errorf("unknown column %s", c)
		}
	}

	h := &handle{
		table:     t,
		startRow:  startRow,
		endRow:    endRow,
		cols:      slices.Clone(cols),
		listeners: make(map[int]func(core.DeltaEvent)),
	}
	t.handles[h] = struct{}{}
	return h, nil
}

func (t *Table) hasColumn(c core.ColumnRef) bool {
	if found, ok := core.FindColumnByIndex(t.base, c.Index); ok {
		return found.Name == c.Name
	}
	for _, cc := range t.custom {
		if cc.ref.Index == c.Index && cc.ref.Name == c.Name {
			return true
		}
	}
	return false
}

// ApplySort replaces the sort order and refreshes the size.
func (t *Table) ApplySort(ctx context.Context, sorts []core.Sort) error {
	return t.mutate(ctx, func(q *querySpec) error {
		q.sorts = slices.Clone(sorts)
		return nil
	})
}

// ApplyFilter replaces the filters and refreshes the size. Filters that
// cannot be translated are rejected before anything changes.
func (t *Table) ApplyFilter(ctx context.Context, filters []core.Filter) error {
	return t.mutate(ctx, func(q *querySpec) error {
		for _, f := range filters {
			if _, err := filterSQL(f); err != nil {
				return err
			}
		}
		q.filters = slices.Clone(filters)
		return nil
	})
}

// ApplyCustomColumns replaces the custom columns. Each expression is
// "Name=expression" in the database's SQL dialect; the expressions are
// validated against the database before they are applied.
func (t *Table) ApplyCustomColumns(ctx context.Context, exprs []string) error {
	t.mu.RLock()
	baseCount := len(t.base)
	names := make(map[string]bool, baseCount)
	for _, c := range t.base {
		names[c.Name] = true
	}
	t.mu.RUnlock()

	custom := make([]customColumn, 0, len(exprs))
	for i, s := range exprs {
		name, expr, err := parseCustomColumn(s)
		if err != nil {
			return err
		}
		if names[name] {
			return fmt.Errorf("%w: column %q already exists", ErrInvalidCustomColumn, name)
		}
		names[name] = true
		custom = append(custom, customColumn{
			ref:  core.ColumnRef{Index: core.ModelIndex(baseCount + i), Name: name},
			expr: expr,
		})
	}

	// filters and sorts on dropped custom columns go with them
	keep := func(c core.ColumnRef) bool {
		if int(c.Index) < baseCount {
			return true
		}
		for _, cc := range custom {
			if cc.ref.Index == c.Index && cc.ref.Name == c.Name {
				return true
			}
		}
		return false
	}

	return t.mutate(ctx, func(q *querySpec) error {
		q.custom = custom
		q.filters = slices.DeleteFunc(q.filters, func(f core.Filter) bool { return !keep(f.Column) })
		q.sorts = slices.DeleteFunc(q.sorts, func(s core.Sort) bool { return !keep(s.Column) })
		if len(custom) == 0 {
			return nil
		}
		return t.resolveCustomTypes(ctx, *q)
	})
}

// resolveCustomTypes runs a zero-row probe to validate the expressions and
// learn their types.
func (t *Table) resolveCustomTypes(ctx context.Context, q querySpec) error {
	query, args, err := q.probe()
	if err != nil {
		return err
	}
	ctx, cancel := t.queryContext(ctx)
	defer cancel()

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCustomColumn, err)
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return fmt.Errorf("failed to read custom column types: %w", err)
	}
	offset := len(types) - len(q.custom)
	for i := range q.custom {
		if offset+i >= 0 {
			q.custom[i].ref.Type = types[offset+i].DatabaseTypeName()
		}
	}
	return nil
}

// mutate applies change to a copy of the query state, refreshes the size
// with the new state and commits both only when everything succeeded.
func (t *Table) mutate(ctx context.Context, change func(*querySpec) error) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrClosed
	}
	q := t.specLocked()
	t.mu.RUnlock()

	if err := change(&q); err != nil {
		return err
	}
	size, err := t.count(ctx, q)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.custom = q.custom
	t.filters = q.filters
	t.sorts = q.sorts
	t.size = size
	t.mu.Unlock()
	return nil
}

func (t *Table) specLocked() querySpec {
	return querySpec{
		table:       t.name,
		custom:      slices.Clone(t.custom),
		filters:     slices.Clone(t.filters),
		sorts:       slices.Clone(t.sorts),
		placeholder: t.db.Placeholders(),
	}
}

func (t *Table) spec() querySpec {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.specLocked()
}

func (t *Table) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, t.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

func (t *Table) count(ctx context.Context, q querySpec) (int64, error) {
	query, args, err := q.count()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	ctx, cancel := t.queryContext(ctx)
	defer cancel()

	var n int64
	if err := t.db.QueryValue(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", t.name, err)
	}
	return n, nil
}

// read fetches [startRow, endRow] for cols, keyed by row index.
func (t *Table) read(ctx context.Context, startRow, endRow int64, cols []core.ColumnRef) (map[int64]*row, error) {
	query, args, err := t.spec().window(startRow, endRow, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to build window query: %w", err)
	}
	ctx, cancel := t.queryContext(ctx)
	defer cancel()

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows %d-%d of %s: %w", startRow, endRow, t.name, err)
	}
	defer func() { _ = rows.Close() }()

	width := max(len(cols), 1)
	out := make(map[int64]*row)
	idx := startRow
	for rows.Next() {
		values := make([]any, width)
		ptrs := make([]any, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", idx, err)
		}
		out[idx] = newRow(cols, values)
		idx++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func (t *Table) release(h *handle) {
	t.mu.Lock()
	delete(t.handles, h)
	t.mu.Unlock()
}

// Poke requests an immediate poll. It never blocks.
func (t *Table) Poke() {
	select {
	case t.poke <- struct{}{}:
	default:
	}
}

// Poll refreshes the size and re-reads every open window once.
func (t *Table) Poll(ctx context.Context) {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return
	}
	handles := make([]*handle, 0, len(t.handles))
	for h := range t.handles {
		handles = append(handles, h)
	}
	q := t.specLocked()
	t.mu.RUnlock()

	if size, err := t.count(ctx, q); err != nil {
		t.logger.Warn("failed to refresh size", slog.String("error", err.Error()))
	} else {
		t.mu.Lock()
		t.size = size
		t.mu.Unlock()
	}

	for _, h := range handles {
		h.poll(ctx)
	}
}

func (t *Table) run(ctx context.Context) {
	defer close(t.done)

	var tick <-chan time.Time
	if t.opts.PollInterval > 0 {
		ticker := time.NewTicker(t.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			t.Poll(ctx)
		case <-t.poke:
			t.Poll(ctx)
		}
	}
}

// Close stops the poller and releases every open window. The adapter is
// not closed.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handles := t.handles
	t.handles = make(map[*handle]struct{})
	t.mu.Unlock()

	t.cancel()
	<-t.done
	for h := range handles {
		_ = h.Close()
	}
	return nil
}

var _ core.RemoteTable = (*Table)(nil)
