package remote

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/rangeset"
)

// handle is an open window on a Table. It remembers the rows of its last
// read so the poller can describe what changed.
type handle struct {
	table    *Table
	startRow int64
	endRow   int64
	cols     []core.ColumnRef

	// readMu serializes Snapshot and poll so each diff starts from the
	// previous read.
	readMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	baseline  map[int64]*row
	nextID    int
	listeners map[int]func(core.DeltaEvent)
}

func (h *handle) OnUpdate(fn func(core.DeltaEvent)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *handle) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	h.readMu.Lock()
	defer h.readMu.Unlock()

	rows, err := h.table.read(ctx, h.startRow, h.endRow, h.cols)
	if err != nil {
		return nil, err
	}

	snap := &core.Snapshot{
		Offset:  h.startRow,
		Rows:    make([]core.RowAccessor, 0, len(rows)),
		Columns: slices.Clone(h.cols),
	}
	for _, idx := range slices.Sorted(maps.Keys(rows)) {
		snap.Rows = append(snap.Rows, rows[idx])
	}

	h.mu.Lock()
	if !h.closed {
		h.baseline = rows
	}
	h.mu.Unlock()
	return snap, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.listeners = nil
	h.baseline = nil
	h.mu.Unlock()

	h.table.release(h)
	return nil
}

// poll re-reads the window and pushes a delta when anything changed.
// Handles without a snapshot are skipped.
func (h *handle) poll(ctx context.Context) {
	h.readMu.Lock()
	defer h.readMu.Unlock()

	h.mu.Lock()
	ready := !h.closed && h.baseline != nil
	h.mu.Unlock()
	if !ready {
		return
	}

	rows, err := h.table.read(ctx, h.startRow, h.endRow, h.cols)
	if err != nil {
		h.table.logger.Warn("failed to poll viewport",
			slog.Int64("start_row", h.startRow),
			slog.Int64("end_row", h.endRow),
			slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	ev := diffRows(h.baseline, rows)
	h.baseline = rows
	fns := slices.Collect(maps.Values(h.listeners))
	h.mu.Unlock()

	if ev.IsEmpty() {
		return
	}
	h.table.logger.Debug("viewport changed",
		slog.String("added", ev.Added.String()),
		slog.String("removed", ev.Removed.String()),
		slog.String("updated", ev.Updated.String()))
	for _, fn := range fns {
		fn(ev)
	}
}

// diffRows compares two reads of the same window by row hash.
func diffRows(before, after map[int64]*row) core.DeltaEvent {
	var added, removed, updated []int64
	ev := core.DeltaEvent{Rows: make(map[int64]core.RowAccessor)}

	for idx, r := range after {
		old, ok := before[idx]
		switch {
		case !ok:
			added = append(added, idx)
			ev.Rows[idx] = r
		case old.hash != r.hash:
			updated = append(updated, idx)
			ev.Rows[idx] = r
		}
	}
	for idx := range before {
		if _, ok := after[idx]; !ok {
			removed = append(removed, idx)
		}
	}

	ev.Added = rangeset.OfItems(added...)
	ev.Removed = rangeset.OfItems(removed...)
	ev.Updated = rangeset.OfItems(updated...)
	return ev
}
