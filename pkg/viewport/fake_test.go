package viewport

import (
	"context"
	"errors"
	"sync"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// fakeRow returns its row index for every column.
type fakeRow int64

func (r fakeRow) Get(core.ColumnRef) any               { return int64(r) }
func (r fakeRow) Format(core.ColumnRef) core.CellFormat { return core.CellFormat{} }

func rowsFor(start, end int64) []core.RowAccessor {
	var rows []core.RowAccessor
	for i := start; i <= end; i++ {
		rows = append(rows, fakeRow(i))
	}
	return rows
}

// fakeHandle serves a snapshot when released and lets tests push deltas.
type fakeHandle struct {
	start, end int64
	cols       []core.ColumnRef

	release chan struct{}
	snapErr error

	mu        sync.Mutex
	callbacks map[int]func(core.DeltaEvent)
	nextID    int
	closed    bool
}

func (h *fakeHandle) OnUpdate(fn func(core.DeltaEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.callbacks[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.callbacks, id)
		h.mu.Unlock()
	}
}

// Snapshot ignores ctx on purpose: superseded requests must still be able to
// resolve late.
func (h *fakeHandle) Snapshot(context.Context) (*core.Snapshot, error) {
	if h.release != nil {
		<-h.release
	}
	if h.snapErr != nil {
		return nil, h.snapErr
	}
	return &core.Snapshot{Offset: h.start, Rows: rowsFor(h.start, h.end), Columns: h.cols}, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) emit(ev core.DeltaEvent) {
	h.mu.Lock()
	fns := make([]func(core.DeltaEvent), 0, len(h.callbacks))
	for _, fn := range h.callbacks {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// fakeTable hands out fakeHandles and records mutations.
type fakeTable struct {
	cols []core.ColumnRef
	size int64

	// gate, when set, makes every new handle wait for a release.
	gate bool
	// setErr fails SetViewport.
	setErr error
	// mutationErr fails every mutation.
	mutationErr error
	// mutationGate, when set, blocks mutations until closed.
	mutationGate chan struct{}

	mu      sync.Mutex
	handles []*fakeHandle
	sorts   [][]core.Sort
	filters [][]core.Filter
	customs [][]string
}

func newFakeTable(names ...string) *fakeTable {
	cols := make([]core.ColumnRef, len(names))
	for i, n := range names {
		cols[i] = core.ColumnRef{Index: core.ModelIndex(i), Name: n, Type: "VARCHAR"}
	}
	return &fakeTable{cols: cols, size: 1_000_000}
}

func (t *fakeTable) Columns() []core.ColumnRef { return t.cols }
func (t *fakeTable) Size() int64               { return t.size }

func (t *fakeTable) SetViewport(_ context.Context, start, end int64, cols []core.ColumnRef) (core.ViewportHandle, error) {
	if t.setErr != nil {
		return nil, t.setErr
	}
	h := &fakeHandle{start: start, end: end, cols: cols, callbacks: make(map[int]func(core.DeltaEvent))}
	if t.gate {
		h.release = make(chan struct{})
	}
	t.mu.Lock()
	t.handles = append(t.handles, h)
	t.mu.Unlock()
	return h, nil
}

func (t *fakeTable) mutation(ctx context.Context) error {
	if t.mutationGate != nil {
		select {
		case <-t.mutationGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return t.mutationErr
}

func (t *fakeTable) ApplySort(ctx context.Context, sorts []core.Sort) error {
	t.mu.Lock()
	t.sorts = append(t.sorts, sorts)
	t.mu.Unlock()
	return t.mutation(ctx)
}

func (t *fakeTable) ApplyFilter(ctx context.Context, filters []core.Filter) error {
	t.mu.Lock()
	t.filters = append(t.filters, filters)
	t.mu.Unlock()
	return t.mutation(ctx)
}

func (t *fakeTable) ApplyCustomColumns(ctx context.Context, exprs []string) error {
	t.mu.Lock()
	t.customs = append(t.customs, exprs)
	t.mu.Unlock()
	return t.mutation(ctx)
}

func (t *fakeTable) handleCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

func (t *fakeTable) handle(i int) *fakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handles[i]
}

// manualScheduler keeps only the latest scheduled fn until run is called.
type manualScheduler struct {
	mu      sync.Mutex
	pending func()
	calls   int
}

func (s *manualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = fn
	s.calls++
}

func (s *manualScheduler) run() bool {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

var errRemote = errors.New("remote unavailable")
