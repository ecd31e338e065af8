package viewport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// Config configures a Controller.
type Config struct {
	// Table is the remote collaborator. Required.
	Table core.RemoteTable

	// MaxRows bounds the height of one request. Defaults to DefaultMaxRows.
	MaxRows int64

	// Scheduler defers fetches so rapid requests coalesce.
	// Defaults to Debounce(0), which still coalesces calls made in a burst.
	Scheduler Scheduler

	Logger *slog.Logger
}

// ChangeKind identifies what a Change reports.
type ChangeKind int

// Change kinds.
const (
	// ChangeState reports a state transition.
	ChangeState ChangeKind = iota
	// ChangeWindow reports a newly materialized snapshot.
	ChangeWindow
	// ChangeDelta reports a delta folded into the window.
	ChangeDelta
	// ChangeError reports a failed remote call.
	ChangeError
	// ChangeMutation reports completion of a sort, filter or custom column change.
	ChangeMutation
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeState:
		return "state"
	case ChangeWindow:
		return "window"
	case ChangeDelta:
		return "delta"
	case ChangeError:
		return "error"
	case ChangeMutation:
		return "mutation"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is delivered to listeners after the controller's state changed.
//
// Listeners run outside the controller lock and may be called from
// different goroutines, so changes from consecutive generations can arrive
// out of order. State and Window describe the controller as of Generation
// only. A listener that needs the current state compares Generation with
// Controller.Generation or re-reads State and Window.
type Change struct {
	Kind       ChangeKind
	Generation uint64
	State      State
	Window     *Window
	Delta      *core.DeltaEvent
	Err        error
}

// Listener is a registration returned by Controller.Subscribe.
type Listener struct {
	c  *Controller
	id uint64
}

// Close removes the registration. Idempotent.
func (l *Listener) Close() {
	l.c.mu.Lock()
	delete(l.c.listeners, l.id)
	l.c.mu.Unlock()
}

// Controller owns the viewport of one remote table.
//
// Requests are coalesced through the scheduler and tagged with a generation.
// While a request is pending the previous window stays readable. Remote
// failures are recorded, not returned, so readers keep the last good window.
type Controller struct {
	table     core.RemoteTable
	maxRows   int64
	scheduler Scheduler
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	closed     bool
	generation uint64
	request    *Viewport
	fetching   uint64 // generation of the fetch in flight, 0 if none
	cancel     context.CancelFunc
	mutating   int
	sub        *Subscription
	window     *Window
	err        error

	listeners  map[uint64]func(Change)
	listenerID uint64
}

// New creates a controller in the Unbound state.
func New(cfg Config) *Controller {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = Debounce(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		table:     cfg.Table,
		maxRows:   cfg.MaxRows,
		scheduler: cfg.Scheduler,
		logger:    cfg.Logger,
		listeners: make(map[uint64]func(Change)),
	}
}

// Table returns the remote table the controller reads from.
func (c *Controller) Table() core.RemoteTable { return c.table }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Window returns the latest materialized window, or nil if none.
// During Pending this is the previous request's window.
func (c *Controller) Window() *Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// Err returns the last remote error, or nil once a request succeeds.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Generation returns the current request generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Request returns the current viewport request, if any.
func (c *Controller) Request() (Viewport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.request == nil {
		return Viewport{}, false
	}
	return *c.request, true
}

// Subscribe registers fn for every Change. fn runs on the goroutine that
// made the change and must not block.
func (c *Controller) Subscribe(fn func(Change)) *Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenerID++
	c.listeners[c.listenerID] = fn
	return &Listener{c: c, id: c.listenerID}
}

// SetViewport requests rows [startRow, endRow] for cols. The fetch is
// scheduled, not performed; calls made before the scheduler fires coalesce
// into the last one. Repeating the current request is a no-op.
func (c *Controller) SetViewport(startRow, endRow int64, cols []core.ColumnRef) error {
	vp := Viewport{StartRow: startRow, EndRow: endRow, Columns: append([]core.ColumnRef(nil), cols...)}
	if err := validate(vp, c.maxRows); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.request != nil && c.request.Equal(vp) && c.err == nil {
		c.mu.Unlock()
		return nil
	}
	c.request = &vp
	c.err = nil
	change := c.invalidateLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, change)
	c.scheduler.Schedule(c.flush)
	return nil
}

// Refresh re-applies the current request. It does nothing before the first
// SetViewport.
func (c *Controller) Refresh() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.request == nil {
		c.mu.Unlock()
		return nil
	}
	change := c.invalidateLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, change)
	c.scheduler.Schedule(c.flush)
	return nil
}

// Close releases the remote subscription and returns to Unbound. Idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	c.state = Unbound
	c.request = nil
	c.window = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	sub := c.sub
	c.sub = nil
	change := Change{Kind: ChangeState, Generation: c.generation, State: Unbound}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	if d, ok := c.scheduler.(*DebounceScheduler); ok {
		d.Stop()
	}

	var err error
	if sub != nil {
		if err = sub.Close(); err != nil {
			err = fmt.Errorf("failed to close viewport handle: %w", err)
		}
	}
	notify(listeners, change)
	return err
}

// ApplySort replaces the remote sort order and re-applies the viewport.
func (c *Controller) ApplySort(ctx context.Context, sorts []core.Sort) error {
	return c.mutate(ctx, "sort", func(ctx context.Context) error {
		return c.table.ApplySort(ctx, sorts)
	})
}

// ApplyFilter replaces the remote filter set and re-applies the viewport.
func (c *Controller) ApplyFilter(ctx context.Context, filters []core.Filter) error {
	return c.mutate(ctx, "filter", func(ctx context.Context) error {
		return c.table.ApplyFilter(ctx, filters)
	})
}

// ApplyCustomColumns replaces the custom column expressions and re-applies
// the viewport.
func (c *Controller) ApplyCustomColumns(ctx context.Context, exprs []string) error {
	return c.mutate(ctx, "custom columns", func(ctx context.Context) error {
		return c.table.ApplyCustomColumns(ctx, exprs)
	})
}

// mutate runs a remote mutation. The current generation is invalidated
// before the call, so deltas of the pre-mutation subscription never reach
// the post-mutation window, and fetches are held back until it completes.
func (c *Controller) mutate(ctx context.Context, what string, fn func(context.Context) error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mutating++
	var changes []Change
	if c.request != nil {
		changes = append(changes, c.invalidateLocked())
	} else {
		c.generation++
	}
	listeners := c.listenersLocked()
	c.mu.Unlock()
	notifyAll(listeners, changes)

	err := fn(ctx)
	if err != nil {
		err = fmt.Errorf("failed to apply %s: %w", what, err)
	}

	c.mu.Lock()
	c.mutating--
	if c.closed {
		c.mu.Unlock()
		return err
	}
	changes = changes[:0]
	if err != nil {
		c.err = err
		changes = append(changes, Change{Kind: ChangeError, Generation: c.generation, State: c.state, Err: err})
	} else {
		c.err = nil
	}
	refetch := c.request != nil && c.mutating == 0
	if refetch {
		changes = append(changes, c.invalidateLocked())
	}
	changes = append(changes, Change{Kind: ChangeMutation, Generation: c.generation, State: c.state, Err: err})
	listeners = c.listenersLocked()
	c.mu.Unlock()

	notifyAll(listeners, changes)
	if refetch {
		c.scheduler.Schedule(c.flush)
	}
	return err
}

// invalidateLocked starts a new generation for the current request.
func (c *Controller) invalidateLocked() Change {
	c.generation++
	c.state = Pending
	return Change{Kind: ChangeState, Generation: c.generation, State: Pending, Window: c.window}
}

// flush starts the fetch for the current generation.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.closed || c.request == nil || c.mutating > 0 || c.fetching == c.generation {
		c.mu.Unlock()
		return
	}
	gen := c.generation
	req := *c.request
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.fetching = gen
	c.mu.Unlock()

	go c.fetch(ctx, gen, req)
}

func (c *Controller) fetch(ctx context.Context, gen uint64, req Viewport) {
	handle, err := c.table.SetViewport(ctx, req.StartRow, req.EndRow, req.Columns)
	if err != nil {
		c.fail(gen, fmt.Errorf("failed to set viewport: %w", err))
		return
	}

	sub := newSubscription(gen, handle, c.onDelta)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.discard(gen, "handle")
		_ = sub.Close()
		return
	}
	prev := c.sub
	c.sub = sub
	c.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			c.logger.Warn("failed to close superseded viewport handle",
				slog.Uint64("generation", prev.Generation()),
				slog.String("error", err.Error()))
		}
	}

	snap, err := handle.Snapshot(ctx)
	if err != nil {
		c.fail(gen, fmt.Errorf("failed to fetch snapshot: %w", err))
		return
	}
	c.materialize(gen, req, sub, snap)
}

func (c *Controller) materialize(gen uint64, req Viewport, sub *Subscription, snap *core.Snapshot) {
	size := c.table.Size()

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.discard(gen, "snapshot")
		return
	}
	w := newWindow(gen, req, snap, size)
	// Events that raced ahead of the snapshot are replayed in order.
	for _, ev := range sub.start() {
		w = Fold(w, ev)
	}
	c.window = w
	c.state = Materialized
	c.err = nil
	c.fetching = 0
	change := Change{Kind: ChangeWindow, Generation: gen, State: Materialized, Window: w}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Debug("viewport materialized",
		slog.Uint64("generation", gen),
		slog.Int64("start_row", req.StartRow),
		slog.Int64("end_row", req.EndRow),
		slog.Int64("rows", w.RowCount()))
	notify(listeners, change)
}

func (c *Controller) onDelta(gen uint64, ev core.DeltaEvent) {
	if err := ev.Validate(); err != nil {
		c.logger.Warn("malformed delta event", slog.Uint64("generation", gen), slog.String("error", err.Error()))
	}
	size := c.table.Size()

	c.mu.Lock()
	if c.closed || gen != c.generation || c.window == nil || c.window.Generation != gen {
		c.mu.Unlock()
		c.discard(gen, "delta")
		return
	}
	w := Fold(c.window, ev)
	w.TableSize = size
	c.window = w
	change := Change{Kind: ChangeDelta, Generation: gen, State: c.state, Window: w, Delta: &ev}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, change)
}

func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.discard(gen, "error")
		return
	}
	c.err = err
	c.state = Pending
	c.fetching = 0
	change := Change{Kind: ChangeError, Generation: gen, State: Pending, Window: c.window, Err: err}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Warn("viewport fetch failed", slog.Uint64("generation", gen), slog.String("error", err.Error()))
	notify(listeners, change)
}

func (c *Controller) discard(gen uint64, what string) {
	c.logger.Debug("stale result discarded",
		slog.String("result", what),
		slog.Uint64("generation", gen),
		slog.Uint64("current", c.Generation()))
}

func (c *Controller) listenersLocked() []func(Change) {
	out := make([]func(Change), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(Change), change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}

func notifyAll(listeners []func(Change), changes []Change) {
	for _, ch := range changes {
		notify(listeners, ch)
	}
}
