package grid

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/internal/ui/notifier"
	"github.com/leapstack-labs/gridview/pkg/adapter"
	"github.com/leapstack-labs/gridview/pkg/viewport"
)

// ErrNoGrid is returned when the browser session has no open grid.
var ErrNoGrid = errors.New("no grid open for this session")

type entry struct {
	sess     *grid.Session
	notify   *notifier.Notifier
	listener *viewport.Listener
}

func (e *entry) close() error {
	e.listener.Close()
	e.notify.Close()
	return e.sess.Close()
}

// Registry holds one grid session per browser session.
type Registry struct {
	db     adapter.Adapter
	opts   grid.Options
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates a registry opening tables on db.
func NewRegistry(db adapter.Adapter, opts grid.Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		db:      db,
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Open opens table for the browser session id, replacing any grid the
// session had open. A state saved under the table name is restored.
func (r *Registry) Open(ctx context.Context, id, table string) (*grid.Session, error) {
	sess, err := grid.Open(ctx, r.db, table, r.opts)
	if err != nil {
		return nil, err
	}

	if r.opts.Store != nil {
		if found, err := sess.Restore(ctx, ""); err != nil {
			r.logger.Warn("failed to restore saved state",
				slog.String("table", table), slog.String("error", err.Error()))
		} else if found {
			r.logger.Debug("restored saved state", slog.String("table", table))
		}
	}

	notify := notifier.New()
	e := &entry{
		sess:     sess,
		notify:   notify,
		listener: sess.Subscribe(func(viewport.Change) { notify.Broadcast() }),
	}

	r.mu.Lock()
	prev := r.entries[id]
	r.entries[id] = e
	r.mu.Unlock()

	if prev != nil {
		_ = prev.close()
	}
	return sess, nil
}

// Get returns the grid of the browser session id and its change notifier.
func (r *Registry) Get(id string) (*grid.Session, *notifier.Notifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil, ErrNoGrid
	}
	return e.sess, e.notify, nil
}

// Close closes the grid of the browser session id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return ErrNoGrid
	}
	return e.close()
}

// CloseAll closes every grid.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		errs = append(errs, e.close())
	}
	return errors.Join(errs...)
}

// PokeAll makes every open grid re-read its window.
func (r *Registry) PokeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.sess.Poke()
	}
}

// Len returns the number of open grids.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
