package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/internal/ui/notifier"
	"github.com/leapstack-labs/gridview/pkg/adapter"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/format"
	"github.com/leapstack-labs/gridview/pkg/persist"
)

const (
	cookieName = "gridview"
	sessionKey = "grid"

	defaultPageRows = 50
)

// Handlers provides HTTP handlers for the grid feature.
type Handlers struct {
	db           adapter.Adapter
	registry     *Registry
	sessionStore sessions.Store
	logger       *slog.Logger
	isDev        bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db adapter.Adapter, registry *Registry, sessionStore sessions.Store, logger *slog.Logger, isDev bool) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		db:           db,
		registry:     registry,
		sessionStore: sessionStore,
		logger:       logger,
		isDev:        isDev,
	}
}

// sessionID returns the browser session id, creating and saving one when
// create is set. It must run before any response body is written.
func (h *Handlers) sessionID(w http.ResponseWriter, r *http.Request, create bool) (string, error) {
	// a cookie that fails to decode yields a fresh session
	sess, _ := h.sessionStore.Get(r, cookieName)
	if id, ok := sess.Values[sessionKey].(string); ok && id != "" {
		return id, nil
	}
	if !create {
		return "", ErrNoGrid
	}

	id := uuid.NewString()
	sess.Values[sessionKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return id, nil
}

// current returns the grid of the requesting browser session.
func (h *Handlers) current(w http.ResponseWriter, r *http.Request) (*grid.Session, *notifier.Notifier, error) {
	id, err := h.sessionID(w, r, false)
	if err != nil {
		return nil, nil, err
	}
	return h.registry.Get(id)
}

// Tables lists the tables of the target database as JSON.
func (h *Handlers) Tables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.db.ListTables(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableInfo{Name: adapter.DisplayName(h.db, t), Schema: t.Schema})
	}
	writeJSON(w, out)
}

// Open opens a table for the browser session and requests its first page.
func (h *Handlers) Open(w http.ResponseWriter, r *http.Request) {
	var signals OpenSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.respond(w, r, fmt.Errorf("failed to read signals: %w", err))
		return
	}
	if signals.Table == "" {
		h.respond(w, r, errors.New("table is required"))
		return
	}

	id, err := h.sessionID(w, r, true)
	if err != nil {
		h.respond(w, r, err)
		return
	}

	gs, err := h.registry.Open(r.Context(), id, signals.Table)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	n := len(gs.Columns())
	err = gs.Scroll(0, defaultPageRows-1, 0, core.VisualIndex(max(n-1, 0)))
	h.logger.Debug("grid opened", slog.String("table", signals.Table), slog.String("grid", gs.ID))

	sse := datastar.NewSSE(w, r)
	patch := map[string]any{
		"table":   gs.Name(),
		"columns": gs.Columns(),
		"error":   errText(err),
	}
	if err := sse.MarshalAndPatchSignals(patch); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// Viewport moves the requested window.
func (h *Handlers) Viewport(w http.ResponseWriter, r *http.Request) {
	var signals ViewportSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		return gs.Scroll(signals.Top, signals.Bottom,
			core.VisualIndex(signals.Left), core.VisualIndex(signals.Right))
	})
}

// Sort toggles or replaces the sort.
func (h *Handlers) Sort(w http.ResponseWriter, r *http.Request) {
	var signals SortSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		if signals.SortColumn != "" {
			return gs.ToggleSort(r.Context(), signals.SortColumn, signals.SortMulti)
		}
		sorts := make([]persist.SortState, 0, len(signals.Sorts))
		for _, s := range signals.Sorts {
			c, ok := core.FindColumn(gs.Columns(), s.Column)
			if !ok {
				return &persist.ColumnNotFoundError{Name: s.Column}
			}
			dir := s.Direction
			if dir == "" {
				dir = core.SortAsc
			}
			sorts = append(sorts, persist.SortState{Column: c.Index, Direction: dir, IsAbs: s.IsAbs})
		}
		return gs.SetSorts(r.Context(), sorts)
	})
}

// Filter sets a quick or advanced filter, or clears all filters.
func (h *Handlers) Filter(w http.ResponseWriter, r *http.Request) {
	var signals FilterSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		ctx := r.Context()
		switch {
		case signals.ClearFilters:
			return gs.ClearFilters(ctx)
		case signals.Advanced != nil:
			f, err := advancedFilter(gs, signals.FilterColumn, signals.Advanced)
			if err != nil {
				return err
			}
			return gs.SetAdvancedFilter(ctx, signals.FilterColumn, f)
		default:
			return gs.SetQuickFilter(ctx, signals.FilterColumn, signals.FilterText)
		}
	})
}

// advancedFilter converts the signal form, decoding selected values against
// the column type. An empty signal clears the filter.
func advancedFilter(gs *grid.Session, column string, a *AdvancedSignal) (*persist.AdvancedFilter, error) {
	c, ok := core.FindColumn(gs.Columns(), column)
	if !ok {
		return nil, &persist.ColumnNotFoundError{Name: column}
	}
	if len(a.Conditions) == 0 && len(a.Values) == 0 {
		return nil, nil //nolint:nilnil // nil clears the filter
	}

	f := &persist.AdvancedFilter{
		Conditions:      a.Conditions,
		Operators:       a.Operators,
		InvertSelection: a.Invert,
	}
	for _, v := range a.Values {
		typed, err := format.Decode(v, c.Type)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", c.Name, err)
		}
		f.SelectedValues = append(f.SelectedValues, typed)
	}
	return f, nil
}

// CustomColumns replaces the custom column expressions.
func (h *Handlers) CustomColumns(w http.ResponseWriter, r *http.Request) {
	var signals CustomColumnsSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		return gs.SetCustomColumns(r.Context(), signals.CustomColumns)
	})
}

// MoveColumn moves a column between visual positions.
func (h *Handlers) MoveColumn(w http.ResponseWriter, r *http.Request) {
	var signals MoveSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		return gs.MoveColumn(core.VisualIndex(signals.MoveFrom), core.VisualIndex(signals.MoveTo))
	})
}

// HideColumn hides a column.
func (h *Handlers) HideColumn(w http.ResponseWriter, r *http.Request) {
	var signals ColumnSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		return gs.HideColumn(signals.Column)
	})
}

// ShowColumn shows a hidden column.
func (h *Handlers) ShowColumn(w http.ResponseWriter, r *http.Request) {
	var signals ColumnSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		return gs.ShowColumn(signals.Column)
	})
}

// SaveState stores the grid state under the given key.
func (h *Handlers) SaveState(w http.ResponseWriter, r *http.Request) {
	var signals StateSignals
	h.mutate(w, r, &signals, func(gs *grid.Session) error {
		return gs.Save(r.Context(), signals.StateKey)
	})
}

// State returns the persisted form of the grid state as JSON.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	gs, _, err := h.current(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, gs.Persisted())
}

// Close closes the grid of the browser session.
func (h *Handlers) Close(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessionID(w, r, false)
	if err == nil {
		err = h.registry.Close(id)
	}
	if errors.Is(err, ErrNoGrid) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutate reads signals into dst, applies fn to the session's grid and
// reports the outcome in the error signal. The new window reaches the page
// through the updates stream.
func (h *Handlers) mutate(w http.ResponseWriter, r *http.Request, dst any, fn func(*grid.Session) error) {
	// signals must be read before the SSE response starts
	if err := datastar.ReadSignals(r, dst); err != nil {
		h.respond(w, r, fmt.Errorf("failed to read signals: %w", err))
		return
	}
	gs, _, err := h.current(w, r)
	if err != nil {
		h.respond(w, r, err)
		return
	}
	err = fn(gs)
	if err != nil {
		h.logger.Debug("grid request rejected", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	h.respond(w, r, err)
}

// respond patches the error signal.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, err error) {
	sse := datastar.NewSSE(w, r)
	if perr := sse.MarshalAndPatchSignals(map[string]any{"error": errText(err)}); perr != nil {
		_ = sse.ConsoleError(perr)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
