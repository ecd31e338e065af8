// Package router mounts the dashboard's routes on a chi router.
package router

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	gridFeature "github.com/leapstack-labs/gridview/internal/ui/features/grid"
	"github.com/leapstack-labs/gridview/internal/ui/resources"
)

// SetupRoutes mounts static assets, the grid feature and, in dev mode, the
// live reload endpoints.
func SetupRoutes(router chi.Router, grid *gridFeature.Handlers, isDev bool, logger *slog.Logger) error {
	if isDev {
		rl := newReloader()
		router.Get("/reload", rl.wait)
		router.Get("/hotreload", rl.trigger)
	}

	router.Handle("/static/*", resources.Handler(logger))

	return gridFeature.SetupRoutes(router, grid)
}

// reloader tells connected pages to reload after a rebuild. A page
// connecting for the first time after the server starts reloads at once,
// which picks up a restarted binary.
type reloader struct {
	pending chan struct{}
	first   sync.Once
}

func newReloader() *reloader {
	return &reloader{pending: make(chan struct{}, 1)}
}

// wait holds an SSE stream open until a reload is triggered.
func (rl *reloader) wait(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	reload := func() { _ = sse.ExecuteScript("window.location.reload()") }

	rl.first.Do(reload)
	select {
	case <-rl.pending:
		reload()
	case <-r.Context().Done():
	}
}

// trigger is called by the build watcher.
func (rl *reloader) trigger(w http.ResponseWriter, _ *http.Request) {
	select {
	case rl.pending <- struct{}{}:
	default:
	}
	w.WriteHeader(http.StatusNoContent)
}
