package grid

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the grid feature routes.
func SetupRoutes(router chi.Router, handlers *Handlers) error {
	router.Get("/", handlers.Page)
	router.Get("/api/tables", handlers.Tables)

	router.Route("/api/grid", func(r chi.Router) {
		r.Post("/open", handlers.Open)
		r.Post("/viewport", handlers.Viewport)
		r.Post("/sort", handlers.Sort)
		r.Post("/filter", handlers.Filter)
		r.Post("/custom-columns", handlers.CustomColumns)
		r.Post("/columns/move", handlers.MoveColumn)
		r.Post("/columns/hide", handlers.HideColumn)
		r.Post("/columns/show", handlers.ShowColumn)
		r.Get("/state", handlers.State)
		r.Post("/state", handlers.SaveState)
		r.Delete("/", handlers.Close)
		r.Get("/updates", handlers.Updates) // SSE window patches
		r.Get("/ws", handlers.Stream)        // websocket frames
	})

	return nil
}
