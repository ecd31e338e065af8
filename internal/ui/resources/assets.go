// Package resources serves the dashboard's static assets.
package resources

import (
	"net/http"
	"strings"
)

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// serveStatic strips the /static/ prefix. Requests carrying the current
// content version may be cached indefinitely; anything else revalidates.
func serveStatic(fsys http.FileSystem, version func(string) string) http.Handler {
	files := http.StripPrefix("/static/", http.FileServer(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/static/")
		if v := r.URL.Query().Get("v"); v != "" && v == version(name) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		files.ServeHTTP(w, r)
	})
}
