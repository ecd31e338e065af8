//go:build dev

package resources

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
)

// getStaticDir derives the absolute path to the static directory from this
// source file, regardless of where the binary is run from.
func getStaticDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return StaticDirectoryPath
	}
	return filepath.Join(filepath.Dir(filename), "static")
}

// Handler serves static files straight from the source tree so edits show
// up on reload. Nothing is versioned.
func Handler(logger *slog.Logger) http.Handler {
	staticDir := getStaticDir()
	if logger != nil {
		logger.Info("static assets served from filesystem", slog.String("path", staticDir))
	}
	return serveStatic(http.FS(os.DirFS(staticDir)), func(string) string { return "" })
}

// StaticPath returns the URL path for a static asset.
func StaticPath(path string) string {
	return "/static/" + path
}
