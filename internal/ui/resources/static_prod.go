//go:build !dev

package resources

import (
	"embed"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
)

//go:embed static/*
var staticFS embed.FS

var (
	versionsOnce sync.Once
	versions     map[string]string
)

// version returns a short content hash of an embedded asset, or "" for an
// unknown one.
func version(name string) string {
	versionsOnce.Do(func() {
		versions = make(map[string]string)
		_ = fs.WalkDir(staticFS, "static", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := staticFS.ReadFile(path)
			if err != nil {
				return err
			}
			h := fnv.New64a()
			_, _ = h.Write(data)
			versions[path[len("static/"):]] = fmt.Sprintf("%x", h.Sum64())
			return nil
		})
	})
	return versions[name]
}

// Handler serves the assets embedded in the binary.
func Handler(_ *slog.Logger) http.Handler {
	fsys, _ := fs.Sub(staticFS, "static")
	return serveStatic(http.FS(fsys), version)
}

// StaticPath returns the URL path for a static asset, versioned by content
// so that long-lived caches pick up new builds.
func StaticPath(path string) string {
	if v := version(path); v != "" {
		return "/static/" + path + "?v=" + v
	}
	return "/static/" + path
}
