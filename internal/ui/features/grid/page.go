package grid

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/leapstack-labs/gridview/internal/ui/resources"
	"github.com/leapstack-labs/gridview/pkg/adapter"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").
	Funcs(template.FuncMap{"static": resources.StaticPath}).
	ParseFS(templateFS, "templates/index.html"))

// PageData is rendered into the page shell.
type PageData struct {
	Title  string
	Tables []TableInfo
	IsDev  bool
}

// Page renders the dashboard shell. The grid itself is filled in by the
// updates stream once a table is opened.
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	data := PageData{Title: "gridview", IsDev: h.isDev}
	if tables, err := h.db.ListTables(r.Context()); err == nil {
		for _, t := range tables {
			data.Tables = append(data.Tables, TableInfo{Name: adapter.DisplayName(h.db, t), Schema: t.Schema})
		}
	} else {
		h.logger.Warn("failed to list tables", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
