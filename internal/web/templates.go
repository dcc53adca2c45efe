package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/cargocheck/internal/model"
	"github.com/erazemk/cargocheck/internal/report"
	"github.com/erazemk/cargocheck/internal/store"
	webembed "github.com/erazemk/cargocheck/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"label": report.HumanizeKey,
		"rate":  report.FormatRate,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return report.NotSpecified
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return humanize.Time(t)
		},
		"plus1": func(i int) int { return i + 1 },
		"orDash": func(s string) string {
			if s == "" {
				return "-"
			}
			return s
		},
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"dashboard.html",
		"inspections.html",
		"inspection_detail.html",
		"settings.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title    string
	Language string
	Error    string
	Success  string
}

// Server holds all dependencies for page handlers.
type Server struct {
	Records   *store.RecordStore
	Docs      store.Documents
	Templates *Templates
	Renderer  *report.Renderer
	Now       func() time.Time
}

func (s *Server) page(r *http.Request, title string) PageData {
	return PageData{
		Title:    title,
		Language: Language(r.Context()),
		Error:    r.URL.Query().Get("error"),
		Success:  r.URL.Query().Get("notice"),
	}
}

// categories lists the list-view filter buckets in display order.
var categories = []model.Category{
	model.CategoryAll,
	model.CategoryCompliant,
	model.CategoryNonCompliant,
	model.CategoryRecent,
	model.CategoryExported,
	model.CategoryNotExported,
}
