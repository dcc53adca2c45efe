package web

import (
	"net/http"
	"time"

	"github.com/erazemk/cargocheck/internal/report"
	"github.com/erazemk/cargocheck/internal/store"
	webembed "github.com/erazemk/cargocheck/web"
)

// NewRouter creates the web page router with all page routes registered.
func NewRouter(records *store.RecordStore, docs store.Documents, now func() time.Time) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}

	s := &Server{
		Records:   records,
		Docs:      docs,
		Templates: templates,
		Renderer:  &report.Renderer{Now: now, Label: report.HumanizeKey},
		Now:       now,
	}

	mux := http.NewServeMux()

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	mux.HandleFunc("GET /{$}", s.Dashboard)

	mux.HandleFunc("GET /inspections", s.InspectionsPage)
	mux.HandleFunc("POST /inspections", s.InspectionCreateSubmit)
	mux.HandleFunc("GET /inspections/{id}", s.InspectionDetailPage)
	mux.HandleFunc("POST /inspections/{id}", s.InspectionUpdateSubmit)
	mux.HandleFunc("POST /inspections/{id}/delete", s.InspectionDeleteSubmit)
	mux.HandleFunc("POST /inspections/{id}/photos", s.InspectionPhotosSubmit)
	mux.HandleFunc("GET /inspections/{id}/report", s.InspectionReport)

	mux.HandleFunc("GET /settings", s.SettingsPage)
	mux.HandleFunc("POST /settings", s.SettingsSubmit)

	return LanguageMiddleware(docs)(mux), nil
}
