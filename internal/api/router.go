package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/cargocheck/internal/export"
	"github.com/erazemk/cargocheck/internal/share"
	"github.com/erazemk/cargocheck/internal/store"
)

// Deps holds what the API handlers need.
type Deps struct {
	Records  *store.RecordStore
	Docs     store.Documents
	DB       *sql.DB
	Exporter *export.Orchestrator
	Links    *share.Issuer
	Hub      *Hub
	// AllowedOrigins configures CORS; empty disables cross-origin access.
	AllowedOrigins []string
	Now            func() time.Time
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	mux := http.NewServeMux()

	inspections := &InspectionsHandler{Records: d.Records, Now: d.Now}
	settings := &SettingsHandler{Docs: d.Docs}
	exports := &ExportsHandler{Exporter: d.Exporter, DB: d.DB}
	shares := &ShareHandler{Issuer: d.Links, DB: d.DB, Exporter: d.Exporter}

	mux.HandleFunc("GET /api/health", Health(d.Now))

	mux.HandleFunc("GET /api/inspections", inspections.List)
	mux.HandleFunc("POST /api/inspections", inspections.Create)
	mux.HandleFunc("POST /api/inspections/bulk", inspections.Import)
	mux.HandleFunc("GET /api/inspections/{id}", inspections.Get)
	mux.HandleFunc("PUT /api/inspections/{id}", inspections.Update)
	mux.HandleFunc("DELETE /api/inspections/{id}", inspections.Delete)
	mux.HandleFunc("GET /api/inspections/{id}/photos/{n}", inspections.Photo)
	mux.HandleFunc("GET /api/pending", inspections.Pending)
	mux.HandleFunc("GET /api/stats", inspections.Stats)

	mux.HandleFunc("GET /api/settings/last-inspector", settings.LastInspector)
	mux.HandleFunc("GET /api/settings/language", settings.GetLanguage)
	mux.HandleFunc("PUT /api/settings/language", settings.SetLanguage)

	mux.HandleFunc("POST /api/exports", exports.Run)
	mux.HandleFunc("GET /api/exports", exports.List)
	if d.Hub != nil {
		mux.Handle("GET /api/exports/events", d.Hub)
	}

	mux.HandleFunc("GET /api/share/{token}", shares.Download)
	mux.HandleFunc("DELETE /api/share/{token}", shares.Revoke)

	if len(d.AllowedOrigins) == 0 {
		return mux
	}
	return CORSMiddleware(d.AllowedOrigins)(mux)
}

// Health handles GET /api/health.
func Health(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "cargocheck",
			"timestamp": now().UTC(),
		})
	}
}
