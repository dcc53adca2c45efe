package web

import (
	"net/http"

	"github.com/erazemk/cargocheck/internal/store"
)

// languages offered on the settings page.
var languages = []string{"en", "sl", "de", "es"}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "settings.html", &struct {
		PageData
		Languages     []string
		LastInspector string
	}{
		PageData:      s.page(r, "Settings"),
		Languages:     languages,
		LastInspector: s.lastInspector(r),
	})
}

// SettingsSubmit handles POST /settings.
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := store.SetLanguage(r.Context(), s.Docs, r.FormValue("language")); err != nil {
		redirectWith(w, r, "/settings", "error", message(err))
		return
	}
	redirectWith(w, r, "/settings", "notice", "Settings saved.")
}
