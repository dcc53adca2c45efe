package api

import (
	"net/http"

	"github.com/erazemk/cargocheck/internal/store"
)

// SettingsHandler handles the small device settings documents.
type SettingsHandler struct {
	Docs store.Documents
}

// LastInspector handles GET /api/settings/last-inspector.
func (h *SettingsHandler) LastInspector(w http.ResponseWriter, r *http.Request) {
	name, err := store.LastQualityInspector(r.Context(), h.Docs)
	if err != nil {
		appError(w, err, "failed to read last inspector")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"qualityInspector": name})
}

// GetLanguage handles GET /api/settings/language.
func (h *SettingsHandler) GetLanguage(w http.ResponseWriter, r *http.Request) {
	lang, err := store.Language(r.Context(), h.Docs)
	if err != nil {
		appError(w, err, "failed to read language")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"language": lang})
}

// SetLanguage handles PUT /api/settings/language.
func (h *SettingsHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetLanguage(r.Context(), h.Docs, req.Language); err != nil {
		appError(w, err, "failed to save language")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"language": req.Language})
}
