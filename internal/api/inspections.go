package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/filter"
	"github.com/erazemk/cargocheck/internal/imaging"
	"github.com/erazemk/cargocheck/internal/model"
	"github.com/erazemk/cargocheck/internal/stats"
	"github.com/erazemk/cargocheck/internal/store"
)

// InspectionsHandler handles inspection record endpoints.
type InspectionsHandler struct {
	Records *store.RecordStore
	Now     func() time.Time
}

// List handles GET /api/inspections?q=&category=.
func (h *InspectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	category, ok := model.ParseCategory(r.URL.Query().Get("category"))
	if !ok {
		jsonError(w, http.StatusBadRequest, "unknown category")
		return
	}

	records, err := h.Records.List(r.Context())
	if err != nil {
		appError(w, err, "failed to list inspections")
		return
	}

	jsonResponse(w, http.StatusOK, filter.Apply(records, r.URL.Query().Get("q"), category, h.Now()))
}

// Create handles POST /api/inspections.
func (h *InspectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.RecordFields
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.Records.Create(r.Context(), req)
	if err != nil {
		appError(w, err, "failed to create inspection")
		return
	}
	jsonResponse(w, http.StatusCreated, rec)
}

// Import handles POST /api/inspections/bulk.
func (h *InspectionsHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req []model.InspectionRecord
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Records.Import(r.Context(), req)
	if err != nil {
		appError(w, err, "failed to import inspections")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Get handles GET /api/inspections/{id}.
func (h *InspectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		appError(w, err, "failed to get inspection")
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// Update handles PUT /api/inspections/{id}.
func (h *InspectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.RecordFields
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.Records.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		appError(w, err, "failed to update inspection")
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/inspections/{id}.
func (h *InspectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Records.Delete(r.Context(), r.PathValue("id")); err != nil {
		appError(w, err, "failed to delete inspection")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "inspection deleted"})
}

// Photo handles GET /api/inspections/{id}/photos/{n}. n is 1-based; with
// ?thumb=1 a scaled JPEG preview is returned.
func (h *InspectionsHandler) Photo(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		jsonError(w, http.StatusBadRequest, "invalid photo number")
		return
	}

	rec, err := h.Records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		appError(w, err, "failed to get inspection")
		return
	}
	if n > len(rec.Photos) || !rec.Photos[n-1].HasPayload() {
		appError(w, apperr.New(apperr.CodeNotFound, "photo not found"), "")
		return
	}

	data, err := imaging.DecodeBase64(*rec.Photos[n-1].Base64)
	if err != nil {
		jsonError(w, http.StatusUnprocessableEntity, "photo data is unreadable")
		return
	}
	if r.URL.Query().Get("thumb") != "" {
		data, err = imaging.Thumbnail(data, imaging.ThumbDimension)
		if err != nil {
			jsonError(w, http.StatusUnprocessableEntity, "photo cannot be previewed")
			return
		}
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Pending handles GET /api/pending.
func (h *InspectionsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Records.Pending(r.Context())
	if err != nil {
		appError(w, err, "failed to list pending inspections")
		return
	}
	if pending == nil {
		pending = []model.PendingSyncEntry{}
	}
	jsonResponse(w, http.StatusOK, pending)
}

// Stats handles GET /api/stats.
func (h *InspectionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	records, err := h.Records.List(r.Context())
	if err != nil {
		appError(w, err, "failed to compute statistics")
		return
	}
	jsonResponse(w, http.StatusOK, stats.Summarize(records, h.Now()))
}
