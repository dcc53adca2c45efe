package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/erazemk/cargocheck/internal/export"
	"github.com/erazemk/cargocheck/internal/model"
	"github.com/erazemk/cargocheck/internal/store"
)

// ExportsHandler runs exports and lists their history.
type ExportsHandler struct {
	Exporter *export.Orchestrator
	DB       *sql.DB
}

// Run handles POST /api/exports. The export runs for the duration of the
// request; closing the connection cancels it.
func (h *ExportsHandler) Run(w http.ResponseWriter, r *http.Request) {
	var opts model.ExportOptions
	if err := decodeJSON(r, &opts); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validLayout(opts.Layout) {
		jsonError(w, http.StatusBadRequest, "unknown layout")
		return
	}
	if !validSink(opts.Sink) {
		jsonError(w, http.StatusBadRequest, "unknown sink")
		return
	}

	res, err := h.Exporter.Run(r.Context(), opts)
	if err != nil {
		status, body := errorResponse(err, "export failed")
		if res != nil {
			body.Run = res.Run
		}
		jsonResponse(w, status, body)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// List handles GET /api/exports?limit=.
func (h *ExportsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := store.ListExportRuns(r.Context(), h.DB, limit)
	if err != nil {
		appError(w, err, "failed to list exports")
		return
	}
	if runs == nil {
		runs = []model.ExportRun{}
	}
	jsonResponse(w, http.StatusOK, runs)
}

func validLayout(l model.Layout) bool {
	switch l {
	case "", model.LayoutOrganized, model.LayoutFlat:
		return true
	}
	return false
}

func validSink(s model.SinkKind) bool {
	switch s {
	case "", model.SinkDevice, model.SinkEmail, model.SinkMessaging, model.SinkCloud:
		return true
	}
	return false
}
