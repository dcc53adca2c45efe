package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/cargocheck/internal/filter"
	"github.com/erazemk/cargocheck/internal/model"
	"github.com/erazemk/cargocheck/internal/stats"
	"github.com/erazemk/cargocheck/internal/store"
)

// recentOnDashboard is how many records the dashboard lists.
const recentOnDashboard = 10

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	records, err := s.Records.List(r.Context())
	if err != nil {
		slog.Error("failed to list inspections for dashboard", "error", err)
	}
	pending, err := s.Records.Pending(r.Context())
	if err != nil {
		slog.Error("failed to list pending inspections for dashboard", "error", err)
	}

	recent := filter.Apply(records, "", model.CategoryAll, s.Now())
	if len(recent) > recentOnDashboard {
		recent = recent[:recentOnDashboard]
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Stats     model.DashboardStats
		Inspector []model.Breakdown
		Recent    []model.InspectionRecord
		Pending   int
		Digest    string
	}{
		PageData:  s.page(r, "Dashboard"),
		Stats:     stats.Summarize(records, s.Now()),
		Inspector: stats.InspectorActivity(records),
		Recent:    recent,
		Pending:   len(pending),
		Digest:    s.Renderer.Digest(records),
	})
}

// lastInspector returns the inspector to pre-fill on the entry form.
func (s *Server) lastInspector(r *http.Request) string {
	name, err := store.LastQualityInspector(r.Context(), s.Docs)
	if err != nil {
		slog.Error("failed to load last quality inspector", "error", err)
		return ""
	}
	return name
}
