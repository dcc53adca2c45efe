package stats

import (
	"math"
	"testing"
	"time"

	"github.com/erazemk/cargocheck/internal/model"
)

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestSummarizeScenario(t *testing.T) {
	records := []model.InspectionRecord{
		{ID: "1", MaterialType: "Steel", NonConforming: false, InspectionDate: now},
		{ID: "2", MaterialType: "Steel", NonConforming: true, NonConformanceType: "physicalDamage", InspectionDate: now},
	}

	s := Summarize(records, now)
	if s.TotalInspections != 2 || s.CompliantCount != 1 || s.NonCompliantCount != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.ComplianceRate != 50.0 {
		t.Errorf("expected compliance rate 50, got %v", s.ComplianceRate)
	}
	want := []model.Breakdown{{Name: "physicalDamage", Count: 1}}
	if len(s.NonConformanceTypeBreakdown) != 1 || s.NonConformanceTypeBreakdown[0] != want[0] {
		t.Errorf("expected %v, got %v", want, s.NonConformanceTypeBreakdown)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, now)
	if s.TotalInspections != 0 || s.ComplianceRate != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
	if s.NonConformanceTypeBreakdown == nil || s.MaterialTypeBreakdown == nil {
		t.Error("expected empty, non-nil breakdowns")
	}
}

func TestComplianceRate(t *testing.T) {
	tests := []struct {
		compliant, total int
		want             float64
	}{
		{0, 0, 0},
		{3, 3, 100},
		{1, 3, 100.0 / 3},
		{0, 4, 0},
	}
	for _, tt := range tests {
		got := ComplianceRate(tt.compliant, tt.total)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ComplianceRate(%d, %d) = %v, want %v", tt.compliant, tt.total, got, tt.want)
		}
	}
}

func TestRecentCountIsStrict(t *testing.T) {
	received := now.Add(-time.Hour)
	records := []model.InspectionRecord{
		{InspectionDate: now.Add(-RecentWindow)},
		{InspectionDate: now.Add(-RecentWindow + time.Second)},
		{InspectionDate: now.AddDate(0, 0, -30), ReceiveDate: &received},
	}
	if got := Summarize(records, now).RecentCount; got != 2 {
		t.Errorf("expected 2 recent, got %d", got)
	}
}

func TestBreakdownTopFiveWithStableTies(t *testing.T) {
	materials := []string{"A", "B", "C", "D", "E", "F", "B", "F", "F"}
	var records []model.InspectionRecord
	for _, m := range materials {
		records = append(records, model.InspectionRecord{MaterialType: m, InspectionDate: now})
	}

	got := Summarize(records, now).MaterialTypeBreakdown
	want := []model.Breakdown{
		{Name: "F", Count: 3}, {Name: "B", Count: 2}, {Name: "A", Count: 1}, {Name: "C", Count: 1}, {Name: "D", Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d buckets, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBreakdownsSkipMissingFields(t *testing.T) {
	records := []model.InspectionRecord{
		{NonConforming: true, QualityInspector: "Ana"},
		{NonConforming: true, NonConformanceType: "wrongQuantity", QualityInspector: "Ana"},
		{NonConforming: false, NonConformanceType: "stale", QualityInspector: ""},
	}

	nc := NonConformanceTypes(records)
	if len(nc) != 1 || nc[0].Name != "wrongQuantity" {
		t.Errorf("expected only wrongQuantity, got %v", nc)
	}

	activity := InspectorActivity(records)
	if len(activity) != 1 || activity[0] != (model.Breakdown{Name: "Ana", Count: 2}) {
		t.Errorf("unexpected inspector activity %v", activity)
	}
}
