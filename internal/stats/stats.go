// Package stats computes the dashboard and export-summary aggregates.
package stats

import (
	"sort"
	"time"

	"github.com/erazemk/cargocheck/internal/model"
)

// TopN is the number of buckets kept in dashboard breakdowns.
const TopN = 5

// RecentWindow is the look-back period of the recent count.
const RecentWindow = 7 * 24 * time.Hour

// Summarize computes dashboard statistics over records.
func Summarize(records []model.InspectionRecord, now time.Time) model.DashboardStats {
	s := model.DashboardStats{TotalInspections: len(records)}
	cutoff := now.Add(-RecentWindow)

	for i := range records {
		if records[i].NonConforming {
			s.NonCompliantCount++
		} else {
			s.CompliantCount++
		}
		if records[i].RelevantDate().After(cutoff) {
			s.RecentCount++
		}
	}
	s.ComplianceRate = ComplianceRate(s.CompliantCount, s.TotalInspections)

	s.NonConformanceTypeBreakdown = top(countBy(records, func(r *model.InspectionRecord) string {
		if !r.NonConforming {
			return ""
		}
		return r.NonConformanceType
	}), TopN)
	s.MaterialTypeBreakdown = top(countBy(records, func(r *model.InspectionRecord) string {
		return r.MaterialType
	}), TopN)

	return s
}

// ComplianceRate returns compliant/total as a percentage, or 0 when total is 0.
func ComplianceRate(compliant, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(compliant) / float64(total) * 100
}

// InspectorActivity counts records per quality inspector, busiest first.
func InspectorActivity(records []model.InspectionRecord) []model.Breakdown {
	return top(countBy(records, func(r *model.InspectionRecord) string {
		return r.QualityInspector
	}), 0)
}

// MaterialTypes counts records per material type, most frequent first.
func MaterialTypes(records []model.InspectionRecord) []model.Breakdown {
	return top(countBy(records, func(r *model.InspectionRecord) string {
		return r.MaterialType
	}), 0)
}

// NonConformanceTypes counts non-conforming records per type, most frequent first.
func NonConformanceTypes(records []model.InspectionRecord) []model.Breakdown {
	return top(countBy(records, func(r *model.InspectionRecord) string {
		if !r.NonConforming {
			return ""
		}
		return r.NonConformanceType
	}), 0)
}

// countBy groups records by key in first-seen order. Empty keys are skipped.
func countBy(records []model.InspectionRecord, key func(*model.InspectionRecord) string) []model.Breakdown {
	index := map[string]int{}
	var buckets []model.Breakdown
	for i := range records {
		k := key(&records[i])
		if k == "" {
			continue
		}
		if at, ok := index[k]; ok {
			buckets[at].Count++
			continue
		}
		index[k] = len(buckets)
		buckets = append(buckets, model.Breakdown{Name: k, Count: 1})
	}
	return buckets
}

// top sorts buckets by descending count, keeping first-seen order on ties,
// and truncates to n (0 keeps all).
func top(buckets []model.Breakdown, n int) []model.Breakdown {
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})
	if n > 0 && len(buckets) > n {
		buckets = buckets[:n]
	}
	if buckets == nil {
		buckets = []model.Breakdown{}
	}
	return buckets
}
