// Package filter implements the list-view search and category filter.
package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/erazemk/cargocheck/internal/model"
)

// RecentWindow is the look-back period of the "recent" category.
const RecentWindow = 7 * 24 * time.Hour

// Apply returns the records matching query and category, most recent first.
// The input slice is not modified.
func Apply(records []model.InspectionRecord, query string, category model.Category, now time.Time) []model.InspectionRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	cutoff := now.Add(-RecentWindow)

	out := make([]model.InspectionRecord, 0, len(records))
	for _, r := range records {
		if matchesQuery(&r, q) && matchesCategory(&r, category, cutoff) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevantDate().After(out[j].RelevantDate())
	})
	return out
}

func matchesQuery(r *model.InspectionRecord, q string) bool {
	if q == "" {
		return true
	}
	for _, field := range []string{r.InvoiceNumber, r.MaterialType, r.QualityInspector, r.StorageLocation, r.Notes} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// matchesCategory reports whether r falls in category. The recent window
// includes its lower bound.
func matchesCategory(r *model.InspectionRecord, category model.Category, cutoff time.Time) bool {
	switch category {
	case model.CategoryCompliant:
		return !r.NonConforming
	case model.CategoryNonCompliant:
		return r.NonConforming
	case model.CategoryRecent:
		return !r.RelevantDate().Before(cutoff)
	case model.CategoryExported:
		return r.Exported
	case model.CategoryNotExported:
		return !r.Exported
	default:
		return true
	}
}
