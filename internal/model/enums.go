package model

import "strings"

// SyncAction is the mutation that put a record into the pending-sync index.
type SyncAction string

// Sync actions.
const (
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
)

// Category is a list-view filter bucket.
type Category string

// Categories.
const (
	CategoryAll          Category = "all"
	CategoryCompliant    Category = "compliant"
	CategoryNonCompliant Category = "non-compliant"
	CategoryRecent       Category = "recent"
	CategoryExported     Category = "exported"
	CategoryNotExported  Category = "not-exported"
)

// ParseCategory returns the category for s. Empty input means CategoryAll.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CategoryAll, true
	case CategoryAll, CategoryCompliant, CategoryNonCompliant, CategoryRecent, CategoryExported, CategoryNotExported:
		return c, true
	default:
		return "", false
	}
}

// Non-conformance type keys. Stored and compared canonically; display text is
// the presentation layer's concern.
const (
	NonConformancePhysicalDamage       = "physicalDamage"
	NonConformanceWrongQuantity        = "wrongQuantity"
	NonConformanceWrongMaterial        = "wrongMaterial"
	NonConformanceQualityDefect        = "qualityDefect"
	NonConformanceMissingDocumentation = "missingDocumentation"
	NonConformancePackagingDamage      = "packagingDamage"
	NonConformanceContamination        = "contamination"
	NonConformanceExpired              = "expired"
	NonConformanceOther                = "other"
)

// NonConformanceTypes lists the known non-conformance keys in display order.
var NonConformanceTypes = []string{
	NonConformancePhysicalDamage,
	NonConformanceWrongQuantity,
	NonConformanceWrongMaterial,
	NonConformanceQualityDefect,
	NonConformanceMissingDocumentation,
	NonConformancePackagingDamage,
	NonConformanceContamination,
	NonConformanceExpired,
	NonConformanceOther,
}

// IsNonConformanceType reports whether key is a known non-conformance type.
func IsNonConformanceType(key string) bool {
	for _, k := range NonConformanceTypes {
		if k == key {
			return true
		}
	}
	return false
}

// NormalizeNonConformanceType maps a free-text label from older records
// ("Physical Damage", "physical_damage") onto a canonical key. Unknown
// non-empty labels map to NonConformanceOther.
func NormalizeNonConformanceType(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	if IsNonConformanceType(label) {
		return label
	}
	squashed := strings.Map(func(r rune) rune {
		if r == ' ' || r == '_' || r == '-' {
			return -1
		}
		return r
	}, strings.ToLower(label))
	for _, k := range NonConformanceTypes {
		if strings.ToLower(k) == squashed {
			return k
		}
	}
	return NonConformanceOther
}
