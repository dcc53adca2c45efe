package store

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/model"
)

// ValidateFields checks the entry-form fields before anything is persisted.
func ValidateFields(f model.RecordFields) error {
	problems := map[string]string{}

	if strings.TrimSpace(f.InvoiceNumber) == "" {
		problems["invoiceNumber"] = "required"
	}
	if strings.TrimSpace(f.MaterialType) == "" {
		problems["materialType"] = "required"
	}
	if strings.TrimSpace(f.QualityInspector) == "" {
		problems["qualityInspector"] = "required"
	}
	if q := strings.TrimSpace(f.QuantityReceived); q != "" && !isQuantity(q) {
		problems["quantityReceived"] = "must be a non-negative number"
	}

	if f.NonConforming {
		switch t := strings.TrimSpace(f.NonConformanceType); {
		case t == "":
			problems["nonConformanceType"] = "required for non-conforming material"
		case !model.IsNonConformanceType(t):
			problems["nonConformanceType"] = "unknown type " + t
		}

		switch q := strings.TrimSpace(f.NonConformingQuantity); {
		case q == "":
			problems["nonConformingQuantity"] = "required for non-conforming material"
		case !isQuantity(q):
			problems["nonConformingQuantity"] = "must be a non-negative number"
		}
	}

	if len(problems) > 0 {
		return apperr.Validation(problems)
	}
	return nil
}

// isQuantity reports whether s is a non-negative decimal number.
func isQuantity(s string) bool {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return !d.IsNegative()
}

// normalizeFields trims free-text fields in place.
func normalizeFields(f *model.RecordFields) {
	f.InvoiceNumber = strings.TrimSpace(f.InvoiceNumber)
	f.MaterialType = strings.TrimSpace(f.MaterialType)
	f.QuantityReceived = strings.TrimSpace(f.QuantityReceived)
	f.StorageLocation = strings.TrimSpace(f.StorageLocation)
	f.QualityInspector = strings.TrimSpace(f.QualityInspector)
	f.SafetyInspector = strings.TrimSpace(f.SafetyInspector)
	f.LogisticsInspector = strings.TrimSpace(f.LogisticsInspector)
	f.NonConformanceType = strings.TrimSpace(f.NonConformanceType)
	f.NonConformingQuantity = strings.TrimSpace(f.NonConformingQuantity)
	f.Notes = strings.TrimSpace(f.Notes)
}
