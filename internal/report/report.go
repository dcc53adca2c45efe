// Package report renders inspection records as plain-text documents.
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/erazemk/cargocheck/internal/model"
	"github.com/erazemk/cargocheck/internal/stats"
)

// Placeholders rendered for empty values.
const (
	NotSpecified  = "Not specified"
	NoNotes       = "None"
	NoneRecorded  = "None recorded"
	DigestRecords = 5
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Renderer turns records into text. It performs no I/O.
type Renderer struct {
	// Now stamps the generation footer.
	Now func() time.Time
	// Label maps a canonical key (e.g. a non-conformance type) to display
	// text. Defaults to HumanizeKey.
	Label func(key string) string
}

// New returns a Renderer using the wall clock and HumanizeKey labels.
func New() *Renderer {
	return &Renderer{Now: time.Now, Label: HumanizeKey}
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Renderer) label(key string) string {
	if r.Label == nil {
		return HumanizeKey(key)
	}
	return r.Label(key)
}

// Record renders the individual report of one inspection.
func (r *Renderer) Record(rec *model.InspectionRecord) string {
	var b strings.Builder

	heading(&b, "CARGO INSPECTION REPORT", '=')
	b.WriteString("\n")

	heading(&b, "IDENTIFICATION", '-')
	line(&b, "Invoice Number", orPlaceholder(rec.InvoiceNumber))
	line(&b, "Material Type", orPlaceholder(rec.MaterialType))
	optionalLine(&b, "Quantity Received", rec.QuantityReceived)
	if rec.ReceiveDate != nil && !rec.ReceiveDate.IsZero() {
		line(&b, "Receive Date", rec.ReceiveDate.Format(dateLayout))
	} else {
		line(&b, "Receive Date", NotSpecified)
	}
	optionalLine(&b, "Storage Location", rec.StorageLocation)
	line(&b, "Inspection Date", formatTime(rec.InspectionDate))
	line(&b, "Last Modified", formatTime(rec.LastModified))
	b.WriteString("\n")

	heading(&b, "INSPECTORS", '-')
	line(&b, "Quality Inspector", orPlaceholder(rec.QualityInspector))
	optionalLine(&b, "Safety Inspector", rec.SafetyInspector)
	optionalLine(&b, "Logistics Inspector", rec.LogisticsInspector)
	b.WriteString("\n")

	heading(&b, "CONFORMANCE STATUS", '-')
	if rec.NonConforming {
		line(&b, "Status", "NON-CONFORMING")
		nc := NotSpecified
		if rec.NonConformanceType != "" {
			nc = r.label(rec.NonConformanceType)
		}
		line(&b, "Non-Conformance Type", nc)
		line(&b, "Non-Conforming Quantity", orPlaceholder(rec.NonConformingQuantity))
	} else {
		line(&b, "Status", "COMPLIANT")
	}
	b.WriteString("\n")

	heading(&b, "PHOTOS", '-')
	line(&b, "Photos Attached", fmt.Sprint(len(rec.Photos)))
	b.WriteString("\n")

	heading(&b, "NOTES", '-')
	if notes := strings.TrimSpace(rec.Notes); notes != "" {
		b.WriteString(notes + "\n")
	} else {
		b.WriteString(NoNotes + "\n")
	}
	b.WriteString("\n")

	r.footer(&b)
	return b.String()
}

// Summary renders the report covering every record of an export run.
func (r *Renderer) Summary(records []model.InspectionRecord, opts model.ExportOptions) string {
	var b strings.Builder
	now := r.now()

	compliant, nonCompliant := 0, 0
	for i := range records {
		if records[i].NonConforming {
			nonCompliant++
		} else {
			compliant++
		}
	}

	heading(&b, "CARGO INSPECTION SUMMARY REPORT", '=')
	b.WriteString("\n")

	heading(&b, "EXPORT", '-')
	line(&b, "Export Date", now.Format(dateTimeLayout))
	if opts.Scope.All {
		line(&b, "Scope", "All records")
	} else {
		line(&b, "Scope", fmt.Sprintf("Selected records (%d)", len(records)))
	}
	line(&b, "Photos Included", yesNo(opts.IncludePhotos))
	line(&b, "Format", layoutName(opts.Layout))
	b.WriteString("\n")

	heading(&b, "TOTALS", '-')
	line(&b, "Total Inspections", fmt.Sprint(len(records)))
	line(&b, "Compliant", fmt.Sprint(compliant))
	line(&b, "Non-Conforming", fmt.Sprint(nonCompliant))
	line(&b, "Compliance Rate", FormatRate(stats.ComplianceRate(compliant, len(records))))
	if total, ok := TotalQuantity(records); ok {
		line(&b, "Total Quantity Received", total.String())
	}
	b.WriteString("\n")

	heading(&b, "MATERIAL TYPES", '-')
	breakdown(&b, stats.MaterialTypes(records), nil)
	b.WriteString("\n")

	heading(&b, "INSPECTOR ACTIVITY", '-')
	breakdown(&b, stats.InspectorActivity(records), nil)
	b.WriteString("\n")

	heading(&b, "NON-CONFORMANCE TYPES", '-')
	breakdown(&b, stats.NonConformanceTypes(records), r.label)
	b.WriteString("\n")

	r.footer(&b)
	return b.String()
}

// Digest renders a short summary for a chat message: totals, compliance
// rate and one line for each of the first DigestRecords records.
func (r *Renderer) Digest(records []model.InspectionRecord) string {
	var b strings.Builder

	compliant := 0
	for i := range records {
		if !records[i].NonConforming {
			compliant++
		}
	}

	b.WriteString("Cargo Inspection Summary\n")
	fmt.Fprintf(&b, "Date: %s\n", r.now().Format(dateLayout))
	fmt.Fprintf(&b, "Total: %d | Compliant: %d | Non-conforming: %d\n", len(records), compliant, len(records)-compliant)
	fmt.Fprintf(&b, "Compliance rate: %s\n", FormatRate(stats.ComplianceRate(compliant, len(records))))

	if len(records) > 0 {
		b.WriteString("\n")
	}
	for i := range records {
		if i == DigestRecords {
			fmt.Fprintf(&b, "+%d more\n", len(records)-DigestRecords)
			break
		}
		rec := &records[i]
		status := "OK"
		if rec.NonConforming {
			status = "NON-CONFORMING"
			if rec.NonConformanceType != "" {
				status += " (" + r.label(rec.NonConformanceType) + ")"
			}
		}
		fmt.Fprintf(&b, "%d. %s - %s - %s\n", i+1, orPlaceholder(rec.InvoiceNumber), orPlaceholder(rec.MaterialType), status)
	}

	return b.String()
}

// FormatRate formats a percentage with one decimal place.
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate)
}

// TotalQuantity sums the numeric received quantities. ok is false when no
// record carries a quantity.
func TotalQuantity(records []model.InspectionRecord) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for i := range records {
		q := strings.TrimSpace(records[i].QuantityReceived)
		if q == "" {
			continue
		}
		d, err := decimal.NewFromString(q)
		if err != nil {
			continue
		}
		total = total.Add(d)
		found = true
	}
	return total, found
}

// HumanizeKey turns a camelCase key into title-cased words:
// "physicalDamage" becomes "Physical Damage".
func HumanizeKey(key string) string {
	if key == "" {
		return ""
	}
	var b strings.Builder
	for i, c := range key {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(c))
		case unicode.IsUpper(c):
			b.WriteRune(' ')
			b.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (r *Renderer) footer(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", 40) + "\n")
	fmt.Fprintf(b, "Generated: %s\n", r.now().Format("2006-01-02 15:04:05"))
}

func heading(b *strings.Builder, title string, underline rune) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat(string(underline), len(title)) + "\n")
}

func line(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "%s: %s\n", name, value)
}

func optionalLine(b *strings.Builder, name, value string) {
	if strings.TrimSpace(value) != "" {
		line(b, name, value)
	}
}

func breakdown(b *strings.Builder, buckets []model.Breakdown, label func(string) string) {
	if len(buckets) == 0 {
		b.WriteString(NoneRecorded + "\n")
		return
	}
	for _, bk := range buckets {
		name := bk.Name
		if label != nil {
			name = label(name)
		}
		line(b, name, fmt.Sprint(bk.Count))
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotSpecified
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return NotSpecified
	}
	return t.Format(dateTimeLayout)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func layoutName(l model.Layout) string {
	if l == model.LayoutFlat {
		return "Flat files"
	}
	return "Organized folders"
}
