package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/cargocheck/internal/model"
)

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newRenderer() *Renderer {
	return &Renderer{Now: func() time.Time { return fixedNow }}
}

func TestRecordCompliantOmitsNonConformance(t *testing.T) {
	rec := &model.InspectionRecord{
		InvoiceNumber:    "INV-1",
		MaterialType:     "Steel",
		QualityInspector: "Ana",
		InspectionDate:   fixedNow,
	}

	out := newRenderer().Record(rec)

	for _, want := range []string{
		"Invoice Number: INV-1",
		"Material Type: Steel",
		"Quality Inspector: Ana",
		"Status: COMPLIANT",
		"Photos Attached: 0",
		"NOTES\n-----\nNone\n",
		"Receive Date: " + NotSpecified,
		"Generated: 2025-06-10 12:00:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
	for _, absent := range []string{"Non-Conformance Type", "Safety Inspector", "Storage Location", "Quantity Received"} {
		if strings.Contains(out, absent) {
			t.Errorf("expected output to omit %q", absent)
		}
	}
}

func TestRecordNonConforming(t *testing.T) {
	photo := "aGk="
	rec := &model.InspectionRecord{
		InvoiceNumber:         "INV-2",
		MaterialType:          "Glass",
		QuantityReceived:      "40",
		StorageLocation:       "Bay 4",
		QualityInspector:      "Ana",
		SafetyInspector:       "Bor",
		NonConforming:         true,
		NonConformanceType:    model.NonConformancePhysicalDamage,
		NonConformingQuantity: "3",
		Notes:                 "cracked pallet",
		Photos:                []model.PhotoAttachment{{ID: "p1", Base64: &photo}, {ID: "p2"}},
		InspectionDate:        fixedNow,
	}

	out := newRenderer().Record(rec)

	for _, want := range []string{
		"Status: NON-CONFORMING",
		"Non-Conformance Type: Physical Damage",
		"Non-Conforming Quantity: 3",
		"Quantity Received: 40",
		"Storage Location: Bay 4",
		"Safety Inspector: Bor",
		"Photos Attached: 2",
		"cracked pallet",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Logistics Inspector") {
		t.Error("expected empty logistics inspector to be omitted")
	}
}

func TestSummary(t *testing.T) {
	records := []model.InspectionRecord{
		{InvoiceNumber: "A", MaterialType: "Steel", QualityInspector: "Ana", QuantityReceived: "10.5"},
		{InvoiceNumber: "B", MaterialType: "Steel", QualityInspector: "Bor", QuantityReceived: "4.5"},
		{InvoiceNumber: "C", MaterialType: "Glass", QualityInspector: "Ana", NonConforming: true, NonConformanceType: model.NonConformanceContamination},
	}
	opts := model.ExportOptions{Scope: model.Scope{All: true}, IncludePhotos: true, Layout: model.LayoutOrganized}

	out := newRenderer().Summary(records, opts)

	for _, want := range []string{
		"Scope: All records",
		"Photos Included: Yes",
		"Format: Organized folders",
		"Total Inspections: 3",
		"Compliant: 2",
		"Non-Conforming: 1",
		"Compliance Rate: 66.7%",
		"Total Quantity Received: 15",
		"Steel: 2",
		"Glass: 1",
		"Ana: 2",
		"Contamination: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
}

func TestSummaryNoNonConformance(t *testing.T) {
	records := []model.InspectionRecord{{InvoiceNumber: "A", MaterialType: "Steel"}}
	opts := model.ExportOptions{Scope: model.Scope{IDs: []string{"a"}}, Layout: model.LayoutFlat}

	out := newRenderer().Summary(records, opts)

	for _, want := range []string{
		"Scope: Selected records (1)",
		"Photos Included: No",
		"Format: Flat files",
		"Compliance Rate: 100.0%",
		"NON-CONFORMANCE TYPES\n---------------------\n" + NoneRecorded,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Total Quantity Received") {
		t.Error("expected quantity total to be omitted without quantities")
	}
}

func TestDigestTruncates(t *testing.T) {
	var records []model.InspectionRecord
	for i := range 7 {
		records = append(records, model.InspectionRecord{
			InvoiceNumber: fmt.Sprintf("INV-%d", i+1),
			MaterialType:  "Steel",
			NonConforming: i == 1,
		})
	}

	out := newRenderer().Digest(records)

	if !strings.Contains(out, "Total: 7 | Compliant: 6 | Non-conforming: 1") {
		t.Errorf("unexpected totals\n%s", out)
	}
	if !strings.Contains(out, "2. INV-2 - Steel - NON-CONFORMING") {
		t.Errorf("expected non-conforming status line\n%s", out)
	}
	if !strings.Contains(out, "5. INV-5") || strings.Contains(out, "6. INV-6") {
		t.Errorf("expected exactly five record lines\n%s", out)
	}
	if !strings.HasSuffix(out, "+2 more\n") {
		t.Errorf("expected +2 more suffix\n%s", out)
	}
}

func TestDigestEmpty(t *testing.T) {
	out := newRenderer().Digest(nil)
	if !strings.Contains(out, "Compliance rate: 0.0%") {
		t.Errorf("unexpected digest\n%s", out)
	}
	if strings.Contains(out, "more") {
		t.Error("expected no overflow line")
	}
}

func TestHumanizeKey(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"other":                "Other",
		"physicalDamage":       "Physical Damage",
		"missingDocumentation": "Missing Documentation",
	}
	for in, want := range tests {
		if got := HumanizeKey(in); got != want {
			t.Errorf("HumanizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteRegister(t *testing.T) {
	records := []model.InspectionRecord{
		{InvoiceNumber: "INV-1", MaterialType: "Steel", QualityInspector: "Ana", InspectionDate: fixedNow},
		{InvoiceNumber: "INV-2", MaterialType: "Glass", NonConforming: true, NonConformanceType: model.NonConformanceExpired, InspectionDate: fixedNow},
	}

	var buf bytes.Buffer
	if err := newRenderer().WriteRegister(&buf, records); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("opening register: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(RegisterSheet)
	if err != nil {
		t.Fatalf("reading rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Invoice Number" || rows[2][0] != "INV-2" {
		t.Errorf("unexpected rows %v", rows)
	}
	if rows[2][8] != "Non-conforming" || rows[2][9] != "Expired" {
		t.Errorf("unexpected status columns %v", rows[2])
	}
}
