package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/db"
	"github.com/erazemk/cargocheck/internal/model"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*RecordStore, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	n := 0
	s := NewRecordStore(&SQLiteDocuments{DB: db.NewTestDB(t)},
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("rec-%d", n) }),
	)
	return s, clock
}

func validFields() model.RecordFields {
	return model.RecordFields{
		InvoiceNumber:    "ACME-001",
		MaterialType:     "Steel Pipes",
		QuantityReceived: "500",
		QualityInspector: "Ana Novak",
	}
}

func TestCreateAndGetInspection(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, validFields())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != "rec-1" {
		t.Errorf("expected id rec-1, got %q", rec.ID)
	}
	if !rec.InspectionDate.Equal(clock.t) || !rec.LastModified.Equal(clock.t) {
		t.Errorf("expected timestamps %v, got %v / %v", clock.t, rec.InspectionDate, rec.LastModified)
	}
	if rec.Exported {
		t.Error("new records must not be exported")
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.InvoiceNumber != "ACME-001" {
		t.Errorf("expected invoice ACME-001, got %q", got.InvoiceNumber)
	}

	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != rec.ID || pending[0].SyncAction != model.SyncActionCreate {
		t.Errorf("expected one pending create for %s, got %+v", rec.ID, pending)
	}

	last, _ := LastQualityInspector(ctx, s.docs)
	if last != "Ana Novak" {
		t.Errorf("expected last inspector to be remembered, got %q", last)
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.RecordFields)
		wantErr bool
	}{
		{"valid", func(*model.RecordFields) {}, false},
		{"missing quality inspector", func(f *model.RecordFields) { f.QualityInspector = "" }, true},
		{"blank quality inspector", func(f *model.RecordFields) { f.QualityInspector = "   " }, true},
		{"missing invoice", func(f *model.RecordFields) { f.InvoiceNumber = "" }, true},
		{"missing material", func(f *model.RecordFields) { f.MaterialType = "" }, true},
		{"optional quantity empty", func(f *model.RecordFields) { f.QuantityReceived = "" }, false},
		{"quantity not numeric", func(f *model.RecordFields) { f.QuantityReceived = "lots" }, true},
		{"non-conforming without type", func(f *model.RecordFields) {
			f.NonConforming = true
			f.NonConformingQuantity = "3"
		}, true},
		{"non-conforming without quantity", func(f *model.RecordFields) {
			f.NonConforming = true
			f.NonConformanceType = model.NonConformancePhysicalDamage
		}, true},
		{"non-conforming quantity not numeric", func(f *model.RecordFields) {
			f.NonConforming = true
			f.NonConformanceType = model.NonConformancePhysicalDamage
			f.NonConformingQuantity = "three"
		}, true},
		{"non-conforming complete, optionals empty", func(f *model.RecordFields) {
			f.QuantityReceived = ""
			f.NonConforming = true
			f.NonConformanceType = model.NonConformancePhysicalDamage
			f.NonConformingQuantity = "2.5"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			ctx := context.Background()

			f := validFields()
			tt.mutate(&f)
			_, err := s.Create(ctx, f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !apperr.Is(err, apperr.CodeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}

			all, _ := s.List(ctx)
			wantLen := 1
			if tt.wantErr {
				wantLen = 0
			}
			if len(all) != wantLen {
				t.Errorf("expected %d records, got %d", wantLen, len(all))
			}
		})
	}
}

func TestUpdatePreservesInspectionDateAndExported(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	rec, _ := s.Create(ctx, validFields())
	created := rec.InspectionDate
	if err := s.MarkExported(ctx, []string{rec.ID}); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}

	clock.Advance(2 * time.Hour)
	f := validFields()
	f.Notes = "re-checked"
	updated, err := s.Update(ctx, rec.ID, f)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.InspectionDate.Equal(created) {
		t.Errorf("inspection date changed: %v -> %v", created, updated.InspectionDate)
	}
	if !updated.Exported {
		t.Error("export flag was reset by update")
	}
	if !updated.LastModified.Equal(clock.t) {
		t.Errorf("expected lastModified %v, got %v", clock.t, updated.LastModified)
	}
	if updated.Notes != "re-checked" {
		t.Errorf("expected notes updated, got %q", updated.Notes)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Update(context.Background(), "missing", validFields())
	if !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdateValidationLeavesRecordUnchanged(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec, _ := s.Create(ctx, validFields())
	f := validFields()
	f.MaterialType = ""
	if _, err := s.Update(ctx, rec.ID, f); !apperr.Is(err, apperr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, _ := s.Get(ctx, rec.ID)
	if got.MaterialType != "Steel Pipes" {
		t.Errorf("record changed after failed update: %q", got.MaterialType)
	}
}

func TestDeleteInspection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec, _ := s.Create(ctx, validFields())
	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, _ := s.List(ctx)
	if len(all) != 0 {
		t.Errorf("expected 0 records after delete, got %d", len(all))
	}
	pending, _ := s.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("expected pending entry removed, got %+v", pending)
	}

	if err := s.Delete(ctx, rec.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestMarkExportedSkipsUnknownIDs(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, validFields())
	b, _ := s.Create(ctx, validFields())

	clock.Advance(time.Hour)
	if err := s.MarkExported(ctx, []string{a.ID, "ghost"}); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}

	gotA, _ := s.Get(ctx, a.ID)
	if !gotA.Exported || gotA.ExportDate == nil || !gotA.ExportDate.Equal(clock.t) {
		t.Errorf("expected %s exported at %v, got %+v", a.ID, clock.t, gotA)
	}
	gotB, _ := s.Get(ctx, b.ID)
	if gotB.Exported {
		t.Errorf("did not expect %s exported", b.ID)
	}

	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Errorf("expected only %s pending, got %+v", b.ID, pending)
	}
}

func TestPendingStaysCreateUntilExported(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec, _ := s.Create(ctx, validFields())
	s.Update(ctx, rec.ID, validFields())

	pending, _ := s.Pending(ctx)
	if len(pending) != 1 || pending[0].SyncAction != model.SyncActionCreate {
		t.Fatalf("expected a single create entry, got %+v", pending)
	}

	s.MarkExported(ctx, []string{rec.ID})
	s.Update(ctx, rec.ID, validFields())

	pending, _ = s.Pending(ctx)
	if len(pending) != 1 || pending[0].SyncAction != model.SyncActionUpdate {
		t.Errorf("expected an update entry after export, got %+v", pending)
	}
}

func TestImportUpserts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	existing, _ := s.Create(ctx, validFields())
	changed := *existing
	changed.Notes = "from another device"
	changed.InspectionDate = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

	incoming := []model.InspectionRecord{
		changed,
		{ID: "ext-1", InvoiceNumber: "INV-9", MaterialType: "Cement", QualityInspector: "Bor"},
		{ID: "ext-2", InvoiceNumber: "INV-10", MaterialType: "Cement"},
	}

	result, err := s.Import(ctx, incoming)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 || len(result.Skipped) != 1 || result.Skipped[0] != "ext-2" {
		t.Errorf("unexpected import result %+v", result)
	}

	got, _ := s.Get(ctx, existing.ID)
	if got.Notes != "from another device" {
		t.Errorf("expected notes replaced, got %q", got.Notes)
	}
	if !got.InspectionDate.Equal(existing.InspectionDate) {
		t.Errorf("import must keep the stored inspection date")
	}
	if _, err := s.Get(ctx, "ext-1"); err != nil {
		t.Errorf("expected ext-1 imported: %v", err)
	}
}

func TestImportNormalizesNonConformanceLabels(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	incoming := []model.InspectionRecord{
		{
			ID: "ext-1", InvoiceNumber: "INV-9", MaterialType: "Cement", QualityInspector: "Bor",
			NonConforming: true, NonConformanceType: "Physical Damage", NonConformingQuantity: "3",
		},
		{
			ID: "ext-2", InvoiceNumber: "INV-10", MaterialType: "Cement", QualityInspector: "Bor",
			NonConforming: true, NonConformanceType: "rusted through", NonConformingQuantity: "1",
		},
	}

	result, err := s.Import(ctx, incoming)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Created != 2 || len(result.Skipped) != 0 {
		t.Fatalf("expected both records created, got %+v", result)
	}
	for id, want := range map[string]string{
		"ext-1": model.NonConformancePhysicalDamage,
		"ext-2": model.NonConformanceOther,
	} {
		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if got.NonConformanceType != want {
			t.Errorf("%s: expected type %q, got %q", id, want, got.NonConformanceType)
		}
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	database, path := db.NewTestFileDB(t)
	ctx := context.Background()

	s := NewRecordStore(&SQLiteDocuments{DB: database})
	rec, err := s.Create(ctx, validFields())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	database.Close()

	reopened, err := db.Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	got, err := NewRecordStore(&SQLiteDocuments{DB: reopened}).Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.QualityInspector != "Ana Novak" {
		t.Errorf("expected inspector to persist, got %q", got.QualityInspector)
	}
}
