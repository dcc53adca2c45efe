package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/model"
)

// RecordStore is the durable collection of inspection records.
//
// Every mutation reads the whole collection, changes it and writes it back
// together with the pending-sync index as one unit. Mutations are serialised
// by mu; the last writer wins.
type RecordStore struct {
	docs  Documents
	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the record id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *RecordStore) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewRecordStore creates a RecordStore backed by docs.
func NewRecordStore(docs Documents, opts ...Option) *RecordStore {
	s := &RecordStore{
		docs:  docs,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates fields and appends a new record.
func (s *RecordStore) Create(ctx context.Context, f model.RecordFields) (*model.InspectionRecord, error) {
	normalizeFields(&f)
	if err := ValidateFields(f); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := loadPending(ctx, s.docs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := model.InspectionRecord{
		ID:             s.newID(),
		InspectionDate: now,
		LastModified:   now,
	}
	rec.Apply(f)
	assignPhotoIDs(rec.Photos, now)

	records = append(records, rec)
	pending = upsertPending(pending, rec, model.SyncActionCreate, now)

	if err := s.save(ctx, records, pending,
		Document{Key: KeyLastQualityInspector, Value: []byte(rec.QualityInspector)},
	); err != nil {
		return nil, err
	}

	slog.Info("inspection created", "record_id", rec.ID, "invoice", rec.InvoiceNumber)
	return &rec, nil
}

// Update replaces the editable fields of the record id. The inspection date
// and export state of the stored record are kept.
func (s *RecordStore) Update(ctx context.Context, id string, f model.RecordFields) (*model.InspectionRecord, error) {
	normalizeFields(&f)
	if err := ValidateFields(f); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return nil, apperr.NotFound(id)
	}
	pending, err := loadPending(ctx, s.docs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := records[idx]
	rec.Apply(f)
	rec.LastModified = now
	assignPhotoIDs(rec.Photos, now)
	records[idx] = rec

	pending = upsertPending(pending, rec, model.SyncActionUpdate, now)

	if err := s.save(ctx, records, pending); err != nil {
		return nil, err
	}

	slog.Info("inspection updated", "record_id", rec.ID, "invoice", rec.InvoiceNumber)
	return &rec, nil
}

// Delete removes the record id. Deleting an unknown id is an error: deletes
// are always confirmed against a displayed record.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return apperr.NotFound(id)
	}
	pending, err := loadPending(ctx, s.docs)
	if err != nil {
		return err
	}

	records = append(records[:idx], records[idx+1:]...)
	pending = removePending(pending, map[string]bool{id: true})

	if err := s.save(ctx, records, pending); err != nil {
		return err
	}

	slog.Info("inspection deleted", "record_id", id)
	return nil
}

// Get returns the record id.
func (s *RecordStore) Get(ctx context.Context, id string) (*model.InspectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return nil, apperr.NotFound(id)
	}
	rec := records[idx]
	return &rec, nil
}

// List returns every record. Callers must not rely on the order.
func (s *RecordStore) List(ctx context.Context) ([]model.InspectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// MarkExported flags the given records as exported and drops them from the
// pending-sync index. Unknown ids are skipped.
func (s *RecordStore) MarkExported(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	pending, err := loadPending(ctx, s.docs)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	now := s.now().UTC()
	marked := 0
	for i := range records {
		if want[records[i].ID] {
			records[i].Exported = true
			exportDate := now
			records[i].ExportDate = &exportDate
			marked++
		}
	}
	pending = removePending(pending, want)

	if err := s.save(ctx, records, pending); err != nil {
		return err
	}

	if skipped := len(want) - marked; skipped > 0 {
		slog.Warn("export marked fewer records than requested", "marked", marked, "skipped", skipped)
	}
	return nil
}

// Pending returns the pending-sync index.
func (s *RecordStore) Pending(ctx context.Context) ([]model.PendingSyncEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return loadPending(ctx, s.docs)
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}

// Import upserts whole records by id, as sent by another device or an older
// client. Records failing validation are skipped and reported by id. Existing
// records keep their inspection date and export state.
func (s *RecordStore) Import(ctx context.Context, incoming []model.InspectionRecord) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := loadPending(ctx, s.docs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &ImportResult{}
	for _, in := range incoming {
		f := in.Fields()
		normalizeFields(&f)
		// Records from other devices may still carry display labels.
		f.NonConformanceType = model.NormalizeNonConformanceType(f.NonConformanceType)
		if err := ValidateFields(f); err != nil {
			result.Skipped = append(result.Skipped, in.ID)
			slog.Warn("skipping invalid imported inspection", "record_id", in.ID, "error", err)
			continue
		}

		if idx := indexOf(records, in.ID); in.ID != "" && idx >= 0 {
			rec := records[idx]
			rec.Apply(f)
			rec.LastModified = now
			assignPhotoIDs(rec.Photos, now)
			records[idx] = rec
			pending = upsertPending(pending, rec, model.SyncActionUpdate, now)
			result.Updated++
			continue
		}

		rec := model.InspectionRecord{ID: in.ID, InspectionDate: in.InspectionDate, LastModified: now}
		if rec.ID == "" {
			rec.ID = s.newID()
		}
		if rec.InspectionDate.IsZero() {
			rec.InspectionDate = now
		}
		rec.Apply(f)
		assignPhotoIDs(rec.Photos, now)
		records = append(records, rec)
		pending = upsertPending(pending, rec, model.SyncActionCreate, now)
		result.Created++
	}

	if result.Created+result.Updated > 0 {
		if err := s.save(ctx, records, pending); err != nil {
			return nil, err
		}
	}

	slog.Info("inspections imported", "created", result.Created, "updated", result.Updated, "skipped", len(result.Skipped))
	return result, nil
}

// load reads the collection, migrating and rewriting older documents.
func (s *RecordStore) load(ctx context.Context) ([]model.InspectionRecord, error) {
	data, err := s.docs.Get(ctx, KeyInspections)
	if err != nil {
		return nil, fmt.Errorf("loading inspections: %w", err)
	}
	records, migrated, err := decodeInspections(data)
	if err != nil {
		return nil, err
	}
	if migrated {
		encoded, err := encodeInspections(records)
		if err != nil {
			return nil, err
		}
		if err := s.docs.Put(ctx, Document{Key: KeyInspections, Value: encoded}); err != nil {
			return nil, fmt.Errorf("saving migrated inspections: %w", err)
		}
		slog.Info("inspections migrated", "version", SchemaVersion, "records", len(records))
	}
	return records, nil
}

// save writes the collection and pending index, plus any extra documents, at once.
func (s *RecordStore) save(ctx context.Context, records []model.InspectionRecord, pending []model.PendingSyncEntry, extra ...Document) error {
	encoded, err := encodeInspections(records)
	if err != nil {
		return err
	}
	pendingData, err := encodePending(pending)
	if err != nil {
		return err
	}

	docs := append([]Document{
		{Key: KeyInspections, Value: encoded},
		{Key: KeyPendingSync, Value: pendingData},
	}, extra...)
	if err := s.docs.Put(ctx, docs...); err != nil {
		if apperr.DiskFull(err) {
			return apperr.StorageFull(err)
		}
		return fmt.Errorf("saving inspections: %w", err)
	}
	return nil
}

func indexOf(records []model.InspectionRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// assignPhotoIDs gives photos without an id one derived from now.
func assignPhotoIDs(photos []model.PhotoAttachment, now time.Time) {
	for i := range photos {
		if photos[i].ID == "" {
			photos[i].ID = model.NewPhotoID(now)
		}
		if photos[i].Timestamp.IsZero() {
			photos[i].Timestamp = now
		}
	}
}
