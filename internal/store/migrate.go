package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/cargocheck/internal/model"
)

// SchemaVersion is the current version of the cargo_inspections document.
//
// Version 1 is a bare JSON array in the shape of the original backend: a
// required quantity, a single inspector, free-text non-conformance labels
// and naive timestamps. Version 2 wraps records in an envelope and adds the
// receive date, additional inspector roles and export state.
const SchemaVersion = 2

type inspectionsDocument struct {
	Version int                      `json:"version"`
	Records []model.InspectionRecord `json:"records"`
}

type legacyPhoto struct {
	ID        string  `json:"id"`
	Base64    *string `json:"base64"`
	Timestamp string  `json:"timestamp"`
	Width     *int    `json:"width"`
	Height    *int    `json:"height"`
}

type legacyRecord struct {
	ID                    string        `json:"id"`
	InvoiceNumber         string        `json:"invoiceNumber"`
	MaterialType          string        `json:"materialType"`
	QuantityReceived      string        `json:"quantityReceived"`
	QualityInspector      string        `json:"qualityInspector"`
	NonConforming         bool          `json:"nonConforming"`
	NonConformanceType    *string       `json:"nonConformanceType"`
	NonConformingQuantity *string       `json:"nonConformingQuantity"`
	Notes                 *string       `json:"notes"`
	Photos                []legacyPhoto `json:"photos"`
	InspectionDate        string        `json:"inspectionDate"`
	LastModified          string        `json:"lastModified"`
}

// decodeInspections parses a stored cargo_inspections document of any known
// version. migrated is true when the result must be written back.
func decodeInspections(data []byte) (records []model.InspectionRecord, migrated bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []model.InspectionRecord{}, false, nil
	}

	if trimmed[0] == '[' {
		var legacy []legacyRecord
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, false, fmt.Errorf("decoding version 1 inspections: %w", err)
		}
		return migrateV1(legacy), true, nil
	}

	var doc inspectionsDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, false, fmt.Errorf("decoding inspections: %w", err)
	}
	if doc.Version > SchemaVersion {
		return nil, false, fmt.Errorf("inspections document version %d is newer than supported version %d", doc.Version, SchemaVersion)
	}
	if doc.Records == nil {
		doc.Records = []model.InspectionRecord{}
	}
	for i := range doc.Records {
		if doc.Records[i].Photos == nil {
			doc.Records[i].Photos = []model.PhotoAttachment{}
		}
	}
	return doc.Records, doc.Version < SchemaVersion, nil
}

// DecodeInspections parses an inspections document of any known version,
// such as a backup of the collection or a legacy version 1 array.
func DecodeInspections(data []byte) ([]model.InspectionRecord, error) {
	records, _, err := decodeInspections(data)
	return records, err
}

func encodeInspections(records []model.InspectionRecord) ([]byte, error) {
	data, err := json.Marshal(inspectionsDocument{Version: SchemaVersion, Records: records})
	if err != nil {
		return nil, fmt.Errorf("encoding inspections: %w", err)
	}
	return data, nil
}

func migrateV1(legacy []legacyRecord) []model.InspectionRecord {
	out := make([]model.InspectionRecord, 0, len(legacy))
	for _, l := range legacy {
		r := model.InspectionRecord{
			ID:               l.ID,
			InvoiceNumber:    l.InvoiceNumber,
			MaterialType:     l.MaterialType,
			QuantityReceived: l.QuantityReceived,
			QualityInspector: l.QualityInspector,
			NonConforming:    l.NonConforming,
			Notes:            deref(l.Notes),
			InspectionDate:   parseLegacyTime(l.InspectionDate),
			LastModified:     parseLegacyTime(l.LastModified),
			Photos:           make([]model.PhotoAttachment, 0, len(l.Photos)),
		}
		if r.LastModified.IsZero() {
			r.LastModified = r.InspectionDate
		}
		if l.NonConforming {
			r.NonConformanceType = model.NormalizeNonConformanceType(deref(l.NonConformanceType))
			r.NonConformingQuantity = deref(l.NonConformingQuantity)
		}
		for _, p := range l.Photos {
			photo := model.PhotoAttachment{
				ID:        p.ID,
				Base64:    p.Base64,
				Timestamp: parseLegacyTime(p.Timestamp),
			}
			if p.Width != nil {
				photo.Width = *p.Width
			}
			if p.Height != nil {
				photo.Height = *p.Height
			}
			r.Photos = append(r.Photos, photo)
		}
		out = append(out, r)
	}
	return out
}

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseLegacyTime parses the timestamp formats written by older clients.
// Naive timestamps are taken as UTC. Unparseable input yields the zero time.
func parseLegacyTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if ms, ok := parseUnixMillis(s); ok {
		return ms
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseUnixMillis(s string) (time.Time, bool) {
	var ms int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
		ms = ms*10 + int64(c-'0')
	}
	return time.UnixMilli(ms).UTC(), true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
