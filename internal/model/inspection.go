package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InspectionRecord is one physical-material receiving event.
type InspectionRecord struct {
	ID                    string            `json:"id"`
	InvoiceNumber         string            `json:"invoiceNumber"`
	MaterialType          string            `json:"materialType"`
	QuantityReceived      string            `json:"quantityReceived,omitempty"`
	ReceiveDate           *time.Time        `json:"receiveDate,omitempty"`
	StorageLocation       string            `json:"storageLocation,omitempty"`
	QualityInspector      string            `json:"qualityInspector"`
	SafetyInspector       string            `json:"safetyInspector,omitempty"`
	LogisticsInspector    string            `json:"logisticsInspector,omitempty"`
	NonConforming         bool              `json:"nonConforming"`
	NonConformanceType    string            `json:"nonConformanceType,omitempty"`
	NonConformingQuantity string            `json:"nonConformingQuantity,omitempty"`
	Notes                 string            `json:"notes,omitempty"`
	Photos                []PhotoAttachment `json:"photos"`
	InspectionDate        time.Time         `json:"inspectionDate"`
	LastModified          time.Time         `json:"lastModified"`
	Exported              bool              `json:"exported"`
	ExportDate            *time.Time        `json:"exportDate,omitempty"`
}

// RelevantDate returns the receive date when set, otherwise the inspection date.
func (r *InspectionRecord) RelevantDate() time.Time {
	if r.ReceiveDate != nil && !r.ReceiveDate.IsZero() {
		return *r.ReceiveDate
	}
	return r.InspectionDate
}

// PhotoAttachment is a photo owned by exactly one InspectionRecord.
// Base64 is nil when capture failed; such photos are skipped on export.
type PhotoAttachment struct {
	ID        string    `json:"id"`
	Base64    *string   `json:"base64"`
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
}

// NewPhotoID returns a photo id made of the capture time in unix
// milliseconds and a random suffix, unique within a multi-select batch.
func NewPhotoID(at time.Time) string {
	return fmt.Sprintf("%d_%s", at.UnixMilli(), uuid.New().String()[:8])
}

// HasPayload reports whether the photo carries image data.
func (p *PhotoAttachment) HasPayload() bool {
	return p.Base64 != nil && *p.Base64 != ""
}

// RecordFields holds the user-editable fields of a record, as submitted by
// the entry form. Identity, lifecycle timestamps and export state are owned
// by the store and cannot be set through it.
type RecordFields struct {
	InvoiceNumber         string            `json:"invoiceNumber"`
	MaterialType          string            `json:"materialType"`
	QuantityReceived      string            `json:"quantityReceived"`
	ReceiveDate           *time.Time        `json:"receiveDate"`
	StorageLocation       string            `json:"storageLocation"`
	QualityInspector      string            `json:"qualityInspector"`
	SafetyInspector       string            `json:"safetyInspector"`
	LogisticsInspector    string            `json:"logisticsInspector"`
	NonConforming         bool              `json:"nonConforming"`
	NonConformanceType    string            `json:"nonConformanceType"`
	NonConformingQuantity string            `json:"nonConformingQuantity"`
	Notes                 string            `json:"notes"`
	Photos                []PhotoAttachment `json:"photos"`
}

// Fields extracts the editable fields of a record.
func (r *InspectionRecord) Fields() RecordFields {
	return RecordFields{
		InvoiceNumber:         r.InvoiceNumber,
		MaterialType:          r.MaterialType,
		QuantityReceived:      r.QuantityReceived,
		ReceiveDate:           r.ReceiveDate,
		StorageLocation:       r.StorageLocation,
		QualityInspector:      r.QualityInspector,
		SafetyInspector:       r.SafetyInspector,
		LogisticsInspector:    r.LogisticsInspector,
		NonConforming:         r.NonConforming,
		NonConformanceType:    r.NonConformanceType,
		NonConformingQuantity: r.NonConformingQuantity,
		Notes:                 r.Notes,
		Photos:                r.Photos,
	}
}

// Apply copies the editable fields onto the record. Non-conformance detail is
// cleared when the record is conforming.
func (r *InspectionRecord) Apply(f RecordFields) {
	r.InvoiceNumber = f.InvoiceNumber
	r.MaterialType = f.MaterialType
	r.QuantityReceived = f.QuantityReceived
	r.ReceiveDate = f.ReceiveDate
	r.StorageLocation = f.StorageLocation
	r.QualityInspector = f.QualityInspector
	r.SafetyInspector = f.SafetyInspector
	r.LogisticsInspector = f.LogisticsInspector
	r.NonConforming = f.NonConforming
	r.NonConformanceType = ""
	r.NonConformingQuantity = ""
	if f.NonConforming {
		r.NonConformanceType = f.NonConformanceType
		r.NonConformingQuantity = f.NonConformingQuantity
	}
	r.Notes = f.Notes
	r.Photos = f.Photos
	if r.Photos == nil {
		r.Photos = []PhotoAttachment{}
	}
}

// PendingSyncEntry mirrors a record that has not yet left the device.
type PendingSyncEntry struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	SyncAction    SyncAction `json:"syncAction"`
	SyncTimestamp time.Time  `json:"syncTimestamp"`
}

// Breakdown is one "name: count" bucket of an aggregate.
type Breakdown struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DashboardStats is the aggregate view shown on the dashboard.
type DashboardStats struct {
	TotalInspections            int         `json:"totalInspections"`
	CompliantCount              int         `json:"compliantCount"`
	NonCompliantCount           int         `json:"nonCompliantCount"`
	ComplianceRate              float64     `json:"complianceRate"`
	RecentCount                 int         `json:"recentCount"`
	NonConformanceTypeBreakdown []Breakdown `json:"nonConformanceTypes"`
	MaterialTypeBreakdown       []Breakdown `json:"materialTypes"`
}
