package model

import "time"

// Layout is the output directory shape of an export run.
type Layout string

// Layouts.
const (
	LayoutOrganized Layout = "organized"
	LayoutFlat      Layout = "flat"
)

// SinkKind is the channel an export is dispatched through.
type SinkKind string

// Sinks.
const (
	SinkDevice    SinkKind = "device"
	SinkEmail     SinkKind = "email"
	SinkMessaging SinkKind = "messaging"
	SinkCloud     SinkKind = "cloud"
)

// ExportState is a step of the export state machine.
type ExportState string

// Export states.
const (
	ExportIdle        ExportState = "idle"
	ExportPreparing   ExportState = "preparing"
	ExportWriting     ExportState = "writing"
	ExportDispatching ExportState = "dispatching"
	ExportCompleted   ExportState = "completed"
	ExportFailed      ExportState = "failed"
)

// Scope selects the records of one export run: every record, or an explicit id list.
type Scope struct {
	All bool     `json:"all"`
	IDs []string `json:"ids,omitempty"`
}

// ExportOptions configures one export run.
type ExportOptions struct {
	Scope         Scope    `json:"scope"`
	Layout        Layout   `json:"layout"`
	IncludePhotos bool     `json:"includePhotos"`
	Sink          SinkKind `json:"sink"`

	// Provider names the cloud service for SinkCloud ("Google Drive", "Dropbox", ...).
	Provider string `json:"provider,omitempty"`
	// Recipient is the address pre-filled for SinkEmail, or the phone number for SinkMessaging.
	Recipient string `json:"recipient,omitempty"`
}

// ExportRun is the persisted outcome of a finished export run.
type ExportRun struct {
	ID          string      `json:"id"`
	State       ExportState `json:"state"`
	Sink        SinkKind    `json:"sink"`
	Layout      Layout      `json:"layout"`
	RecordCount int         `json:"recordCount"`
	OutputRoot  string      `json:"outputRoot"`
	Message     string      `json:"message,omitempty"`
	ErrorCode   string      `json:"errorCode,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	FinishedAt  time.Time   `json:"finishedAt"`
}
