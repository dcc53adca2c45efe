// Package export writes inspection reports to disk and dispatches them
// through a sink (device share, email, messaging link or cloud upload).
//
// A run moves through Idle -> Preparing -> Writing -> Dispatching and ends
// Completed or Failed. Records are marked exported only after a dispatch
// succeeds; files written before a failure are left in place.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/filter"
	"github.com/erazemk/cargocheck/internal/model"
	"github.com/erazemk/cargocheck/internal/report"
)

// WritingShare is the fraction of progress reported once all records are written.
const WritingShare = 0.9

// DefaultAttachmentLimit caps individual reports attached to an email.
const DefaultAttachmentLimit = 10

// Output root timestamp formats.
const (
	DateStamp = "20060102"
	FullStamp = "20060102_150405"
)

// Records is the record store as seen by the orchestrator.
type Records interface {
	List(ctx context.Context) ([]model.InspectionRecord, error)
	MarkExported(ctx context.Context, ids []string) error
}

// History persists finished runs.
type History interface {
	RecordRun(ctx context.Context, run model.ExportRun) error
}

// Progress is one state or progress change of a run.
type Progress struct {
	RunID    string            `json:"runId"`
	State    model.ExportState `json:"state"`
	Fraction float64           `json:"fraction"`
	Message  string            `json:"message,omitempty"`
}

// Result describes a finished run.
type Result struct {
	Run model.ExportRun `json:"run"`
	// Root is the output root on the export filesystem.
	Root  string   `json:"root"`
	Files []string `json:"files"`
	// SkippedPhotos counts photos left out because they could not be written.
	SkippedPhotos int `json:"skippedPhotos"`

	ShareURL     string `json:"shareUrl,omitempty"`
	MessageURL   string `json:"messageUrl,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	// BodyOnly is set when an email was sent without its attachments.
	BodyOnly bool `json:"bodyOnly,omitempty"`
}

// Orchestrator runs exports. Only one run may be in flight at a time.
type Orchestrator struct {
	records Records
	fs      afero.Fs
	dir     string
	prefix  string
	stamp   string

	renderer        *report.Renderer
	spreadsheet     bool
	attachmentLimit int

	sharer  Sharer
	mailer  Mailer
	opener  LinkOpener
	history History

	progress func(Progress)
	now      func() time.Time

	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFilesystem sets the filesystem reports are written to.
func WithFilesystem(fs afero.Fs) Option {
	return func(o *Orchestrator) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithDirectory sets the directory output roots are created in.
func WithDirectory(dir string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(dir) != "" {
			o.dir = filepath.Clean(dir)
		}
	}
}

// WithPrefix sets the output root name prefix.
func WithPrefix(prefix string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(prefix) != "" {
			o.prefix = prefix
		}
	}
}

// WithFullTimestamp names output roots with date and time instead of date only.
func WithFullTimestamp(full bool) Option {
	return func(o *Orchestrator) {
		if full {
			o.stamp = FullStamp
		} else {
			o.stamp = DateStamp
		}
	}
}

// WithSpreadsheet toggles the inspections.xlsx register.
func WithSpreadsheet(on bool) Option {
	return func(o *Orchestrator) { o.spreadsheet = on }
}

// WithAttachmentLimit sets the maximum number of reports attached to an email.
func WithAttachmentLimit(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.attachmentLimit = n
		}
	}
}

// WithSharer sets the device share capability.
func WithSharer(s Sharer) Option {
	return func(o *Orchestrator) { o.sharer = s }
}

// WithMailer sets the mail composer.
func WithMailer(m Mailer) Option {
	return func(o *Orchestrator) { o.mailer = m }
}

// WithLinkOpener sets the messaging link opener.
func WithLinkOpener(l LinkOpener) Option {
	return func(o *Orchestrator) { o.opener = l }
}

// WithHistory records finished runs.
func WithHistory(h History) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithProgress sets a callback receiving state and progress changes.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithRenderer sets the report renderer.
func WithRenderer(r *report.Renderer) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator exporting records.
func New(records Records, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		records:         records,
		fs:              afero.NewOsFs(),
		dir:             "exports",
		prefix:          "cargo",
		stamp:           DateStamp,
		spreadsheet:     true,
		attachmentLimit: DefaultAttachmentLimit,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.renderer == nil {
		o.renderer = &report.Renderer{Now: o.now}
	}
	return o
}

// Filesystem returns the filesystem exports are written to.
func (o *Orchestrator) Filesystem() afero.Fs {
	return o.fs
}

// Directory returns the directory output roots are created in.
func (o *Orchestrator) Directory() string {
	return o.dir
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run performs one export. Cancelling ctx stops the run at the next record
// boundary or before dispatch; written files stay and no record is marked.
func (o *Orchestrator) Run(ctx context.Context, opts model.ExportOptions) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, apperr.New(apperr.CodeExportFailed, "export already running")
	}
	defer o.running.Store(false)

	if opts.Layout == "" {
		opts.Layout = model.LayoutOrganized
	}
	if opts.Sink == "" {
		opts.Sink = model.SinkDevice
	}

	res := &Result{
		Run: model.ExportRun{
			ID:        uuid.New().String(),
			State:     model.ExportIdle,
			Sink:      opts.Sink,
			Layout:    opts.Layout,
			StartedAt: o.now(),
		},
	}

	err := o.run(ctx, opts, res)
	if err != nil {
		err = classify(err)
		res.Run.State = model.ExportFailed
		res.Run.ErrorCode = string(apperr.CodeOf(err))
		res.Run.Message = err.Error()
		slog.Error("export failed", "run_id", res.Run.ID, "sink", opts.Sink, "error", err)
		o.emit(res.Run.ID, model.ExportFailed, 0, res.Run.Message)
	} else {
		res.Run.State = model.ExportCompleted
		slog.Info("export completed", "run_id", res.Run.ID, "sink", opts.Sink,
			"records", res.Run.RecordCount, "root", res.Root, "skipped_photos", res.SkippedPhotos)
		o.emit(res.Run.ID, model.ExportCompleted, 1, res.Run.Message)
	}
	res.Run.FinishedAt = o.now()

	if o.history != nil {
		// Recorded with a fresh context so cancelled runs are still kept.
		if herr := o.history.RecordRun(context.WithoutCancel(ctx), res.Run); herr != nil {
			slog.Warn("recording export run", "run_id", res.Run.ID, "error", herr)
		}
	}

	return res, err
}

func (o *Orchestrator) run(ctx context.Context, opts model.ExportOptions, res *Result) error {
	runID := res.Run.ID

	res.Run.State = model.ExportPreparing
	o.emit(runID, model.ExportPreparing, 0, "")

	if opts.Sink == model.SinkEmail && opts.Recipient != "" {
		if _, err := ParseRecipient(opts.Recipient); err != nil {
			return err
		}
	}

	selected, err := o.resolve(ctx, opts.Scope)
	if err != nil {
		return err
	}
	res.Run.RecordCount = len(selected)

	if err := ctx.Err(); err != nil {
		return err
	}

	res.Run.State = model.ExportWriting
	o.emit(runID, model.ExportWriting, 0, "")

	w, err := o.write(ctx, selected, opts, res)
	if err != nil {
		return err
	}
	res.Files = w.paths()

	if err := ctx.Err(); err != nil {
		return err
	}

	res.Run.State = model.ExportDispatching
	o.emit(runID, model.ExportDispatching, WritingShare, "")

	if err := o.dispatch(ctx, selected, opts, w, res); err != nil {
		return err
	}

	ids := make([]string, len(selected))
	for i := range selected {
		ids[i] = selected[i].ID
	}
	// The sink has delivered; the commit must not depend on the caller staying.
	if err := o.records.MarkExported(context.WithoutCancel(ctx), ids); err != nil {
		return fmt.Errorf("marking records exported: %w", err)
	}
	return nil
}

// resolve returns the records in scope, most recent first.
func (o *Orchestrator) resolve(ctx context.Context, scope model.Scope) ([]model.InspectionRecord, error) {
	all, err := o.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading inspections: %w", err)
	}

	var selected []model.InspectionRecord
	if scope.All {
		selected = all
	} else {
		want := make(map[string]bool, len(scope.IDs))
		for _, id := range scope.IDs {
			want[id] = true
		}
		for i := range all {
			if want[all[i].ID] {
				selected = append(selected, all[i])
			}
		}
	}

	if len(selected) == 0 {
		return nil, apperr.New(apperr.CodeEmptySelection, "no inspections selected for export")
	}
	return filter.Apply(selected, "", model.CategoryAll, o.now()), nil
}

func (o *Orchestrator) emit(runID string, state model.ExportState, fraction float64, msg string) {
	if o.progress == nil {
		return
	}
	o.progress(Progress{RunID: runID, State: state, Fraction: fraction, Message: msg})
}

// rootName returns the output root folder name for a run started at t.
func (o *Orchestrator) rootName(t time.Time) string {
	return fmt.Sprintf("%s_export_%s", o.prefix, t.Format(o.stamp))
}

// classify maps a run error onto the export error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.CodeCanceled, "export canceled", err)
	case apperr.Is(err, apperr.CodeStorageFull):
		return err
	case apperr.DiskFull(err):
		return apperr.StorageFull(err)
	case apperr.CodeOf(err) != "":
		return err
	default:
		return apperr.Wrap(apperr.CodeExportFailed, "export failed", err)
	}
}
