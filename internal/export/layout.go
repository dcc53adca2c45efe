package export

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/imaging"
	"github.com/erazemk/cargocheck/internal/model"
)

// File and folder names inside an output root.
const (
	ReportsDir           = "reports"
	PhotosDir            = "photos"
	OrganizedSummaryName = "SUMMARY_REPORT.txt"
	FlatSummaryName      = "summary.txt"
	RegisterName         = "inspections.xlsx"
	ManifestName         = "manifest.json"
	ManifestVersion      = "1"
)

// Manifest describes the content of an output root.
type Manifest struct {
	Version       string         `json:"version"`
	RunID         string         `json:"runId"`
	CreatedAt     time.Time      `json:"createdAt"`
	Layout        model.Layout   `json:"layout"`
	Sink          model.SinkKind `json:"sink"`
	AllRecords    bool           `json:"allRecords"`
	IncludePhotos bool           `json:"includePhotos"`
	RecordCount   int            `json:"recordCount"`
	Files         []ManifestFile `json:"files"`
	TotalBytes    int64          `json:"totalBytes"`
	TotalSize     string         `json:"totalSize"`
}

// ManifestFile is one written file. Path is relative to the output root.
type ManifestFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// writer writes files below an output root and remembers what it wrote.
type writer struct {
	fs    afero.Fs
	root  string
	files []ManifestFile
	total int64
	// reports holds the relative paths of individual record reports.
	reports []string
}

func (w *writer) mkdir(rel string) error {
	if err := w.fs.MkdirAll(filepath.Join(w.root, filepath.FromSlash(rel)), 0o755); err != nil {
		return storageErr(fmt.Errorf("creating %s: %w", rel, err))
	}
	return nil
}

func (w *writer) write(rel string, data []byte) error {
	if err := afero.WriteFile(w.fs, filepath.Join(w.root, filepath.FromSlash(rel)), data, 0o644); err != nil {
		return storageErr(fmt.Errorf("writing %s: %w", rel, err))
	}
	sum := blake2b.Sum256(data)
	w.files = append(w.files, ManifestFile{
		Path:     rel,
		Size:     int64(len(data)),
		Checksum: hex.EncodeToString(sum[:]),
	})
	w.total += int64(len(data))
	return nil
}

func (w *writer) paths() []string {
	out := make([]string, len(w.files))
	for i, f := range w.files {
		out[i] = f.Path
	}
	return out
}

// abs returns the filesystem path of a file relative to the root.
func (w *writer) abs(rel string) string {
	return filepath.Join(w.root, filepath.FromSlash(rel))
}

func storageErr(err error) error {
	if apperr.DiskFull(err) {
		return apperr.StorageFull(err)
	}
	return err
}

// write creates the output root and writes every report, photo, the summary,
// the optional register and the manifest.
func (o *Orchestrator) write(ctx context.Context, records []model.InspectionRecord, opts model.ExportOptions, res *Result) (*writer, error) {
	start := o.now()
	w := &writer{
		fs:   o.fs,
		root: filepath.Join(o.dir, o.rootName(start)),
	}
	res.Root = w.root
	res.Run.OutputRoot = w.root

	if err := w.mkdir("."); err != nil {
		return nil, err
	}

	organized := opts.Layout != model.LayoutFlat
	summaryName := FlatSummaryName
	if organized {
		summaryName = OrganizedSummaryName
		if err := w.mkdir(ReportsDir); err != nil {
			return nil, err
		}
		if opts.IncludePhotos {
			if err := w.mkdir(PhotosDir); err != nil {
				return nil, err
			}
		}
	}

	if err := w.write(summaryName, []byte(o.renderer.Summary(records, opts))); err != nil {
		return nil, err
	}

	stems := newStems()
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := &records[i]
		stem := stems.next(rec.InvoiceNumber, i)

		rel := stem + ".txt"
		if organized {
			rel = path.Join(ReportsDir, "INSPECTION_"+stem+".txt")
		}
		if err := w.write(rel, []byte(o.renderer.Record(rec))); err != nil {
			return nil, err
		}
		w.reports = append(w.reports, rel)

		if organized && opts.IncludePhotos && len(rec.Photos) > 0 {
			res.SkippedPhotos += o.writePhotos(w, rec, stem)
		}

		o.emit(res.Run.ID, model.ExportWriting, WritingShare*float64(i+1)/float64(len(records)), "")
	}

	if o.spreadsheet {
		var buf bytes.Buffer
		if err := o.renderer.WriteRegister(&buf, records); err != nil {
			return nil, fmt.Errorf("rendering register: %w", err)
		}
		if err := w.write(RegisterName, buf.Bytes()); err != nil {
			return nil, err
		}
	}

	if err := o.writeManifest(w, records, opts, res, start); err != nil {
		return nil, err
	}
	return w, nil
}

// writePhotos writes the photos of one record and returns how many were
// skipped. A photo that cannot be written never fails the run.
func (o *Orchestrator) writePhotos(w *writer, rec *model.InspectionRecord, stem string) int {
	dir := path.Join(PhotosDir, stem)
	if err := w.mkdir(dir); err != nil {
		slog.Warn("creating photo folder", "invoice", rec.InvoiceNumber, "error", err)
		return len(rec.Photos)
	}

	skipped := 0
	for n := range rec.Photos {
		photo := &rec.Photos[n]
		if !photo.HasPayload() {
			slog.Warn("skipping photo without data", "invoice", rec.InvoiceNumber, "photo_id", photo.ID)
			skipped++
			continue
		}
		data, err := imaging.DecodeBase64(*photo.Base64)
		if err != nil {
			slog.Warn("skipping unreadable photo", "invoice", rec.InvoiceNumber, "photo_id", photo.ID, "error", err)
			skipped++
			continue
		}
		rel := path.Join(dir, fmt.Sprintf("photo_%d.jpg", n+1))
		if err := w.write(rel, data); err != nil {
			err = apperr.Wrap(apperr.CodePhotoWrite, "writing photo", err)
			slog.Warn("skipping photo", "invoice", rec.InvoiceNumber, "photo_id", photo.ID, "error", err)
			skipped++
		}
	}
	return skipped
}

func (o *Orchestrator) writeManifest(w *writer, records []model.InspectionRecord, opts model.ExportOptions, res *Result, created time.Time) error {
	m := Manifest{
		Version:       ManifestVersion,
		RunID:         res.Run.ID,
		CreatedAt:     created,
		Layout:        opts.Layout,
		Sink:          opts.Sink,
		AllRecords:    opts.Scope.All,
		IncludePhotos: opts.IncludePhotos,
		RecordCount:   len(records),
		Files:         append([]ManifestFile(nil), w.files...),
		TotalBytes:    w.total,
		TotalSize:     humanize.Bytes(uint64(w.total)),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return w.write(ManifestName, data)
}

// stems turns invoice numbers into unique, filesystem-safe file name stems.
// A taken stem gets the lowest free numeric suffix; no stem is issued twice.
type stems map[string]bool

func newStems() stems { return stems{} }

func (s stems) next(invoice string, index int) string {
	base := SafeName(invoice)
	if base == "" {
		base = fmt.Sprintf("record_%d", index+1)
	}
	stem := base
	for n := 2; s[stem]; n++ {
		stem = fmt.Sprintf("%s_%d", base, n)
	}
	s[stem] = true
	return stem
}

// SafeName replaces characters that are not allowed in file names.
func SafeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, s)
	if s == "." || s == ".." {
		return ""
	}
	return s
}
