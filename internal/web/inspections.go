package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erazemk/cargocheck/internal/apperr"
	"github.com/erazemk/cargocheck/internal/capture"
	"github.com/erazemk/cargocheck/internal/filter"
	"github.com/erazemk/cargocheck/internal/model"
)

const (
	maxUploadSize = 32 << 20
	maxPhotoSize  = 10 << 20
)

// InspectionsPage handles GET /inspections.
func (s *Server) InspectionsPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page := s.page(r, "Inspections")

	category, ok := model.ParseCategory(r.URL.Query().Get("category"))
	if !ok {
		page.Error = "Unknown category."
		category = model.CategoryAll
	}

	records, err := s.Records.List(r.Context())
	if err != nil {
		slog.Error("failed to list inspections", "error", err)
		page.Error = "Inspections could not be loaded."
	}

	s.Templates.Render(w, "inspections.html", &struct {
		PageData
		Records         []model.InspectionRecord
		Total           int
		Query           string
		Category        model.Category
		Categories      []model.Category
		LastInspector   string
		NonConformances []string
	}{
		PageData:        page,
		Records:         filter.Apply(records, query, category, s.Now()),
		Total:           len(records),
		Query:           query,
		Category:        category,
		Categories:      categories,
		LastInspector:   s.lastInspector(r),
		NonConformances: model.NonConformanceTypes,
	})
}

// InspectionDetailPage handles GET /inspections/{id}.
func (s *Server) InspectionDetailPage(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	s.Templates.Render(w, "inspection_detail.html", &struct {
		PageData
		Record          *model.InspectionRecord
		Report          string
		NonConformances []string
		GalleryLimit    int
	}{
		PageData:        s.page(r, rec.InvoiceNumber),
		Record:          rec,
		Report:          s.Renderer.Record(rec),
		NonConformances: model.NonConformanceTypes,
		GalleryLimit:    capture.GalleryLimit,
	})
}

// InspectionCreateSubmit handles POST /inspections.
func (s *Server) InspectionCreateSubmit(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	fields, err := formFields(r)
	if err != nil {
		redirectWith(w, r, "/inspections", "error", err.Error())
		return
	}

	photos, dropped, err := s.gallery(r)
	if err != nil {
		redirectWith(w, r, "/inspections", "error", err.Error())
		return
	}
	fields.Photos = photos

	rec, err := s.Records.Create(r.Context(), fields)
	if err != nil {
		redirectWith(w, r, "/inspections", "error", message(err))
		return
	}

	notice := "Inspection saved."
	if dropped > 0 {
		notice = fmt.Sprintf("Inspection saved. %d photo(s) over the limit of %d were not added.", dropped, capture.GalleryLimit)
	}
	redirectWith(w, r, "/inspections/"+rec.ID, "notice", notice)
}

// InspectionUpdateSubmit handles POST /inspections/{id}. Photos are kept.
func (s *Server) InspectionUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detail := "/inspections/" + id

	rec, err := s.Records.Get(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := parseForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	fields, err := formFields(r)
	if err != nil {
		redirectWith(w, r, detail, "error", err.Error())
		return
	}
	fields.Photos = rec.Photos

	if _, err := s.Records.Update(r.Context(), id, fields); err != nil {
		redirectWith(w, r, detail, "error", message(err))
		return
	}
	redirectWith(w, r, detail, "notice", "Inspection updated.")
}

// InspectionDeleteSubmit handles POST /inspections/{id}/delete.
func (s *Server) InspectionDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.Records.Delete(r.Context(), r.PathValue("id")); err != nil {
		redirectWith(w, r, "/inspections", "error", message(err))
		return
	}
	redirectWith(w, r, "/inspections", "notice", "Inspection deleted.")
}

// InspectionPhotosSubmit handles POST /inspections/{id}/photos. The form's
// source field picks the camera (one photo) or the gallery (up to
// capture.GalleryLimit photos).
func (s *Server) InspectionPhotosSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detail := "/inspections/" + id

	rec, err := s.Records.Get(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := parseForm(r); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	m, err := capture.Start().Next(capture.Event{Kind: capture.EventChoose, Source: capture.Source(r.FormValue("source"))})
	if err != nil {
		redirectWith(w, r, detail, "error", "Choose the camera or the gallery.")
		return
	}

	var added []model.PhotoAttachment
	dropped := 0
	switch m.State {
	case capture.StateCapture:
		images, err := readPhotos(r)
		if err != nil {
			redirectWith(w, r, detail, "error", err.Error())
			return
		}
		if len(images) == 0 {
			m, _ = m.Next(capture.Event{Kind: capture.EventCancel})
			break
		}
		added = append(added, capture.NewPhoto(images[0], s.Now()))
		dropped = len(images) - 1
	case capture.StateGallery:
		added, dropped, err = s.gallery(r)
		if err != nil {
			redirectWith(w, r, detail, "error", err.Error())
			return
		}
	}
	if m.State != capture.StateAborted {
		m, _ = m.Next(capture.Event{Kind: capture.EventCompleted})
	}
	if m.State == capture.StateAborted || len(added) == 0 {
		redirectWith(w, r, detail, "notice", "No photos added.")
		return
	}

	fields := rec.Fields()
	fields.Photos = append(append([]model.PhotoAttachment{}, rec.Photos...), added...)
	if _, err := s.Records.Update(r.Context(), id, fields); err != nil {
		redirectWith(w, r, detail, "error", message(err))
		return
	}

	notice := fmt.Sprintf("%d photo(s) added.", len(added))
	if dropped > 0 {
		notice += fmt.Sprintf(" %d over the limit were not added.", dropped)
	}
	redirectWith(w, r, detail, "notice", notice)
}

// InspectionReport handles GET /inspections/{id}/report: the plain-text
// report as a download.
func (s *Server) InspectionReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	name := strings.NewReplacer("/", "_", "\\", "_", "\"", "_").Replace(rec.InvoiceNumber)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"INSPECTION_%s.txt\"", name))
	if _, err := io.WriteString(w, s.Renderer.Record(rec)); err != nil {
		slog.Error("failed to write report response", "error", err)
	}
}

// gallery reads the uploaded photos as one gallery pick.
func (s *Server) gallery(r *http.Request) ([]model.PhotoAttachment, int, error) {
	images, err := readPhotos(r)
	if err != nil {
		return nil, 0, err
	}
	if len(images) == 0 {
		return nil, 0, nil
	}
	photos, dropped := capture.Batch(images, s.Now())
	return photos, dropped, nil
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Is(err, apperr.CodeNotFound) {
		http.Error(w, "inspection not found", http.StatusNotFound)
		return
	}
	slog.Error("failed to load inspection", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxUploadSize)
	}
	return r.ParseForm()
}

// readPhotos returns the contents of the "photos" file fields.
func readPhotos(r *http.Request) ([][]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var images [][]byte
	for _, fh := range r.MultipartForm.File["photos"] {
		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxPhotoSize {
		return nil, fmt.Errorf("photo %s is larger than 10 MB", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxPhotoSize))
}

// formFields reads the entry form.
func formFields(r *http.Request) (model.RecordFields, error) {
	f := model.RecordFields{
		InvoiceNumber:         r.FormValue("invoiceNumber"),
		MaterialType:          r.FormValue("materialType"),
		QuantityReceived:      r.FormValue("quantityReceived"),
		StorageLocation:       r.FormValue("storageLocation"),
		QualityInspector:      r.FormValue("qualityInspector"),
		SafetyInspector:       r.FormValue("safetyInspector"),
		LogisticsInspector:    r.FormValue("logisticsInspector"),
		NonConforming:         r.FormValue("nonConforming") != "",
		NonConformanceType:    r.FormValue("nonConformanceType"),
		NonConformingQuantity: r.FormValue("nonConformingQuantity"),
		Notes:                 r.FormValue("notes"),
	}
	if v := strings.TrimSpace(r.FormValue("receiveDate")); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return f, errors.New("receive date must be YYYY-MM-DD")
		}
		f.ReceiveDate = &d
	}
	return f, nil
}

// message returns the user-facing text of err.
func message(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	slog.Error("inspection operation failed", "error", err)
	return "Something went wrong. Please try again."
}

func redirectWith(w http.ResponseWriter, r *http.Request, path, key, value string) {
	http.Redirect(w, r, path+"?"+url.Values{key: {value}}.Encode(), http.StatusSeeOther)
}
