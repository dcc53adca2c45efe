package share

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

var issued = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newIssuer(secret string, now *time.Time) *Issuer {
	return NewIssuer(secret, "http://dock.local:8080/", time.Hour).WithClock(func() time.Time { return *now })
}

func TestIssueAndValidate(t *testing.T) {
	now := issued
	iss := newIssuer("secret", &now)

	link, err := iss.Issue("cargo_export_20250610", "run-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(link.URL, "http://dock.local:8080/api/share/") {
		t.Errorf("unexpected url %s", link.URL)
	}
	if !link.ExpiresAt.Equal(issued.Add(time.Hour)) {
		t.Errorf("unexpected expiry %v", link.ExpiresAt)
	}

	claims, err := iss.Validate(link.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Root != "cargo_export_20250610" || claims.RunID != "run-1" || claims.ID != link.JTI {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestValidateRejects(t *testing.T) {
	now := issued
	iss := newIssuer("secret", &now)
	link, err := iss.Issue("cargo_export_20250610", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := newIssuer("other", &now).Validate(link.Token); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("wrong secret: expected ErrInvalidLink, got %v", err)
	}
	if _, err := iss.Validate("not-a-token"); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("garbage: expected ErrInvalidLink, got %v", err)
	}

	now = issued.Add(2 * time.Hour)
	if _, err := iss.Validate(link.Token); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("expired: expected ErrInvalidLink, got %v", err)
	}
}

func TestValidateRejectsEscapingRoot(t *testing.T) {
	now := issued
	iss := newIssuer("secret", &now)
	for _, root := range []string{"../etc", "/abs", ""} {
		link, err := iss.Issue(root, "")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := iss.Validate(link.Token); !errors.Is(err, ErrInvalidLink) {
			t.Errorf("root %q: expected ErrInvalidLink, got %v", root, err)
		}
	}
}

func TestWriteZip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/exports/cargo_export_20250610/SUMMARY_REPORT.txt":       "summary",
		"/exports/cargo_export_20250610/reports/INSPECTION_A.txt": "a",
		"/exports/cargo_export_20250610/photos/A/photo_1.jpg":     "jpg",
		"/exports/cargo_export_20250609/SUMMARY_REPORT.txt":       "other run",
	}
	for p, body := range files {
		if err := afero.WriteFile(fsys, p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := WriteZip(context.Background(), &buf, fsys, "/exports/cargo_export_20250610"); err != nil {
		t.Fatalf("WriteZip: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "cargo_export_20250610/reports/INSPECTION_A.txt" {
			rc, _ := f.Open()
			body, _ := io.ReadAll(rc)
			rc.Close()
			if string(body) != "a" {
				t.Errorf("unexpected body %q", body)
			}
		}
	}
	sort.Strings(names)
	want := []string{
		"cargo_export_20250610/SUMMARY_REPORT.txt",
		"cargo_export_20250610/photos/A/photo_1.jpg",
		"cargo_export_20250610/reports/INSPECTION_A.txt",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestWriteZipMissingFolder(t *testing.T) {
	if err := WriteZip(context.Background(), io.Discard, afero.NewMemMapFs(), "/nope"); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestLinkSharer(t *testing.T) {
	now := issued
	iss := newIssuer("secret", &now)
	s := &LinkSharer{Issuer: iss, Dir: "/exports"}
	if !s.Available() {
		t.Fatal("expected sharer to be available")
	}

	u, err := s.Share(context.Background(), "/exports/cargo_export_20250610", "run-1")
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	token := strings.TrimPrefix(u, "http://dock.local:8080/api/share/")
	claims, err := iss.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Root != "cargo_export_20250610" {
		t.Errorf("unexpected root %q", claims.Root)
	}

	if _, err := s.Share(context.Background(), "/elsewhere/x", ""); err == nil {
		t.Error("expected error for root outside export directory")
	}
	if (&LinkSharer{}).Available() {
		t.Error("sharer without issuer must be unavailable")
	}
}
