package capture

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"
	"time"
)

var at = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func run(t *testing.T, events ...Event) Machine {
	t.Helper()
	m := Start()
	for _, ev := range events {
		var err error
		m, err = m.Next(ev)
		if err != nil {
			t.Fatalf("Next(%+v): %v", ev, err)
		}
	}
	return m
}

func TestPaths(t *testing.T) {
	tests := []struct {
		name     string
		events   []Event
		want     State
		fellBack bool
	}{
		{"camera", []Event{{Kind: EventChoose, Source: SourceCamera}, {Kind: EventCompleted}}, StateDone, false},
		{"gallery", []Event{{Kind: EventChoose, Source: SourceGallery}, {Kind: EventCompleted}}, StateDone, false},
		{"external opened", []Event{{Kind: EventChoose, Source: SourceExternalApp, App: "opencamera"}, {Kind: EventOpened}}, StateGallery, false},
		{"external fallback to camera", []Event{
			{Kind: EventChoose, Source: SourceExternalApp, App: "opencamera"},
			{Kind: EventUnavailable},
			{Kind: EventChoose, Source: SourceCamera},
		}, StateCapture, true},
		{"external fallback to gallery", []Event{
			{Kind: EventChoose, Source: SourceExternalApp, App: "opencamera"},
			{Kind: EventUnavailable},
			{Kind: EventChoose, Source: SourceGallery},
		}, StateGallery, true},
		{"cancel at choice", []Event{{Kind: EventCancel}}, StateAborted, false},
		{"cancel in fallback", []Event{
			{Kind: EventChoose, Source: SourceExternalApp, App: "opencamera"},
			{Kind: EventUnavailable},
			{Kind: EventCancel},
		}, StateAborted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := run(t, tt.events...)
			if m.State != tt.want {
				t.Errorf("expected state %s, got %s", tt.want, m.State)
			}
			if m.FellBack != tt.fellBack {
				t.Errorf("expected FellBack=%v", tt.fellBack)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		bad    Event
	}{
		{"opened before choosing", nil, Event{Kind: EventOpened}},
		{"external without app", nil, Event{Kind: EventChoose, Source: SourceExternalApp}},
		{"external from fallback", []Event{
			{Kind: EventChoose, Source: SourceExternalApp, App: "x"},
			{Kind: EventUnavailable},
		}, Event{Kind: EventChoose, Source: SourceExternalApp, App: "x"}},
		{"event after done", []Event{
			{Kind: EventChoose, Source: SourceCamera},
			{Kind: EventCompleted},
		}, Event{Kind: EventCancel}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := run(t, tt.events...)
			next, err := m.Next(tt.bad)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if next.State != m.State {
				t.Errorf("state changed on invalid event: %s -> %s", m.State, next.State)
			}
		})
	}
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 30)), nil); err != nil {
		t.Fatalf("encoding: %v", err)
	}
	return buf.Bytes()
}

func TestNewPhoto(t *testing.T) {
	p := NewPhoto(testJPEG(t), at)
	if !p.HasPayload() {
		t.Fatal("expected payload")
	}
	if p.Width != 40 || p.Height != 30 {
		t.Errorf("expected 40x30, got %dx%d", p.Width, p.Height)
	}
	if p.ID == "" || !p.Timestamp.Equal(at) {
		t.Errorf("unexpected id/timestamp %+v", p)
	}
}

func TestNewPhotoFailureHasNoPayload(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("garbage")} {
		p := NewPhoto(data, at)
		if p.HasPayload() || p.Width != 0 || p.Height != 0 {
			t.Errorf("expected empty attachment for %q, got %+v", data, p)
		}
		if p.ID == "" {
			t.Error("expected id on failed photo")
		}
	}
}

func TestBatchLimit(t *testing.T) {
	img := testJPEG(t)
	images := make([][]byte, 7)
	for i := range images {
		images[i] = img
	}

	photos, dropped := Batch(images, at)
	if len(photos) != GalleryLimit || dropped != 2 {
		t.Fatalf("expected %d photos and 2 dropped, got %d and %d", GalleryLimit, len(photos), dropped)
	}
	seen := map[string]bool{}
	for _, p := range photos {
		if seen[p.ID] {
			t.Errorf("duplicate photo id %s", p.ID)
		}
		seen[p.ID] = true
	}
}
