package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestNormalizeJPEG(t *testing.T) {
	result, err := Normalize(bytes.NewReader(createTestJPEG(100, 80)))
	if err != nil {
		t.Fatalf("Normalize JPEG: %v", err)
	}
	if result.Width != 100 || result.Height != 80 {
		t.Errorf("expected 100x80, got %dx%d", result.Width, result.Height)
	}
	if http.DetectContentType(result.Data) != "image/jpeg" {
		t.Error("expected JPEG output")
	}
}

func TestNormalizePNGBecomesJPEG(t *testing.T) {
	result, err := Normalize(bytes.NewReader(createTestPNG(100, 100)))
	if err != nil {
		t.Fatalf("Normalize PNG: %v", err)
	}
	if http.DetectContentType(result.Data) != "image/jpeg" {
		t.Error("expected JPEG output for PNG input")
	}
}

func TestNormalizeDownscale(t *testing.T) {
	result, err := Normalize(bytes.NewReader(createTestJPEG(3200, 1600)))
	if err != nil {
		t.Fatalf("Normalize large image: %v", err)
	}
	if result.Width != MaxDimension || result.Height != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, result.Width, result.Height)
	}
}

func TestNormalizeRejectsUnsupported(t *testing.T) {
	for _, data := range [][]byte{[]byte("not an image"), []byte("GIF89a...")} {
		if _, err := Normalize(bytes.NewReader(data)); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestDecodeBase64(t *testing.T) {
	raw := createTestJPEG(4, 4)
	enc := base64.StdEncoding.EncodeToString(raw)

	for _, payload := range []string{enc, "data:image/jpeg;base64," + enc} {
		got, err := DecodeBase64(payload)
		if err != nil {
			t.Fatalf("DecodeBase64: %v", err)
		}
		if !bytes.Equal(got, raw) {
			t.Error("decoded bytes differ from input")
		}
	}

	if _, err := DecodeBase64("!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecodeBase64(""); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestThumbnailAndProbe(t *testing.T) {
	thumb, err := Thumbnail(createTestPNG(1000, 500), ThumbDimension)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	w, h, err := Probe(thumb)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if w != ThumbDimension || h != ThumbDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", ThumbDimension, ThumbDimension/2, w, h)
	}

	w, h, err = Probe(createTestJPEG(50, 50))
	if err != nil || w != 50 || h != 50 {
		t.Errorf("small image should keep its size: got %dx%d (%v)", w, h, err)
	}
}
