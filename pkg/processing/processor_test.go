package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

func TestScaleToMax(t *testing.T) {
	p := NewProcessor()

	scaled := p.ScaleToMax(createTestImage(1280, 720), 640)
	if scaled.Bounds().Dx() != 640 || scaled.Bounds().Dy() != 360 {
		t.Errorf("Expected 640x360, got %v", scaled.Bounds())
	}

	portrait := p.ScaleToMax(createTestImage(300, 900), 320)
	if portrait.Bounds().Dy() != 320 {
		t.Errorf("Expected height 320, got %d", portrait.Bounds().Dy())
	}

	small := p.ScaleToMax(createTestImage(100, 50), 640)
	if small.Bounds().Dx() != 100 || small.Bounds().Dy() != 50 {
		t.Errorf("Small images should not be upscaled, got %v", small.Bounds())
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(800, 400)

	part, err := p.PrepareImageForModel(img, FormatJPEG, 320, 50)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	if part.MIMEType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", part.MIMEType)
	}
	decoded, err := p.DecodeImage(part.Data)
	if err != nil {
		t.Fatalf("Failed to decode prepared image: %v", err)
	}
	if decoded.Bounds().Dx() != 320 {
		t.Errorf("Expected width 320, got %d", decoded.Bounds().Dx())
	}

	part, err = p.PrepareImageForModel(img, FormatPNG, 640, 0)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	if part.MIMEType != "image/png" {
		t.Errorf("Expected image/png, got %s", part.MIMEType)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	p := NewProcessor()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(4, 3)); err != nil {
		t.Fatal(err)
	}

	url := EncodeDataURL(buf.Bytes(), "image/png")
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("Unexpected data URL prefix: %s", url[:30])
	}

	data, mime, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if mime != "image/png" || !bytes.Equal(data, buf.Bytes()) {
		t.Errorf("Round trip mismatch (mime %s)", mime)
	}

	img, err := p.DecodeImageDataURL(url)
	if err != nil {
		t.Fatalf("DecodeImageDataURL failed: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("Expected 4x3, got %v", img.Bounds())
	}
}

func TestDecodeDataURLErrors(t *testing.T) {
	if _, _, err := DecodeDataURL("hello"); err != ErrNotDataURL {
		t.Errorf("Expected ErrNotDataURL, got %v", err)
	}
	if _, _, err := DecodeDataURL("data:image/png;base64,!!!"); err == nil {
		t.Error("Expected error for invalid base64")
	}
	if _, err := NewProcessor().DecodeImageDataURL("data:image/png;base64,aGVsbG8="); err == nil {
		t.Error("Expected error for non-image payload")
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(32, 16)

	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "out."+format)
		if err := p.SaveImage(img, path, format, 90, false); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}
		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", format, err)
		}
		if loaded.Bounds().Dx() != 32 || loaded.Bounds().Dy() != 16 {
			t.Errorf("%s: expected 32x16, got %v", format, loaded.Bounds())
		}
	}

	if _, err := p.LoadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.png"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.LoadImage(filepath.Join(dir, "bad.png")); err == nil {
		t.Error("Expected error for corrupt file")
	}
}

func TestLoadImageSmartRejectsScheme(t *testing.T) {
	if _, err := NewProcessor().LoadImageFromURL("ftp://example.com/a.png"); err == nil {
		t.Error("Expected error for ftp scheme")
	}
}

func TestDrawRectAndLabel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	red := color.NRGBA{255, 0, 0, 255}

	DrawRect(img, image.Rect(10, 10, 50, 50), red, 2)
	if img.NRGBAAt(10, 30) != red || img.NRGBAAt(49, 30) != red {
		t.Error("Expected rect edges to be drawn")
	}
	if img.NRGBAAt(30, 30).A != 0 {
		t.Error("Rect interior should stay empty")
	}

	FillCircle(img, 80, 80, 3, red)
	if img.NRGBAAt(80, 80) != red {
		t.Error("Expected circle center to be filled")
	}

	DefaultLabelFont().Draw(img, 0, 60, "cat", color.NRGBA{255, 255, 255, 255}, color.NRGBA{0, 0, 0, 255})
	if img.NRGBAAt(1, 61).A != 255 {
		t.Error("Expected label background to be drawn")
	}
}

func BenchmarkPrepareImageForModel(b *testing.B) {
	p := NewProcessor()
	img := createTestImage(1920, 1080)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.PrepareImageForModel(img, FormatJPEG, 320, 50)
	}
}
