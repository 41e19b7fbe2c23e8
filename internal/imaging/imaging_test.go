package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
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

func createTestPNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img
}

func TestProcessJPEG(t *testing.T) {
	result, err := ProcessPicture(bytes.NewReader(createTestJPEG(100, 100)))
	if err != nil {
		t.Fatalf("ProcessPicture JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", result.MIME)
	}
	if len(result.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestProcessPNG(t *testing.T) {
	data := createTestPNG(100, 100, color.RGBA{0, 0, 255, 255})
	result, err := ProcessPicture(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ProcessPicture PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg (always outputs JPEG), got %s", result.MIME)
	}
}

func TestProcessTransparentPNGOnWhite(t *testing.T) {
	data := createTestPNG(20, 20, color.RGBA{0, 0, 0, 0})
	result, err := ProcessPicture(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ProcessPicture: %v", err)
	}
	r, g, b, _ := decode(t, result.Data).At(10, 10).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("expected white background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestProcessDownscaleAndCrop(t *testing.T) {
	result, err := ProcessPicture(bytes.NewReader(createTestJPEG(2048, 1024)))
	if err != nil {
		t.Fatalf("ProcessPicture large image: %v", err)
	}

	bounds := decode(t, result.Data).Bounds()
	if bounds.Dx() != PictureSize || bounds.Dy() != PictureSize {
		t.Errorf("expected %dx%d, got %dx%d", PictureSize, PictureSize, bounds.Dx(), bounds.Dy())
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	result, err := ProcessPicture(bytes.NewReader(createTestJPEG(50, 80)))
	if err != nil {
		t.Fatalf("ProcessPicture small image: %v", err)
	}

	bounds := decode(t, result.Data).Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Errorf("small image should only be cropped: got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestProcessTooLarge(t *testing.T) {
	data := make([]byte, MaxUploadSize+10)
	copy(data, createTestJPEG(10, 10))
	_, err := ProcessPicture(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestProcessInvalidFormat(t *testing.T) {
	_, err := ProcessPicture(bytes.NewReader([]byte("not an image")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestProcessGIFRejected(t *testing.T) {
	// GIF magic bytes.
	_, err := ProcessPicture(bytes.NewReader([]byte("GIF89a...")))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for GIF, got %v", err)
	}
}
