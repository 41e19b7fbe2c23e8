// Package imaging normalises uploaded profile pictures.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize = 5 << 20

// PictureSize is the edge length of stored profile pictures.
const PictureSize = 512

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var (
	// ErrTooLarge is returned for uploads above MaxUploadSize.
	ErrTooLarge = errors.New("image exceeds 5 MB")
	// ErrUnsupported is returned for anything but JPEG, PNG or WebP.
	ErrUnsupported = errors.New("unsupported image format")
)

// Picture is a processed image ready to store.
type Picture struct {
	Data []byte
	MIME string
}

// ProcessPicture reads an uploaded image, validates the format by sniffing
// bytes, crops it to a centred square no larger than PictureSize and
// re-encodes it as JPEG on a white background.
func ProcessPicture(r io.Reader) (*Picture, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = fit(img, squareCrop(img), PictureSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Picture{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// squareCrop returns the largest centred square of img.
func squareCrop(img image.Image) image.Rectangle {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// fit draws the src region of img onto a white square canvas of at most
// maxDim pixels using Catmull-Rom interpolation. Smaller crops keep their
// size.
func fit(img image.Image, src image.Rectangle, maxDim int) image.Image {
	side := min(src.Dx(), maxDim)
	if side < 1 {
		side = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if src.Dx() == side {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("webp", "RIFF????WEBPVP8", webp.Decode, webp.DecodeConfig)
}
