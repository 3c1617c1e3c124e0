package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Quality bounds for the lossy format variant.
const (
	MinQuality = 1
	MaxQuality = 100

	// DefaultQuality is used when a JPEG format omits the <quality> tag.
	DefaultQuality = 95
)

// JPEGFormat is the lossy format variant.
type JPEGFormat struct {
	name    string
	quality int
}

// NewJPEGFormat creates a JPEG format with the given quality. Quality must be
// within [MinQuality, MaxQuality]; the configuration parser enforces the
// range before construction.
func NewJPEGFormat(name string, quality int) *JPEGFormat {
	return &JPEGFormat{name: name, quality: quality}
}

// Name returns the registered name of the format.
func (f *JPEGFormat) Name() string { return f.name }

// Extension returns "jpg".
func (*JPEGFormat) Extension() string { return "jpg" }

// MimeType returns "image/jpeg".
func (*JPEGFormat) MimeType() string { return "image/jpeg" }

// Quality returns the configured encoding quality.
func (f *JPEGFormat) Quality() int { return f.quality }

// Encode encodes the image as JPEG at the configured quality.
func (f *JPEGFormat) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: f.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG for format %q: %w", f.name, err)
	}
	return buf.Bytes(), nil
}
