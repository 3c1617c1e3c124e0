package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/png"
)

// MinColors and MaxColors bound the palette size of a quantized PNG format.
const (
	MinColors = 2
	MaxColors = 256
)

// PNGFormat is the lossless format variant. A Colors value greater than zero
// selects the palette-quantized encoding.
type PNGFormat struct {
	name        string
	compression Compression
	colors      int
}

// NewPNGFormat creates a plain lossless PNG format.
func NewPNGFormat(name string, compression Compression) *PNGFormat {
	return &PNGFormat{name: name, compression: compression}
}

// NewPNGQFormat creates a palette-quantized PNG format with the given number
// of colors. Colors must be within [MinColors, MaxColors]; the configuration
// parser enforces the range before construction.
func NewPNGQFormat(name string, compression Compression, colors int) *PNGFormat {
	return &PNGFormat{name: name, compression: compression, colors: colors}
}

// Name returns the registered name of the format.
func (f *PNGFormat) Name() string { return f.name }

// Extension returns "png".
func (*PNGFormat) Extension() string { return "png" }

// MimeType returns "image/png".
func (*PNGFormat) MimeType() string { return "image/png" }

// Compression returns the configured compression effort.
func (f *PNGFormat) Compression() Compression { return f.compression }

// Colors returns the palette size, or zero for the plain variant.
func (f *PNGFormat) Colors() int { return f.colors }

// Quantized reports whether the format palette-quantizes its output.
func (f *PNGFormat) Quantized() bool { return f.colors > 0 }

// Encode encodes the image as PNG, quantizing it first when the format has a
// palette configured.
func (f *PNGFormat) Encode(img image.Image) ([]byte, error) {
	if f.colors > 0 {
		img = quantize(img, f.colors)
	}

	enc := png.Encoder{CompressionLevel: f.compressionLevel()}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG for format %q: %w", f.name, err)
	}
	return buf.Bytes(), nil
}

func (f *PNGFormat) compressionLevel() png.CompressionLevel {
	switch f.compression {
	case CompressionFast:
		return png.BestSpeed
	case CompressionBest:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

// quantize redraws the image onto a paletted canvas limited to the requested
// number of colors.
func quantize(img image.Image, colors int) *image.Paletted {
	bounds := img.Bounds()
	out := image.NewPaletted(bounds, palette.Plan9[:colors])
	draw.FloydSteinberg.Draw(out, bounds, img, bounds.Min)
	return out
}
