// Package imageio provides the image format variants a tileset can be
// encoded with. Formats are registered by name in the configuration; several
// named formats may share a type with different parameters.
package imageio

import (
	"image"
)

// Compression selects the effort level for lossless encoders.
type Compression int

const (
	// CompressionDefault is the encoder's default effort.
	CompressionDefault Compression = iota

	// CompressionFast favors encoding speed over output size.
	CompressionFast

	// CompressionBest favors output size over encoding speed.
	CompressionBest
)

// String returns the configuration value for the compression level.
func (c Compression) String() string {
	switch c {
	case CompressionFast:
		return "fast"
	case CompressionBest:
		return "best"
	default:
		return "default"
	}
}

// Format is one concrete image encoding a tileset can be served in.
type Format interface {
	// Name returns the registered name of the format. Distinct from its
	// type: several named formats may share a type.
	Name() string

	// Extension returns the filename extension for encoded tiles,
	// without the leading dot.
	Extension() string

	// MimeType returns the HTTP content type for encoded tiles.
	MimeType() string

	// Encode encodes the image into the format's byte representation.
	Encode(img image.Image) ([]byte, error)
}
