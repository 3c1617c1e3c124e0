// Package sources provides the upstream data source variants a tileset can
// pull imagery from. Variants are selected by the type tag on their <source>
// configuration element.
package sources

import (
	"context"

	"github.com/beevik/etree"
)

// MapRequest describes one rectangular map image request against an upstream
// source, expressed in the source's spatial reference system.
type MapRequest struct {
	// Extent is the requested bounding box: min-x, min-y, max-x, max-y.
	Extent [4]float64

	// Width and Height are the requested image dimensions in pixels.
	Width  int
	Height int

	// SRS is the spatial reference the extent is expressed in.
	SRS string
}

// Source is one upstream data source variant.
type Source interface {
	// Name returns the unique registered name of the source.
	Name() string

	// SRS returns the source's spatial reference string, if configured.
	SRS() string

	// SetSRS stores the source's spatial reference string.
	SetSRS(srs string)

	// Configure interprets the source's configuration subtree. Called
	// once, before Check.
	Configure(node *etree.Element) error

	// Check validates the configured source. Called once, after
	// Configure; a source failing Check is never registered.
	Check() error

	// GetMap fetches the imagery for the given request from the
	// upstream server.
	GetMap(ctx context.Context, req *MapRequest) ([]byte, string, error)
}
