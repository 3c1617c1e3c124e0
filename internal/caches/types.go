// Package caches provides the tile storage backend variants. Variants are
// selected by the type tag on their <cache> configuration element.
package caches

import (
	"github.com/beevik/etree"
)

// Key addresses one stored tile within a cache.
type Key struct {
	// Tileset is the name of the tileset the tile belongs to.
	Tileset string

	// Level is the resolution level, Col and Row the tile coordinates
	// within that level.
	Level int
	Col   int
	Row   int

	// Extension is the filename extension of the tile's image format,
	// without the leading dot.
	Extension string
}

// Cache is one tile storage backend variant.
type Cache interface {
	// Name returns the unique registered name of the cache.
	Name() string

	// Configure interprets the cache's configuration subtree. Called
	// once, before Check.
	Configure(node *etree.Element) error

	// Check validates the configured cache. Called once, after
	// Configure; a cache failing Check is never registered.
	Check() error

	// Has reports whether a tile is present in the cache.
	Has(key Key) bool

	// Get returns the stored bytes for a tile. The second return value
	// is false when the tile is absent.
	Get(key Key) ([]byte, bool, error)

	// Set stores the bytes for a tile, overwriting any previous entry.
	Set(key Key, data []byte) error
}
