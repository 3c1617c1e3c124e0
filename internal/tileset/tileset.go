// Package tileset defines the served tile grid entity and the grid math the
// protocol front-ends need to address tiles within it.
package tileset

import (
	"fmt"
	"time"

	"github.com/gridpoint/tilecached/internal/caches"
	"github.com/gridpoint/tilecached/internal/imageio"
	"github.com/gridpoint/tilecached/internal/sources"
)

// Tileset is one served tile grid. It references exactly one cache and one
// source by name, resolved at configuration time, and optionally one image
// format. A nil Format means single-tile passthrough with no re-encoding.
type Tileset struct {
	Name string

	Cache  caches.Cache
	Source sources.Source
	Format imageio.Format

	// SRS is the spatial reference the extent and resolutions are
	// expressed in.
	SRS string

	// TileWidth and TileHeight are the pixel dimensions of one tile.
	TileWidth  int
	TileHeight int

	// Extent is the grid's spatial bounds: min-x, min-y, max-x, max-y.
	Extent [4]float64

	// Resolutions is the ordered list of scale steps the tileset is
	// served at. Its length is the number of levels.
	Resolutions []float64

	// MetaWidth and MetaHeight are the metatile dimensions in tiles.
	MetaWidth  int
	MetaHeight int

	// MetaBuffer is the extra margin in tiles rendered around a
	// metatile.
	MetaBuffer int

	// Expires is the cache-control expiry in seconds.
	Expires int
}

// New creates a tileset with the default single-tile metatile geometry.
func New(name string) *Tileset {
	return &Tileset{
		Name:       name,
		MetaWidth:  1,
		MetaHeight: 1,
	}
}

// Levels returns the number of resolution levels.
func (t *Tileset) Levels() int {
	return len(t.Resolutions)
}

// Resolution returns the scale step of the given level.
func (t *Tileset) Resolution(level int) (float64, error) {
	if level < 0 || level >= len(t.Resolutions) {
		return 0, fmt.Errorf("tileset %q has no level %d (levels 0-%d)", t.Name, level, len(t.Resolutions)-1)
	}
	return t.Resolutions[level], nil
}

// GridSize returns the number of tile columns and rows at the given level.
func (t *Tileset) GridSize(level int) (cols, rows int, err error) {
	res, err := t.Resolution(level)
	if err != nil {
		return 0, 0, err
	}
	width := t.Extent[2] - t.Extent[0]
	height := t.Extent[3] - t.Extent[1]
	cols = int(ceilDiv(width, res*float64(t.TileWidth)))
	rows = int(ceilDiv(height, res*float64(t.TileHeight)))
	return cols, rows, nil
}

// TileExtent returns the spatial bounds of the tile at (col, row) within the
// given level. Rows count up from the grid's minimum y, TMS style.
func (t *Tileset) TileExtent(level, col, row int) ([4]float64, error) {
	res, err := t.Resolution(level)
	if err != nil {
		return [4]float64{}, err
	}
	cols, rows, err := t.GridSize(level)
	if err != nil {
		return [4]float64{}, err
	}
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return [4]float64{}, fmt.Errorf("tileset %q: tile %d,%d out of range at level %d (%dx%d)",
			t.Name, col, row, level, cols, rows)
	}

	tileW := res * float64(t.TileWidth)
	tileH := res * float64(t.TileHeight)
	minx := t.Extent[0] + float64(col)*tileW
	miny := t.Extent[1] + float64(row)*tileH
	return [4]float64{minx, miny, minx + tileW, miny + tileH}, nil
}

// MetaExtent returns the spatial bounds of the metatile containing the tile
// at (col, row), including the metabuffer margin.
func (t *Tileset) MetaExtent(level, col, row int) ([4]float64, error) {
	res, err := t.Resolution(level)
	if err != nil {
		return [4]float64{}, err
	}

	metaCol := (col / t.MetaWidth) * t.MetaWidth
	metaRow := (row / t.MetaHeight) * t.MetaHeight

	tileW := res * float64(t.TileWidth)
	tileH := res * float64(t.TileHeight)
	buf := float64(t.MetaBuffer)

	minx := t.Extent[0] + (float64(metaCol)-buf)*tileW
	miny := t.Extent[1] + (float64(metaRow)-buf)*tileH
	maxx := minx + (float64(t.MetaWidth)+2*buf)*tileW
	maxy := miny + (float64(t.MetaHeight)+2*buf)*tileH
	return [4]float64{minx, miny, maxx, maxy}, nil
}

// ExpiresDuration returns the cache-control expiry as a duration.
func (t *Tileset) ExpiresDuration() time.Duration {
	return time.Duration(t.Expires) * time.Second
}

func ceilDiv(a, b float64) float64 {
	n := a / b
	if n != float64(int(n)) {
		return float64(int(n) + 1)
	}
	return n
}
