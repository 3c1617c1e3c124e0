// Package config compiles the tilecached configuration document into a
// validated, cross-referenced, immutable object graph. Compilation runs once
// at startup; the resulting Config is a read-only snapshot consumed by the
// serving layer and is replaced wholesale, never patched, on reload.
package config

import (
	"fmt"

	"github.com/gridpoint/tilecached/internal/caches"
	"github.com/gridpoint/tilecached/internal/imageio"
	"github.com/gridpoint/tilecached/internal/service"
	"github.com/gridpoint/tilecached/internal/sources"
	"github.com/gridpoint/tilecached/internal/tileset"
)

// DefaultLockDir is the lock directory used when the document does not
// override it with a <lock_dir> tag.
const DefaultLockDir = "/tmp/tilecached_locks"

// Config is the compiled root of the configuration: four name-keyed entity
// registries plus the global settings. Created once per compilation and
// immutable thereafter.
type Config struct {
	sources  map[string]sources.Source
	caches   map[string]caches.Cache
	tilesets map[string]*tileset.Tileset
	formats  map[string]imageio.Format

	// MergeFormat is the default image format used to re-encode
	// assembled metatiles when a tileset has no explicit format.
	MergeFormat imageio.Format

	// LockDir is the directory the serving layer takes render locks in.
	LockDir string

	// Services is the set of enabled protocol front-ends.
	Services service.Set
}

// New creates a Config with empty registries, default global settings, and
// the three built-in image formats pre-registered: a plain lossless PNG, a
// 256-color quantized PNG8, and a lossy JPEG. The document may silently
// override any of them by reusing the name.
func New() *Config {
	cfg := &Config{
		sources:  make(map[string]sources.Source),
		caches:   make(map[string]caches.Cache),
		tilesets: make(map[string]*tileset.Tileset),
		formats:  make(map[string]imageio.Format),
		LockDir:  DefaultLockDir,
	}

	cfg.AddFormat(imageio.NewPNGFormat("PNG", imageio.CompressionFast))
	cfg.AddFormat(imageio.NewPNGQFormat("PNG8", imageio.CompressionFast, 256))
	cfg.AddFormat(imageio.NewJPEGFormat("JPEG", imageio.DefaultQuality))
	cfg.MergeFormat, _ = cfg.Format("PNG")

	return cfg
}

// Source looks up a source by name.
func (c *Config) Source(name string) (sources.Source, bool) {
	s, ok := c.sources[name]
	return s, ok
}

// Cache looks up a cache by name.
func (c *Config) Cache(name string) (caches.Cache, bool) {
	ca, ok := c.caches[name]
	return ca, ok
}

// Tileset looks up a tileset by name.
func (c *Config) Tileset(name string) (*tileset.Tileset, bool) {
	t, ok := c.tilesets[name]
	return t, ok
}

// Format looks up an image format by name.
func (c *Config) Format(name string) (imageio.Format, bool) {
	f, ok := c.formats[name]
	return f, ok
}

// Tilesets returns the registered tilesets. The returned map is the live
// registry; callers must treat it as read-only.
func (c *Config) Tilesets() map[string]*tileset.Tileset {
	return c.tilesets
}

// AddSource registers a source under its name. A duplicate name is rejected
// before any side effect.
func (c *Config) AddSource(s sources.Source) error {
	if _, exists := c.sources[s.Name()]; exists {
		return fmt.Errorf("duplicate source with name %q", s.Name())
	}
	c.sources[s.Name()] = s
	return nil
}

// AddCache registers a cache under its name. A duplicate name is rejected
// before any side effect.
func (c *Config) AddCache(ca caches.Cache) error {
	if _, exists := c.caches[ca.Name()]; exists {
		return fmt.Errorf("duplicate cache with name %q", ca.Name())
	}
	c.caches[ca.Name()] = ca
	return nil
}

// AddTileset registers a tileset under its name. A duplicate name is
// rejected before any side effect.
func (c *Config) AddTileset(t *tileset.Tileset) error {
	if _, exists := c.tilesets[t.Name]; exists {
		return fmt.Errorf("duplicate tileset with name %q", t.Name)
	}
	c.tilesets[t.Name] = t
	return nil
}

// AddFormat registers an image format under its name, overwriting any
// previous format of that name, built-ins included.
func (c *Config) AddFormat(f imageio.Format) {
	c.formats[f.Name()] = f
}
