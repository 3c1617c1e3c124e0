package caches

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beevik/etree"
)

// DiskCache stores tiles as individual files under a base directory.
type DiskCache struct {
	name string

	// Base is the root directory tiles are stored under, from the
	// <base> tag.
	Base string

	// SymlinkBlank deduplicates identical tile payloads: the bytes are
	// stored once under a shared blob directory and each tile becomes a
	// symlink to it. Large uniform areas (ocean, empty land) collapse to
	// one file per distinct payload. From the <symlink_blank> tag.
	SymlinkBlank bool
}

// NewDiskCache creates an unconfigured disk cache.
func NewDiskCache(name string) *DiskCache {
	return &DiskCache{name: name}
}

// Name returns the unique registered name of the cache.
func (c *DiskCache) Name() string { return c.name }

// Configure interprets the cache subtree: <base> holds the storage root and
// <symlink_blank> enables payload deduplication unless its text is exactly
// "false".
func (c *DiskCache) Configure(node *etree.Element) error {
	for _, child := range node.ChildElements() {
		switch child.Tag {
		case "base":
			c.Base = child.Text()
		case "symlink_blank":
			c.SymlinkBlank = child.Text() != "false"
		}
	}
	return nil
}

// Check validates that the cache has a storage root configured.
func (c *DiskCache) Check() error {
	if c.Base == "" {
		return fmt.Errorf("disk cache %q has no <base> directory configured", c.name)
	}
	return nil
}

// TilePath returns the on-disk path for a tile key. The layout groups tiles
// by tileset and level, then splits the column space to keep directories
// small: <base>/<tileset>/<level>/<col/1000>/<col>/<row>.<ext>
func (c *DiskCache) TilePath(key Key) string {
	return filepath.Join(
		c.Base,
		key.Tileset,
		strconv.Itoa(key.Level),
		strconv.Itoa(key.Col/1000),
		strconv.Itoa(key.Col),
		strconv.Itoa(key.Row)+"."+key.Extension,
	)
}

// Has reports whether a tile file exists.
func (c *DiskCache) Has(key Key) bool {
	_, err := os.Stat(c.TilePath(key))
	return err == nil
}

// Get returns the stored bytes for a tile.
func (c *DiskCache) Get(key Key) ([]byte, bool, error) {
	data, err := os.ReadFile(c.TilePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("disk cache %q: failed to read tile: %w", c.name, err)
	}
	return data, true, nil
}

// Set stores the bytes for a tile, creating the directory hierarchy as
// needed. The tile is written to a temporary file first and renamed into
// place so concurrent readers never observe a partial tile. With
// SymlinkBlank enabled the payload is stored once in a shared blob
// directory and the tile becomes a symlink to it.
func (c *DiskCache) Set(key Key, data []byte) error {
	path := c.TilePath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("disk cache %q: failed to create tile directory: %w", c.name, err)
	}

	if c.SymlinkBlank {
		return c.linkTile(path, key.Extension, data)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("disk cache %q: failed to create temporary tile: %w", c.name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("disk cache %q: failed to write tile: %w", c.name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("disk cache %q: failed to close tile: %w", c.name, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("disk cache %q: failed to store tile: %w", c.name, err)
	}
	return nil
}

// blankPath returns the shared blob file for a payload, named by its digest.
func (c *DiskCache) blankPath(extension string, data []byte) string {
	sum := sha1.Sum(data)
	return filepath.Join(c.Base, "blanks", hex.EncodeToString(sum[:])+"."+extension)
}

// linkTile stores the payload in the shared blob directory if it is not
// there yet and symlinks the tile path to it.
func (c *DiskCache) linkTile(path, extension string, data []byte) error {
	blank := c.blankPath(extension, data)
	if _, err := os.Stat(blank); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(blank), 0o755); err != nil {
			return fmt.Errorf("disk cache %q: failed to create blank directory: %w", c.name, err)
		}
		tmp, err := os.CreateTemp(filepath.Dir(blank), filepath.Base(blank)+".tmp*")
		if err != nil {
			return fmt.Errorf("disk cache %q: failed to create temporary blank: %w", c.name, err)
		}
		tmpName := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			return fmt.Errorf("disk cache %q: failed to write blank: %w", c.name, err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("disk cache %q: failed to close blank: %w", c.name, err)
		}
		if err := os.Rename(tmpName, blank); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("disk cache %q: failed to store blank: %w", c.name, err)
		}
	} else if err != nil {
		return fmt.Errorf("disk cache %q: failed to stat blank: %w", c.name, err)
	}

	// Replace any previous tile, then link. A dangling remove error
	// surfaces through the symlink call.
	_ = os.Remove(path)
	if err := os.Symlink(blank, path); err != nil {
		return fmt.Errorf("disk cache %q: failed to link tile: %w", c.name, err)
	}
	return nil
}
