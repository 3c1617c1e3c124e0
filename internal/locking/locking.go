// Package locking provides the per-tile render locks the serving layer takes
// while fetching or assembling a metatile, so concurrent requests for the
// same tile do not hit the upstream source more than once. Locks live as
// files inside the configured lock directory, which the configuration
// compiler has already probed for writability.
package locking

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// Manager hands out file locks rooted at the configured lock directory.
type Manager struct {
	dir string
}

// NewManager creates a lock manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the directory locks are created in.
func (m *Manager) Dir() string {
	return m.dir
}

// TileLock returns the lock guarding one tile (or metatile) render,
// identified by tileset name, level, and the metatile anchor coordinates.
// The caller must Unlock it when the render completes.
func (m *Manager) TileLock(tileset string, level, col, row int) *flock.Flock {
	name := fmt.Sprintf("%s-%d-%d-%d.lock", sanitize(tileset), level, col, row)
	return flock.New(filepath.Join(m.dir, name))
}

// sanitize keeps tileset names from escaping the lock directory.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, name)
}
