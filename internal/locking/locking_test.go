package locking

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManager(dir)
	assert.Equal(t, dir, m.Dir())

	lock := m.TileLock("t1", 3, 12, 7)
	assert.Equal(t, filepath.Join(dir, "t1-3-12-7.lock"), lock.Path())

	require.NoError(t, lock.Lock())

	// A second handle on the same tile must not acquire while held.
	other := m.TileLock("t1", 3, 12, 7)
	ok, err := other.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Unlock())

	ok, err = other.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, other.Unlock())
}

func TestTileLockSanitizesName(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	lock := m.TileLock("a/b", 0, 0, 0)
	assert.Equal(t, filepath.Join(m.Dir(), "a_b-0-0-0.lock"), lock.Path())
}
