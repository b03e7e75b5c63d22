package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log := discardLogger()

	entries := []tileEntry{
		{path: "a.lpc", mtime: 100},
		{path: "b.lpc", mtime: 200},
	}
	records := []TileRecord{
		tile("a.lpc", 0, 100, 0, 100),
		tile("b.lpc", 100, 200, 0, 100),
	}

	// Nothing persisted yet.
	_, ok := loadSidecar(dir, entries, log)
	assert.False(t, ok)

	require.NoError(t, saveSidecar(dir, entries, records))

	got, ok := loadSidecar(dir, entries, log)
	require.True(t, ok)
	assert.Equal(t, records, got)
}

func TestSidecarStaleOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	log := discardLogger()

	entries := []tileEntry{{path: "a.lpc", mtime: 100}}
	records := []TileRecord{tile("a.lpc", 0, 100, 0, 100)}
	require.NoError(t, saveSidecar(dir, entries, records))

	touched := []tileEntry{{path: "a.lpc", mtime: 101}}
	_, ok := loadSidecar(dir, touched, log)
	assert.False(t, ok, "changed mtime must invalidate the sidecar")

	extra := append(entries, tileEntry{path: "b.lpc", mtime: 50})
	_, ok = loadSidecar(dir, extra, log)
	assert.False(t, ok, "new file must invalidate the sidecar")
}

func TestInvalidateIndex(t *testing.T) {
	dir := t.TempDir()
	log := discardLogger()

	entries := []tileEntry{{path: "a.lpc", mtime: 100}}
	records := []TileRecord{tile("a.lpc", 0, 100, 0, 100)}
	require.NoError(t, saveSidecar(dir, entries, records))
	require.NoError(t, InvalidateIndex(dir))

	_, ok := loadSidecar(dir, entries, log)
	assert.False(t, ok)
}
