package storage_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortcut-panel/storage"
)

func TestNewLocalMissingFile(t *testing.T) {
	l, err := storage.NewLocal(filepath.Join(t.TempDir(), "nonexistent.json"))
	require.NoError(t, err)

	_, ok := l.GetItem("anything")
	assert.False(t, ok)
}

func TestNewLocalCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := storage.NewLocal(path)
	assert.Error(t, err)
}

func TestLocalSetAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	l, err := storage.NewLocal(path)
	require.NoError(t, err)

	require.NoError(t, l.SetItem("shortcutTabState", `{"selectedIndex":2}`))

	reloaded, err := storage.NewLocal(path)
	require.NoError(t, err)
	v, ok := reloaded.GetItem("shortcutTabState")
	require.True(t, ok)
	assert.Equal(t, `{"selectedIndex":2}`, v)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestLocalRemoveItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	l, _ := storage.NewLocal(path)

	require.NoError(t, l.SetItem("a", "1"))
	require.NoError(t, l.SetItem("b", "2"))
	require.NoError(t, l.RemoveItem("a"))
	require.NoError(t, l.RemoveItem("missing"))

	reloaded, err := storage.NewLocal(path)
	require.NoError(t, err)
	_, ok := reloaded.GetItem("a")
	assert.False(t, ok)
	v, ok := reloaded.GetItem("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestLocalWriteFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// The parent "directory" is a regular file, so MkdirAll fails.
	l, err := storage.NewLocal(filepath.Join(blocker, "state.json"))
	require.NoError(t, err)

	assert.Error(t, l.SetItem("k", "v"))
	_, ok := l.GetItem("k")
	assert.False(t, ok)
}

func TestLocalConcurrentSet(t *testing.T) {
	l, _ := storage.NewLocal(filepath.Join(t.TempDir(), "state.json"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.SetItem("k", string(rune('a'+n)))
		}(i)
	}
	wg.Wait()

	_, ok := l.GetItem("k")
	assert.True(t, ok)
}
