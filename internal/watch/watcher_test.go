package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuiet = 200 * time.Millisecond

func resolvedTempDir(t *testing.T) string {
	t.Helper()
	// tmpdir on macos is a symlink to /private/var/folders
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func startWatcher(t *testing.T, root string, opts ...Option) *Watcher {
	t.Helper()
	w := New(root, append([]Option{WithQuietPeriod(testQuiet)}, opts...)...)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func nextBatch(t *testing.T, w *Watcher) Batch {
	t.Helper()
	select {
	case b, ok := <-w.Batches():
		require.True(t, ok, "batches closed")
		return b
	case <-time.After(3 * time.Second):
		require.FailNow(t, "timeout waiting for batch")
	}
	return Batch{}
}

func TestNew(t *testing.T) {
	w := New("/some/dir")
	assert.Equal(t, DefaultQuietPeriod, w.quietPeriod)
	assert.True(t, w.recursive)
	assert.Nil(t, w.Batches())
}

func TestWatcherCoalescesBurst(t *testing.T) {
	dir := resolvedTempDir(t)
	w := startWatcher(t, dir)

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte(strings.Repeat("x", i+1)), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	b := nextBatch(t, w)
	assert.Contains(t, b.Paths, filepath.Join(dir, "a.txt"))
	assert.Contains(t, b.Paths, filepath.Join(dir, "b.txt"))
	assert.IsNonDecreasing(t, b.Paths)
}

func TestWatcherRecursive(t *testing.T) {
	dir := resolvedTempDir(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	w := startWatcher(t, dir)

	target := filepath.Join(sub, "deep.txt")
	require.NoError(t, os.WriteFile(target, []byte("deep"), 0o644))

	b := nextBatch(t, w)
	assert.Contains(t, b.Paths, target)
}

func TestWatcherNonRecursiveIgnoresSubdirs(t *testing.T) {
	dir := resolvedTempDir(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	w := startWatcher(t, dir, WithRecursive(false))

	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("deep"), 0o644))
	top := filepath.Join(dir, "top.txt")
	require.NoError(t, os.WriteFile(top, []byte("top"), 0o644))

	b := nextBatch(t, w)
	assert.Equal(t, []string{top}, b.Paths)
}

func TestWatcherFilter(t *testing.T) {
	dir := resolvedTempDir(t)
	w := startWatcher(t, dir, WithFilter(func(path string) bool {
		return strings.HasSuffix(path, ".tmp")
	}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("x"), 0o644))
	keep := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	b := nextBatch(t, w)
	assert.Equal(t, []string{keep}, b.Paths)
}

func TestWatcherSingleFile(t *testing.T) {
	dir := resolvedTempDir(t)
	target := filepath.Join(dir, "only.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))
	w := startWatcher(t, target)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o644))

	b := nextBatch(t, w)
	assert.Equal(t, []string{target}, b.Paths)
}

func TestWatcherStopClosesBatches(t *testing.T) {
	w := New(resolvedTempDir(t), WithQuietPeriod(testQuiet))
	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)

	w.Stop()
	w.Stop()

	_, ok := <-w.Batches()
	assert.False(t, ok)
}

func TestWatcherMissingRoot(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"))
	err := w.Start(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
