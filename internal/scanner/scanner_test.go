package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "to-upload")
	writeFile(t, filepath.Join(root, "file1.txt"), "one")
	writeFile(t, filepath.Join(root, "file2.txt"), "two")
	writeFile(t, filepath.Join(root, "sub", "file3.txt"), "three")
	writeFile(t, filepath.Join(root, "sub", "deep", "file4.txt"), "four")
	return root
}

func TestScanRecursive(t *testing.T) {
	root := setupTree(t)

	inv, err := New(root).Scan(context.Background())
	require.NoError(t, err)
	assert.NoError(t, inv.Warning)

	assert.Equal(t, []string{
		"/to-upload/file1.txt",
		"/to-upload/file2.txt",
		"/to-upload/sub/deep/file4.txt",
		"/to-upload/sub/file3.txt",
	}, inv.SourcePaths())

	e := inv.Entries[0]
	assert.Equal(t, uint64(3), e.Size)
	assert.True(t, address.OfBlob([]byte("one")).Equals(e.Fingerprint))
	assert.Equal(t, filepath.Join(root, "file1.txt"), e.AbsPath)
	assert.False(t, e.ModTime.IsZero())
	assert.Empty(t, e.Path)
}

func TestScanNonRecursive(t *testing.T) {
	root := setupTree(t)

	inv, err := New(root, WithRecursive(false)).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/to-upload/file1.txt",
		"/to-upload/file2.txt",
	}, inv.SourcePaths())
}

func TestScanSingleFile(t *testing.T) {
	root := setupTree(t)

	inv, err := New(filepath.Join(root, "file2.txt")).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, inv.Entries, 1)
	assert.Equal(t, "/file2.txt", inv.Entries[0].SourcePath)
}

func TestScanEmptyDir(t *testing.T) {
	root := t.TempDir()

	inv, err := New(root).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inv.Entries)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope")).Scan(context.Background())
	require.Error(t, err)

	var scanErr *ScanError
	assert.ErrorAs(t, err, &scanErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := setupTree(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "file1.txt"), filepath.Join(root, "link.txt")))

	inv, err := New(root).Scan(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, inv.SourcePaths(), "/to-upload/link.txt")
	assert.Len(t, inv.Entries, 4)
}

func TestScanIgnoreFile(t *testing.T) {
	root := setupTree(t)
	writeFile(t, filepath.Join(root, IgnoreFileName), "# comment\nsub/\n*.log\n")
	writeFile(t, filepath.Join(root, "debug.log"), "noise")
	writeFile(t, filepath.Join(root, ".DS_Store"), "noise")

	inv, err := New(root).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/to-upload/file1.txt",
		"/to-upload/file2.txt",
	}, inv.SourcePaths())
}

func TestScanUnreadableSubtree(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := setupTree(t)
	locked := filepath.Join(root, "sub")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	inv, err := New(root).Scan(context.Background())
	require.NoError(t, err)
	assert.Error(t, inv.Warning)
	assert.Equal(t, []string{
		"/to-upload/file1.txt",
		"/to-upload/file2.txt",
	}, inv.SourcePaths())
}

func TestScanCancelled(t *testing.T) {
	root := setupTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(root).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIterMatchesScan(t *testing.T) {
	root := setupTree(t)
	s := New(root, WithConcurrency(2))

	inv, err := s.Scan(context.Background())
	require.NoError(t, err)

	var seen []string
	for entry, err := range s.Iter(context.Background()) {
		require.NoError(t, err)
		seen = append(seen, entry.SourcePath)
	}
	assert.ElementsMatch(t, inv.SourcePaths(), seen)
}

func TestIterStopsEarly(t *testing.T) {
	root := setupTree(t)

	count := 0
	for _, err := range New(root).Iter(context.Background()) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestIterMissingRoot(t *testing.T) {
	var errs []error
	for entry, err := range New(filepath.Join(t.TempDir(), "nope")).Iter(context.Background()) {
		assert.Nil(t, entry)
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	var scanErr *ScanError
	assert.ErrorAs(t, errs[0], &scanErr)
}

func TestIgnoreListDefaults(t *testing.T) {
	ignore := NewIgnoreList(t.TempDir(), "build/")
	ignore.Load()

	assert.True(t, ignore.ShouldIgnore(".DS_Store"))
	assert.True(t, ignore.ShouldIgnore(IgnoreFileName))
	assert.True(t, ignore.ShouldIgnore("a/b.txt.sfc.tmp.1234"))
	assert.True(t, ignore.ShouldIgnore("build/"))
	assert.False(t, ignore.ShouldIgnore("a/b.txt"))

	var nilList *IgnoreList
	assert.False(t, nilList.ShouldIgnore("anything"))
}

func TestScanInclude(t *testing.T) {
	root := setupTree(t)
	writeFile(t, filepath.Join(root, "sub", "data.csv"), "a,b")

	inv, err := New(root, WithInclude("**/file[34].txt", "*.csv", "sub/*.csv")).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/to-upload/sub/data.csv",
		"/to-upload/sub/deep/file4.txt",
		"/to-upload/sub/file3.txt",
	}, inv.SourcePaths())

	// a single file root is taken as given
	inv, err = New(filepath.Join(root, "file1.txt"), WithInclude("*.csv")).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, inv.Entries, 1)
}

func TestValidatePatterns(t *testing.T) {
	assert.NoError(t, ValidatePatterns([]string{"**/*.go", "docs/{a,b}/*"}))
	assert.Error(t, ValidatePatterns([]string{"ok/*", "bad/[x"}))
}
