package diff

import (
	"testing"
	"time"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func local(path, content string, mtime time.Time) *scanner.Entry {
	return &scanner.Entry{
		Path:        path,
		SourcePath:  "/root" + path,
		Fingerprint: address.OfBlob([]byte(content)),
		Size:        uint64(len(content)),
		ModTime:     mtime,
	}
}

func remoteEntry(path, content string) *container.FileEntry {
	return &container.FileEntry{
		Path:     path,
		Link:     address.OfBlob([]byte(content)),
		Size:     uint64(len(content)),
		Created:  t0,
		Modified: t0,
		Metadata: map[string]string{"content-type": "text/plain"},
	}
}

func snapshot(entries ...*container.FileEntry) *container.Snapshot {
	m := container.FileMap{}
	for _, e := range entries {
		m[e.Path] = e
	}
	return &container.Snapshot{Address: address.OfContainer("c"), Version: 3, Entries: m}
}

type opView struct {
	Type OpType
	Path string
}

func view(ops []Operation) []opView {
	out := make([]opView, len(ops))
	for i, op := range ops {
		out[i] = opView{op.Type, op.Path}
	}
	return out
}

func TestDiffOrderingWithDeletions(t *testing.T) {
	remote := snapshot(remoteEntry("/A", "a"), remoteEntry("/B", "b"), remoteEntry("/C", "c"))
	locals := []*scanner.Entry{
		local("/D", "d", t1),
		local("/A", "a changed", t1),
	}

	ops := Diff(locals, remote, Options{AllowDeletions: true})
	assert.Equal(t, []opView{
		{OpUpdate, "/A"},
		{OpAdd, "/D"},
		{OpDelete, "/B"},
		{OpDelete, "/C"},
	}, view(ops))
}

func TestDiffOrderingWithoutDeletions(t *testing.T) {
	remote := snapshot(remoteEntry("/A", "a"), remoteEntry("/B", "b"), remoteEntry("/C", "c"))
	locals := []*scanner.Entry{
		local("/A", "a changed", t1),
		local("/D", "d", t1),
	}

	ops := Diff(locals, remote, Options{})
	assert.Equal(t, []opView{
		{OpUpdate, "/A"},
		{OpAdd, "/D"},
	}, view(ops))
}

func TestDiffUnchanged(t *testing.T) {
	remote := snapshot(remoteEntry("/a.txt", "same"))

	// mtime moved, content did not
	ops := Diff([]*scanner.Entry{local("/a.txt", "same", t1)}, remote, Options{AllowDeletions: true})
	assert.Empty(t, ops)
}

func TestDiffEmptyLocalWipes(t *testing.T) {
	remote := snapshot(remoteEntry("/x", "x"), remoteEntry("/a/y", "y"))

	ops := Diff(nil, remote, Options{AllowDeletions: true})
	assert.Equal(t, []opView{
		{OpDelete, "/a/y"},
		{OpDelete, "/x"},
	}, view(ops))

	assert.Empty(t, Diff(nil, remote, Options{}))
}

func TestDiffNilRemote(t *testing.T) {
	ops := Diff([]*scanner.Entry{local("/b", "b", t0), local("/a", "a", t0)}, nil, Options{AllowDeletions: true})
	assert.Equal(t, []opView{{OpAdd, "/a"}, {OpAdd, "/b"}}, view(ops))
}

func TestDiffDeterministic(t *testing.T) {
	remote := snapshot(remoteEntry("/1", "1"), remoteEntry("/2", "2"), remoteEntry("/3", "3"), remoteEntry("/4", "4"))
	locals := []*scanner.Entry{
		local("/5", "5", t0), local("/1", "x", t0), local("/6", "6", t0), local("/3", "y", t0),
	}

	first := view(Diff(locals, remote, Options{AllowDeletions: true}))
	for range 20 {
		assert.Equal(t, first, view(Diff(locals, remote, Options{AllowDeletions: true})))
	}
}

func TestDiffEntries(t *testing.T) {
	remote := snapshot(remoteEntry("/a", "old"))
	ops := Diff([]*scanner.Entry{local("/a", "new", t1), local("/b", "bb", t1)}, remote, Options{})
	require.Len(t, ops, 2)

	update := ops[0]
	assert.Equal(t, OpUpdate, update.Type)
	assert.True(t, address.OfBlob([]byte("old")).Equals(update.OldLink))
	assert.True(t, address.OfBlob([]byte("new")).Equals(update.Entry.Link))
	assert.Equal(t, uint64(3), update.Entry.Size)
	assert.Equal(t, t0, update.Entry.Created)
	assert.Equal(t, t1, update.Entry.Modified)
	assert.Equal(t, "text/plain", update.Entry.Metadata["content-type"])

	add := ops[1]
	assert.Equal(t, OpAdd, add.Type)
	assert.Equal(t, "/b", add.Entry.Path)
	assert.Equal(t, t1, add.Entry.Created)
	assert.False(t, add.OldLink.Defined())

	// the remote snapshot is left untouched
	assert.True(t, address.OfBlob([]byte("old")).Equals(remote.Entries["/a"].Link))
}

func TestApply(t *testing.T) {
	remote := snapshot(remoteEntry("/A", "a"), remoteEntry("/B", "b"), remoteEntry("/C", "c"))
	ops := Diff([]*scanner.Entry{local("/A", "a2", t1), local("/D", "d", t1)}, remote, Options{AllowDeletions: true})

	next := Apply(remote.Entries, ops)
	assert.Equal(t, []string{"/A", "/D"}, next.Paths())
	assert.True(t, address.OfBlob([]byte("a2")).Equals(next["/A"].Link))
	assert.Equal(t, []string{"/A", "/B", "/C"}, remote.Entries.Paths())

	s := Summarize(ops)
	assert.Equal(t, Summary{Added: 1, Updated: 1, Deleted: 2}, s)
	assert.False(t, s.Empty())
	assert.True(t, Summarize(nil).Empty())
}
