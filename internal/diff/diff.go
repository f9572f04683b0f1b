package diff

import (
	"log/slog"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/scanner"
)

type OpType string

const (
	OpAdd    OpType = "Add"
	OpUpdate OpType = "Update"
	OpDelete OpType = "Delete"
)

// Operation is one change needed to bring a container in line with the
// local tree.
type Operation struct {
	Type OpType
	Path string
	// Local is the scanned file for Add and Update.
	Local *scanner.Entry
	// OldLink is the blob the container held for Update and Delete.
	OldLink address.Address
	// Entry is the proposed file map entry for Add and Update.
	Entry *container.FileEntry
}

type Options struct {
	// AllowDeletions emits Delete for remote paths missing locally.
	// Without it those paths are left alone and not reported.
	AllowDeletions bool
}

// Diff compares local entries, whose Path is already normalized, against a
// remote snapshot. Operations come back as all Updates, then Adds, then
// Deletes, each group sorted by path. Fingerprint equality is authoritative;
// a file whose only change is its mtime is unchanged.
func Diff(local []*scanner.Entry, remote *container.Snapshot, opts Options) []Operation {
	localByPath := make(map[string]*scanner.Entry, len(local))
	for _, e := range local {
		if _, dup := localByPath[e.Path]; dup {
			slog.Warn("diff duplicate local path", "path", e.Path, "source", e.SourcePath)
			continue
		}
		localByPath[e.Path] = e
	}

	var remoteEntries container.FileMap
	if remote != nil {
		remoteEntries = remote.Entries
	}

	localPaths := mapset.NewThreadUnsafeSetWithSize[string](len(localByPath))
	for p := range localByPath {
		localPaths.Add(p)
	}
	remotePaths := mapset.NewThreadUnsafeSetWithSize[string](len(remoteEntries))
	for p := range remoteEntries {
		remotePaths.Add(p)
	}

	var updates, adds, deletes []Operation

	for p := range localPaths.Difference(remotePaths).Iter() {
		l := localByPath[p]
		adds = append(adds, Operation{
			Type:  OpAdd,
			Path:  p,
			Local: l,
			Entry: newEntry(l),
		})
	}

	for p := range localPaths.Intersect(remotePaths).Iter() {
		l, r := localByPath[p], remoteEntries[p]
		if l.Fingerprint.Equals(r.Link) {
			continue
		}
		updates = append(updates, Operation{
			Type:    OpUpdate,
			Path:    p,
			Local:   l,
			OldLink: r.Link,
			Entry:   updatedEntry(r, l),
		})
	}

	if opts.AllowDeletions {
		for p := range remotePaths.Difference(localPaths).Iter() {
			deletes = append(deletes, Operation{
				Type:    OpDelete,
				Path:    p,
				OldLink: remoteEntries[p].Link,
			})
		}
	}

	byPath := func(a, b Operation) int { return strings.Compare(a.Path, b.Path) }
	slices.SortFunc(updates, byPath)
	slices.SortFunc(adds, byPath)
	slices.SortFunc(deletes, byPath)

	ops := make([]Operation, 0, len(updates)+len(adds)+len(deletes))
	ops = append(ops, updates...)
	ops = append(ops, adds...)
	ops = append(ops, deletes...)
	return ops
}

// Apply builds the successor file map by applying ops onto prior. prior is
// not modified.
func Apply(prior container.FileMap, ops []Operation) container.FileMap {
	next := prior.Clone()
	for _, op := range ops {
		switch op.Type {
		case OpAdd, OpUpdate:
			next[op.Path] = op.Entry.Clone()
		case OpDelete:
			delete(next, op.Path)
		}
	}
	return next
}

// Summary counts operations by type.
type Summary struct {
	Added   int
	Updated int
	Deleted int
}

func Summarize(ops []Operation) Summary {
	var s Summary
	for _, op := range ops {
		switch op.Type {
		case OpAdd:
			s.Added++
		case OpUpdate:
			s.Updated++
		case OpDelete:
			s.Deleted++
		}
	}
	return s
}

func (s Summary) Empty() bool {
	return s.Added == 0 && s.Updated == 0 && s.Deleted == 0
}

func newEntry(l *scanner.Entry) *container.FileEntry {
	return &container.FileEntry{
		Path:     l.Path,
		Link:     l.Fingerprint,
		Size:     l.Size,
		Created:  l.ModTime,
		Modified: l.ModTime,
	}
}

// updatedEntry keeps the creation time and metadata of the remote entry.
func updatedEntry(r *container.FileEntry, l *scanner.Entry) *container.FileEntry {
	e := r.Clone()
	e.Link = l.Fingerprint
	e.Size = l.Size
	e.Modified = l.ModTime
	return e
}
