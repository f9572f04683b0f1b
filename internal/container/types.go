package container

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/openmined/syftfiles/internal/address"
)

// FileEntry is one row of a container's file map.
type FileEntry struct {
	Path     string            `json:"path"`
	Link     address.Address   `json:"link"`
	Size     uint64            `json:"size"`
	Created  time.Time         `json:"created"`
	Modified time.Time         `json:"modified"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (e *FileEntry) Clone() *FileEntry {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = maps.Clone(e.Metadata)
	}
	return &cp
}

// FileMap maps a normalized container path to its entry.
type FileMap map[string]*FileEntry

// Paths returns the paths of the map in lexicographic order.
func (m FileMap) Paths() []string {
	return slices.Sorted(maps.Keys(m))
}

// Sorted returns the entries ordered by path.
func (m FileMap) Sorted() []*FileEntry {
	entries := slices.Collect(maps.Values(m))
	slices.SortFunc(entries, func(a, b *FileEntry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return entries
}

// Clone deep copies the map so a successor can be built without touching a
// published snapshot.
func (m FileMap) Clone() FileMap {
	out := make(FileMap, len(m))
	for p, e := range m {
		out[p] = e.Clone()
	}
	return out
}

// TotalSize sums the size of all entries.
func (m FileMap) TotalSize() uint64 {
	var total uint64
	for _, e := range m {
		total += e.Size
	}
	return total
}

// Snapshot is one immutable version of a container's file map.
type Snapshot struct {
	Address address.Address
	Version uint64
	Entries FileMap
}

// Lookup finds the entry at p. p is matched in canonical "/a/b" form.
func (s *Snapshot) Lookup(p string) (*FileEntry, bool) {
	e, ok := s.Entries[p]
	return e, ok
}

func (s *Snapshot) Len() int {
	return len(s.Entries)
}
