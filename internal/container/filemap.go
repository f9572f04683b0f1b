package container

import (
	"fmt"

	"github.com/openmined/syftfiles/internal/pathnorm"
)

// fileMapDoc is the durable layout of a snapshot: a version counter and the
// entries ordered by path.
type fileMapDoc struct {
	Version uint64       `json:"version"`
	Entries []*FileEntry `json:"entries"`
}

// MarshalFileMap encodes a version and its entries.
func MarshalFileMap(version uint64, entries FileMap) ([]byte, error) {
	doc := fileMapDoc{
		Version: version,
		Entries: entries.Sorted(),
	}
	data, err := jsonMarshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal file map: %w", err)
	}
	return data, nil
}

// UnmarshalFileMap decodes a document written by MarshalFileMap and checks
// that it is well formed.
func UnmarshalFileMap(data []byte) (uint64, FileMap, error) {
	var doc fileMapDoc
	if err := jsonUnmarshal(data, &doc); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrInvalidFileMap, err)
	}

	entries, err := NewFileMap(doc.Entries...)
	if err != nil {
		return 0, nil, err
	}
	return doc.Version, entries, nil
}

// NewFileMap keys entries by path. Entries must be valid and paths unique.
func NewFileMap(list ...*FileEntry) (FileMap, error) {
	entries := make(FileMap, len(list))
	for _, e := range list {
		if e == nil {
			return nil, fmt.Errorf("%w: null entry", ErrInvalidFileMap)
		}
		if err := ValidateEntry(e); err != nil {
			return nil, err
		}
		if _, dup := entries[e.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate path %q", ErrInvalidFileMap, e.Path)
		}
		entries[e.Path] = e
	}
	return entries, nil
}

// ValidateEntry checks an entry's path is canonical and its link is a blob.
func ValidateEntry(e *FileEntry) error {
	if e.Path == "" || e.Path == "/" || pathnorm.Clean(e.Path) != e.Path {
		return fmt.Errorf("%w: bad path %q", ErrInvalidFileMap, e.Path)
	}
	if !e.Link.IsBlob() {
		return fmt.Errorf("%w: entry %q links to %q which is not a blob", ErrInvalidFileMap, e.Path, e.Link)
	}
	return nil
}

// ValidateFileMap validates every entry and that map keys match entry paths.
func ValidateFileMap(entries FileMap) error {
	for p, e := range entries {
		if e == nil || e.Path != p {
			return fmt.Errorf("%w: key %q does not match entry", ErrInvalidFileMap, p)
		}
		if err := ValidateEntry(e); err != nil {
			return err
		}
	}
	return nil
}
