package filesync

import (
	"context"
	"fmt"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/store"
)

type TargetKind string

const (
	TargetBlob          TargetKind = "Blob"
	TargetContainer     TargetKind = "Container"
	TargetContainerPath TargetKind = "ContainerPath"
)

// ResolvedTarget is what an sfc url points at. Data is set for blobs,
// Snapshot for containers and container paths, Entry for container paths.
type ResolvedTarget struct {
	Kind     TargetKind
	URL      *address.URL
	Data     []byte
	Snapshot *container.Snapshot
	Entry    *container.FileEntry
}

// Resolve fetches the object named by rawURL. Malformed urls fail with an
// *address.DecodeError.
func (s *Service) Resolve(ctx context.Context, rawURL string) (*ResolvedTarget, error) {
	u, err := address.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	switch u.Address.Kind() {
	case address.KindBlob:
		if u.Version != nil {
			return nil, fmt.Errorf("invalid url %q: a blob has no versions: %w", rawURL, container.ErrNotAContainer)
		}
		data, err := s.content.Get(ctx, u.Address)
		if err != nil {
			return nil, err
		}
		return &ResolvedTarget{Kind: TargetBlob, URL: u, Data: data}, nil

	case address.KindContainer:
		var snap *container.Snapshot
		if u.Version != nil {
			snap, err = s.reader.ReadVersion(ctx, u.Address, *u.Version)
		} else {
			snap, err = s.reader.Read(ctx, u.Address)
		}
		if err != nil {
			return nil, err
		}

		if u.Path == "" {
			return &ResolvedTarget{Kind: TargetContainer, URL: u, Snapshot: snap}, nil
		}

		entry, ok := snap.Lookup(u.Path)
		if !ok {
			return nil, fmt.Errorf("path %q in container %s version %d: %w", u.Path, u.Address, snap.Version, store.ErrNotFound)
		}
		return &ResolvedTarget{Kind: TargetContainerPath, URL: u, Snapshot: snap, Entry: entry}, nil

	default:
		return nil, fmt.Errorf("resolve %q: %w", rawURL, address.ErrUnknownKind)
	}
}

// Fetch returns the content of a file entry.
func (s *Service) Fetch(ctx context.Context, entry *container.FileEntry) ([]byte, error) {
	data, err := s.content.Get(ctx, entry.Link)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", entry.Path, err)
	}
	return data, nil
}
