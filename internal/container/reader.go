package container

import (
	"context"
	"fmt"

	"github.com/openmined/syftfiles/internal/address"
)

// Source is the read side of a container store.
type Source interface {
	Read(ctx context.Context, addr address.Address) (*Snapshot, error)
	ReadVersion(ctx context.Context, addr address.Address, version uint64) (*Snapshot, error)
}

// Reader fetches container snapshots. It keeps no cache, every call
// reflects the store at call time.
type Reader struct {
	source Source
}

func NewReader(source Source) *Reader {
	return &Reader{source: source}
}

// Read returns the latest snapshot of the container at addr.
func (r *Reader) Read(ctx context.Context, addr address.Address) (*Snapshot, error) {
	if err := checkContainer(addr); err != nil {
		return nil, err
	}
	snap, err := r.source.Read(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("read container %s: %w", addr, err)
	}
	return snap, nil
}

// ReadVersion returns a specific historic snapshot.
func (r *Reader) ReadVersion(ctx context.Context, addr address.Address, version uint64) (*Snapshot, error) {
	if err := checkContainer(addr); err != nil {
		return nil, err
	}
	snap, err := r.source.ReadVersion(ctx, addr, version)
	if err != nil {
		return nil, fmt.Errorf("read container %s version %d: %w", addr, version, err)
	}
	return snap, nil
}

func checkContainer(addr address.Address) error {
	switch addr.Kind() {
	case address.KindContainer:
		return nil
	case address.KindBlob:
		return fmt.Errorf("%w: %s is a blob", ErrNotAContainer, addr)
	default:
		return fmt.Errorf("%w: undefined address", ErrNotFound)
	}
}
