package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/store"
)

// ContentStore keeps blobs in a map.
type ContentStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewContentStore() *ContentStore {
	return &ContentStore{blobs: make(map[string][]byte)}
}

func (s *ContentStore) Put(_ context.Context, data []byte) (address.Address, error) {
	addr := address.OfBlob(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[addr.Key()]; !ok {
		s.blobs[addr.Key()] = slices.Clone(data)
	}
	return addr, nil
}

func (s *ContentStore) Get(_ context.Context, addr address.Address) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[addr.Key()]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", addr, store.ErrNotFound)
	}
	return slices.Clone(data), nil
}

func (s *ContentStore) Has(_ context.Context, addr address.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[addr.Key()]
	return ok, nil
}

func (s *ContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// ContainerStore keeps every container as an append-only arena of snapshots
// indexed by version.
type ContainerStore struct {
	mu         sync.RWMutex
	containers map[string][]*container.Snapshot
}

func NewContainerStore() *ContainerStore {
	return &ContainerStore{containers: make(map[string][]*container.Snapshot)}
}

func (s *ContainerStore) Create(_ context.Context, params *store.CreateParams) (address.Address, error) {
	if err := container.ValidateFileMap(params.Entries); err != nil {
		return address.Undef, err
	}
	addr := params.AssignAddress()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.containers[addr.Key()]; ok {
		return address.Undef, fmt.Errorf("container %s: %w", addr, store.ErrAlreadyExists)
	}
	s.containers[addr.Key()] = []*container.Snapshot{{
		Address: addr,
		Version: 0,
		Entries: params.Entries.Clone(),
	}}
	return addr, nil
}

func (s *ContainerStore) Read(_ context.Context, addr address.Address) (*container.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.containers[addr.Key()]
	if !ok {
		return nil, fmt.Errorf("container %s: %w", addr, store.ErrNotFound)
	}
	return copySnapshot(versions[len(versions)-1]), nil
}

func (s *ContainerStore) ReadVersion(_ context.Context, addr address.Address, version uint64) (*container.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.containers[addr.Key()]
	if !ok {
		return nil, fmt.Errorf("container %s: %w", addr, store.ErrNotFound)
	}
	if version >= uint64(len(versions)) {
		return nil, fmt.Errorf("container %s version %d: %w", addr, version, store.ErrNotFound)
	}
	return copySnapshot(versions[version]), nil
}

func (s *ContainerStore) Publish(_ context.Context, params *store.PublishParams) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.containers[params.Address.Key()]
	if !ok {
		return 0, fmt.Errorf("container %s: %w", params.Address, store.ErrNotFound)
	}

	latest := versions[len(versions)-1]
	if latest.Version != params.ExpectedVersion {
		return 0, &container.ConflictError{
			Address:  params.Address,
			Expected: params.ExpectedVersion,
			Current:  latest.Version,
		}
	}

	next := &container.Snapshot{
		Address: params.Address,
		Version: latest.Version + 1,
		Entries: params.Entries.Clone(),
	}
	s.containers[params.Address.Key()] = append(versions, next)
	return next.Version, nil
}

// published snapshots never leave the arena by reference
func copySnapshot(s *container.Snapshot) *container.Snapshot {
	return &container.Snapshot{
		Address: s.Address,
		Version: s.Version,
		Entries: s.Entries.Clone(),
	}
}

var (
	_ store.ContentStore   = (*ContentStore)(nil)
	_ store.ContainerStore = (*ContainerStore)(nil)
)
