package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
)

var (
	ErrNotFound      = container.ErrNotFound
	ErrAlreadyExists = container.ErrAlreadyExists
	ErrConflict      = container.ErrConflict
)

// ContentStore persists immutable blobs keyed by the address of their bytes.
type ContentStore interface {
	// Put stores data and returns its blob address. Storing the same bytes
	// twice is a no-op returning the same address.
	Put(ctx context.Context, data []byte) (address.Address, error)
	// Get returns the bytes stored at addr or ErrNotFound.
	Get(ctx context.Context, addr address.Address) ([]byte, error)
	// Has reports whether addr is already stored.
	Has(ctx context.Context, addr address.Address) (bool, error)
}

// ContainerStore persists the version history of files containers.
type ContainerStore interface {
	container.Source
	// Create registers a new container with its version 0 entries.
	Create(ctx context.Context, params *CreateParams) (address.Address, error)
	// Publish appends a new version. It fails with a *container.ConflictError
	// when the latest version is not params.ExpectedVersion.
	Publish(ctx context.Context, params *PublishParams) (uint64, error)
}

type CreateParams struct {
	// ID names the container. A random id is generated when empty.
	ID      string
	Entries container.FileMap
}

type PublishParams struct {
	Address         address.Address
	ExpectedVersion uint64
	Entries         container.FileMap
}

// AssignAddress derives the container's address, generating a random id
// first when none was given.
func (p *CreateParams) AssignAddress() address.Address {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return address.OfContainer(p.ID)
}

// Validate checks the entries and the target address of a publish.
func (p *PublishParams) Validate() error {
	if !p.Address.IsContainer() {
		return container.ErrNotAContainer
	}
	return container.ValidateFileMap(p.Entries)
}
