package container

import (
	"errors"
	"fmt"

	"github.com/openmined/syftfiles/internal/address"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotAContainer  = address.ErrNotAContainer
	ErrAlreadyExists  = errors.New("container already exists")
	ErrConflict       = errors.New("version conflict")
	ErrInvalidFileMap = errors.New("invalid file map")
)

// ConflictError is returned by a publish whose expected prior version no
// longer matches the container's current version.
type ConflictError struct {
	Address  address.Address
	Expected uint64
	Current  uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: container %s is at version %d, expected %d", ErrConflict, e.Address, e.Current, e.Expected)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
