package api

import (
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
)

const (
	HeaderContentAddress = "X-Content-Address"
	ContentTypeBlob      = "application/octet-stream"
)

type PutBlobResponse struct {
	Address address.Address `json:"address"`
	Size    int             `json:"size"`
}

type CreateContainerRequest struct {
	ID      string                 `json:"id"`
	Entries []*container.FileEntry `json:"entries"`
}

type CreateContainerResponse struct {
	Address address.Address `json:"address"`
}

type PublishRequest struct {
	ExpectedVersion uint64                 `json:"expected_version"`
	Entries         []*container.FileEntry `json:"entries"`
}

type PublishResponse struct {
	Address address.Address `json:"address"`
	Version uint64          `json:"version"`
}

type ReadContainerRequest struct {
	Version *uint64 `form:"version"`
}
