package container

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/server/api"
	"github.com/openmined/syftfiles/internal/store"
)

type ContainerHandler struct {
	containers store.ContainerStore
}

func New(containers store.ContainerStore) *ContainerHandler {
	return &ContainerHandler{containers: containers}
}

func (h *ContainerHandler) Create(ctx *gin.Context) {
	var req api.CreateContainerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind body: %w", err))
		return
	}

	entries, err := container.NewFileMap(req.Entries...)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidFileMap, err)
		return
	}

	addr, err := h.containers.Create(ctx.Request.Context(), &store.CreateParams{
		ID:      req.ID,
		Entries: entries,
	})
	if err != nil {
		abortWithStoreError(ctx, err)
		return
	}

	slog.Info("container created", "address", addr, "files", len(entries))
	ctx.PureJSON(http.StatusOK, &api.CreateContainerResponse{Address: addr})
}

// Read returns the latest snapshot, or the one named by ?version=N, as a
// file map document.
func (h *ContainerHandler) Read(ctx *gin.Context) {
	addr, ok := containerAddress(ctx)
	if !ok {
		return
	}

	var req api.ReadContainerRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind query: %w", err))
		return
	}

	var (
		snap *container.Snapshot
		err  error
	)
	if req.Version != nil {
		snap, err = h.containers.ReadVersion(ctx.Request.Context(), addr, *req.Version)
	} else {
		snap, err = h.containers.Read(ctx.Request.Context(), addr)
	}
	if err != nil {
		abortWithStoreError(ctx, err)
		return
	}

	doc, err := container.MarshalFileMap(snap.Version, snap.Entries)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeContainerOpFailed, err)
		return
	}
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

func (h *ContainerHandler) Publish(ctx *gin.Context) {
	addr, ok := containerAddress(ctx)
	if !ok {
		return
	}

	var req api.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind body: %w", err))
		return
	}

	entries, err := container.NewFileMap(req.Entries...)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidFileMap, err)
		return
	}

	version, err := h.containers.Publish(ctx.Request.Context(), &store.PublishParams{
		Address:         addr,
		ExpectedVersion: req.ExpectedVersion,
		Entries:         entries,
	})
	if err != nil {
		abortWithStoreError(ctx, err)
		return
	}

	slog.Info("container published", "address", addr, "version", version, "files", len(entries))
	ctx.PureJSON(http.StatusOK, &api.PublishResponse{Address: addr, Version: version})
}

func containerAddress(ctx *gin.Context) (address.Address, bool) {
	addr, _, err := address.Decode(ctx.Param("address"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return address.Undef, false
	}
	if !addr.IsContainer() {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeNotAContainer, fmt.Errorf("%s: %w", addr, container.ErrNotAContainer))
		return address.Undef, false
	}
	return addr, true
}

func abortWithStoreError(ctx *gin.Context, err error) {
	var conflict *container.ConflictError
	switch {
	case errors.As(err, &conflict):
		current := conflict.Current
		ctx.Abort()
		ctx.Error(err)
		ctx.PureJSON(http.StatusConflict, &api.APIError{
			Code:           api.CodeVersionConflict,
			Message:        err.Error(),
			CurrentVersion: &current,
		})
	case errors.Is(err, store.ErrConflict):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeVersionConflict, err)
	case errors.Is(err, store.ErrAlreadyExists):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeAlreadyExists, err)
	case errors.Is(err, store.ErrNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeContainerNotFound, err)
	case errors.Is(err, container.ErrInvalidFileMap):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidFileMap, err)
	case errors.Is(err, container.ErrNotAContainer):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeNotAContainer, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeContainerOpFailed, err)
	}
}
