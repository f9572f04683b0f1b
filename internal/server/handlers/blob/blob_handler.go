package blob

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/server/api"
	"github.com/openmined/syftfiles/internal/store"
)

type BlobHandler struct {
	blobs   store.ContentStore
	maxSize int64
}

func New(blobs store.ContentStore, maxSize int64) *BlobHandler {
	return &BlobHandler{blobs: blobs, maxSize: maxSize}
}

// Upload stores the raw request body. When the client sends the address it
// expects, the body must hash to it.
func (h *BlobHandler) Upload(ctx *gin.Context) {
	body := ctx.Request.Body
	if h.maxSize > 0 {
		body = http.MaxBytesReader(ctx.Writer, body, h.maxSize)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodeBlobTooLarge,
				fmt.Errorf("blob exceeds %s", humanize.IBytes(uint64(h.maxSize))))
			return
		}
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("read body: %w", err))
		return
	}

	if expected := ctx.GetHeader(api.HeaderContentAddress); expected != "" {
		want, _, err := address.Decode(expected)
		if err != nil {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
			return
		}
		if got := address.OfBlob(data); !got.Equals(want) {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeBlobMismatch,
				fmt.Errorf("body hashes to %s, expected %s", got, want))
			return
		}
	}

	addr, err := h.blobs.Put(ctx.Request.Context(), data)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeBlobPutFailed, err)
		return
	}

	slog.Debug("blob stored", "address", addr, "size", humanize.IBytes(uint64(len(data))))
	ctx.PureJSON(http.StatusOK, &api.PutBlobResponse{
		Address: addr,
		Size:    len(data),
	})
}

func (h *BlobHandler) Download(ctx *gin.Context) {
	addr, ok := blobAddress(ctx)
	if !ok {
		return
	}

	data, err := h.blobs.Get(ctx.Request.Context(), addr)
	if errors.Is(err, store.ErrNotFound) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeBlobNotFound, fmt.Errorf("blob %s: %w", addr, err))
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeBlobGetFailed, err)
		return
	}

	ctx.Header(api.HeaderContentAddress, addr.String())
	ctx.Header("ETag", `"`+addr.String()+`"`)
	ctx.Header("Cache-Control", "public, max-age=31536000, immutable")
	ctx.Data(http.StatusOK, api.ContentTypeBlob, data)
}

func (h *BlobHandler) Exists(ctx *gin.Context) {
	addr, ok := blobAddress(ctx)
	if !ok {
		return
	}

	found, err := h.blobs.Has(ctx.Request.Context(), addr)
	if err != nil {
		ctx.Error(err)
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if !found {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	ctx.Header(api.HeaderContentAddress, addr.String())
	ctx.Status(http.StatusOK)
}

func blobAddress(ctx *gin.Context) (address.Address, bool) {
	addr, _, err := address.Decode(ctx.Param("address"))
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return address.Undef, false
	}
	if !addr.IsBlob() {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("%s is not a blob address", addr))
		return address.Undef, false
	}
	return addr, true
}
