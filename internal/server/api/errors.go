package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeUnauthorized   = "E_UNAUTHORIZED"    // missing or invalid bearer token

	// Blob errors
	CodeBlobNotFound  = "E_BLOB_NOT_FOUND"            // no blob stored at the address
	CodeBlobPutFailed = "E_BLOB_PUT_OPERATION_FAILED" // the blob could not be stored
	CodeBlobGetFailed = "E_BLOB_GET_OPERATION_FAILED" // the blob could not be read
	CodeBlobMismatch  = "E_BLOB_ADDRESS_MISMATCH"     // body does not hash to the expected address
	CodeBlobTooLarge  = "E_BLOB_TOO_LARGE"            // body exceeds the configured limit

	// Container errors
	CodeContainerNotFound = "E_CONTAINER_NOT_FOUND"        // unknown container or version
	CodeAlreadyExists     = "E_ALREADY_EXISTS"             // a container with the same id exists
	CodeVersionConflict   = "E_VERSION_CONFLICT"           // expected version is not the latest
	CodeInvalidFileMap    = "E_INVALID_FILE_MAP"           // entries failed validation
	CodeNotAContainer     = "E_NOT_A_CONTAINER"            // address names a blob
	CodeContainerOpFailed = "E_CONTAINER_OPERATION_FAILED" // the store failed the operation
)

// APIError is the body of every non 2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	// CurrentVersion is set on E_VERSION_CONFLICT.
	CurrentVersion *uint64 `json:"current_version,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: code=%s, message=%s", e.Code, e.Message)
}

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, &APIError{
		Code:    code,
		Message: err.Error(),
	})
}
