package storeclient

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/server/api"
	"github.com/openmined/syftfiles/internal/store"
)

var (
	ErrNoServerURL  = errors.New("storeclient: server url missing")
	ErrUnauthorized = errors.New("storeclient: unauthorized")
	ErrRateLimited  = errors.New("storeclient: rate limited")
)

// sentinels maps api error codes to the store errors callers match on.
var sentinels = map[string]error{
	api.CodeBlobNotFound:      store.ErrNotFound,
	api.CodeContainerNotFound: store.ErrNotFound,
	api.CodeAlreadyExists:     store.ErrAlreadyExists,
	api.CodeVersionConflict:   store.ErrConflict,
	api.CodeInvalidFileMap:    container.ErrInvalidFileMap,
	api.CodeNotAContainer:     container.ErrNotAContainer,
	api.CodeUnauthorized:      ErrUnauthorized,
	api.CodeRateLimited:       ErrRateLimited,
}

// handleAPIError turns a failed request or an error response into an error
// that wraps the matching store sentinel and the *api.APIError.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil && (resp == nil || resp.Response == nil || !resp.IsErrorState()) {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if !resp.IsErrorState() {
		return nil
	}

	apiErr, ok := resp.ErrorResult().(*api.APIError)
	if !ok || apiErr == nil || apiErr.Code == "" {
		return fmt.Errorf("api error: %s: %s", operation, resp.Status)
	}

	if sentinel, ok := sentinels[apiErr.Code]; ok {
		return fmt.Errorf("%s: %w: %w", operation, sentinel, apiErr)
	}
	return fmt.Errorf("%s: %w", operation, apiErr)
}
