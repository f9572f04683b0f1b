package storeclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/server/api"
	"github.com/openmined/syftfiles/internal/session"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/version"
)

const (
	HeaderVersion = "X-Syftfiles-Version"

	v1Blobs             = "/api/v1/blobs"
	v1Blob              = "/api/v1/blobs/{address}"
	v1Containers        = "/api/v1/containers"
	v1Container         = "/api/v1/containers/{address}"
	v1ContainerVersions = "/api/v1/containers/{address}/versions"
)

type Option func(*req.Client)

// WithToken sends token on every request that carries no session token.
func WithToken(token string) Option {
	return func(c *req.Client) {
		if token != "" {
			c.SetCommonBearerAuthToken(token)
		}
	}
}

func WithRetry(count int, interval time.Duration) Option {
	return func(c *req.Client) {
		c.SetCommonRetryCount(count).SetCommonRetryFixedInterval(interval)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *req.Client) {
		c.SetTimeout(d)
	}
}

// Client talks to a syftfiles server. It implements both store.ContentStore
// and store.ContainerStore.
type Client struct {
	client  *req.Client
	baseURL string
}

var (
	_ store.ContentStore   = (*Client)(nil)
	_ store.ContainerStore = (*Client)(nil)
)

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(version.UserAgent("client")).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonErrorResult(&api.APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	for _, opt := range opts {
		opt(client)
	}

	return &Client{client: client, baseURL: baseURL}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// r starts a request bound to ctx, authenticated with the session token
// when one is attached.
func (c *Client) r(ctx context.Context) *req.Request {
	r := c.client.R().SetContext(ctx)
	if token := session.Token(ctx); token != "" {
		r.SetBearerAuthToken(token)
	}
	return r
}

func (c *Client) Put(ctx context.Context, data []byte) (address.Address, error) {
	expected := address.OfBlob(data)

	var apiResp api.PutBlobResponse
	resp, err := c.r(ctx).
		SetHeader("Content-Type", api.ContentTypeBlob).
		SetHeader(api.HeaderContentAddress, expected.String()).
		SetBodyBytes(data).
		SetSuccessResult(&apiResp).
		Put(v1Blobs)
	if err := handleAPIError(resp, err, "blob put"); err != nil {
		return address.Undef, err
	}

	if !apiResp.Address.Equals(expected) {
		return address.Undef, fmt.Errorf("blob put: server stored %s, expected %s", apiResp.Address, expected)
	}
	return apiResp.Address, nil
}

func (c *Client) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	resp, err := c.r(ctx).
		SetPathParam("address", addr.String()).
		Get(v1Blob)
	if err := handleAPIError(resp, err, "blob get"); err != nil {
		return nil, err
	}

	data := resp.Bytes()
	if got := address.OfBlob(data); !got.Equals(addr) {
		return nil, fmt.Errorf("blob get: body hashes to %s, expected %s", got, addr)
	}
	return data, nil
}

func (c *Client) Has(ctx context.Context, addr address.Address) (bool, error) {
	resp, err := c.r(ctx).
		SetPathParam("address", addr.String()).
		Head(v1Blob)
	if resp != nil && resp.Response != nil {
		switch resp.StatusCode {
		case 200:
			return true, nil
		case 404:
			return false, nil
		}
	}
	return false, handleAPIError(resp, err, "blob exists")
}

func (c *Client) Create(ctx context.Context, params *store.CreateParams) (address.Address, error) {
	if err := container.ValidateFileMap(params.Entries); err != nil {
		return address.Undef, err
	}

	var apiResp api.CreateContainerResponse
	resp, err := c.r(ctx).
		SetBody(&api.CreateContainerRequest{
			ID:      params.ID,
			Entries: params.Entries.Sorted(),
		}).
		SetSuccessResult(&apiResp).
		Post(v1Containers)
	if err := handleAPIError(resp, err, "container create"); err != nil {
		return address.Undef, err
	}
	return apiResp.Address, nil
}

func (c *Client) Read(ctx context.Context, addr address.Address) (*container.Snapshot, error) {
	return c.read(ctx, addr, nil)
}

func (c *Client) ReadVersion(ctx context.Context, addr address.Address, v uint64) (*container.Snapshot, error) {
	return c.read(ctx, addr, &v)
}

func (c *Client) read(ctx context.Context, addr address.Address, want *uint64) (*container.Snapshot, error) {
	r := c.r(ctx).SetPathParam("address", addr.String())
	if want != nil {
		r.SetQueryParam("version", strconv.FormatUint(*want, 10))
	}

	resp, err := r.Get(v1Container)
	if err := handleAPIError(resp, err, "container read"); err != nil {
		return nil, err
	}

	got, entries, err := container.UnmarshalFileMap(resp.Bytes())
	if err != nil {
		return nil, fmt.Errorf("container read %s: %w", addr, err)
	}
	if want != nil && got != *want {
		return nil, fmt.Errorf("container read %s: server returned version %d, asked for %d", addr, got, *want)
	}
	return &container.Snapshot{Address: addr, Version: got, Entries: entries}, nil
}

func (c *Client) Publish(ctx context.Context, params *store.PublishParams) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}

	var apiResp api.PublishResponse
	resp, err := c.r(ctx).
		SetPathParam("address", params.Address.String()).
		SetBody(&api.PublishRequest{
			ExpectedVersion: params.ExpectedVersion,
			Entries:         params.Entries.Sorted(),
		}).
		SetSuccessResult(&apiResp).
		Post(v1ContainerVersions)
	if err := handleAPIError(resp, err, "container publish"); err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Code == api.CodeVersionConflict && apiErr.CurrentVersion != nil {
			return 0, &container.ConflictError{
				Address:  params.Address,
				Expected: params.ExpectedVersion,
				Current:  *apiErr.CurrentVersion,
			}
		}
		return 0, err
	}
	return apiResp.Version, nil
}
