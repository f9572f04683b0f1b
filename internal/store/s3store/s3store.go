package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/store"
)

const (
	blobsPrefix      = "blobs"
	containersPrefix = "containers"
	versionWidth     = 20
)

type Config struct {
	BucketName string `mapstructure:"bucket_name" json:"bucket_name"`
	Region     string `mapstructure:"region" json:"region"`
	AccessKey  string `mapstructure:"access_key" json:"access_key"`
	SecretKey  string `mapstructure:"secret_key" json:"secret_key,omitempty"`
	Endpoint   string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	// Prefix namespaces every key inside the bucket.
	Prefix string `mapstructure:"prefix" json:"prefix,omitempty"`
}

func (c *Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("s3 bucket name is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// API is the subset of the s3 client used by the store.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store keeps blobs and container versions as objects in a bucket. Every
// container version is its own object; conditional writes (If-None-Match)
// make creating a version a compare-and-swap.
type Store struct {
	api    API
	bucket string
	prefix string
}

func New(api API, cfg *Config) *Store {
	return &Store{
		api:    api,
		bucket: cfg.BucketName,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

// NewFromConfig builds the s3 client from static credentials.
func NewFromConfig(ctx context.Context, cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	slog.Debug("s3 store", "bucket", cfg.BucketName, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return New(client, cfg), nil
}

// ===================================================================================================

func (s *Store) Put(ctx context.Context, data []byte) (address.Address, error) {
	addr := address.OfBlob(data)
	key := s.blobKey(addr)

	exists, err := s.exists(ctx, key)
	if err != nil {
		return address.Undef, fmt.Errorf("put blob %s: %w", addr, err)
	}
	if exists {
		return addr, nil
	}

	if err := s.putObject(ctx, key, data, false); err != nil {
		return address.Undef, fmt.Errorf("put blob %s: %w", addr, err)
	}
	return addr, nil
}

func (s *Store) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	data, err := s.getObject(ctx, s.blobKey(addr))
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", addr, err)
	}
	return data, nil
}

func (s *Store) Has(ctx context.Context, addr address.Address) (bool, error) {
	exists, err := s.exists(ctx, s.blobKey(addr))
	if err != nil {
		return false, fmt.Errorf("head blob %s: %w", addr, err)
	}
	return exists, nil
}

// ===================================================================================================

func (s *Store) Create(ctx context.Context, params *store.CreateParams) (address.Address, error) {
	if err := container.ValidateFileMap(params.Entries); err != nil {
		return address.Undef, err
	}
	addr := params.AssignAddress()

	data, err := container.MarshalFileMap(0, params.Entries)
	if err != nil {
		return address.Undef, err
	}

	if err := s.putObject(ctx, s.versionKey(addr, 0), data, true); err != nil {
		if isPreconditionFailed(err) {
			return address.Undef, fmt.Errorf("container %s: %w", addr, store.ErrAlreadyExists)
		}
		return address.Undef, fmt.Errorf("create container %s: %w", addr, err)
	}
	return addr, nil
}

func (s *Store) Read(ctx context.Context, addr address.Address) (*container.Snapshot, error) {
	latest, err := s.latestVersion(ctx, addr)
	if err != nil {
		return nil, err
	}
	return s.ReadVersion(ctx, addr, latest)
}

func (s *Store) ReadVersion(ctx context.Context, addr address.Address, version uint64) (*container.Snapshot, error) {
	data, err := s.getObject(ctx, s.versionKey(addr, version))
	if err != nil {
		return nil, fmt.Errorf("container %s version %d: %w", addr, version, err)
	}

	docVersion, entries, err := container.UnmarshalFileMap(data)
	if err != nil {
		return nil, fmt.Errorf("container %s version %d: %w", addr, version, err)
	}
	if docVersion != version {
		return nil, fmt.Errorf("%w: container %s object version %d holds document version %d",
			container.ErrInvalidFileMap, addr, version, docVersion)
	}

	return &container.Snapshot{Address: addr, Version: version, Entries: entries}, nil
}

func (s *Store) Publish(ctx context.Context, params *store.PublishParams) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	addr := params.Address

	latest, err := s.latestVersion(ctx, addr)
	if err != nil {
		return 0, err
	}
	if latest != params.ExpectedVersion {
		return 0, &container.ConflictError{Address: addr, Expected: params.ExpectedVersion, Current: latest}
	}

	next := latest + 1
	data, err := container.MarshalFileMap(next, params.Entries)
	if err != nil {
		return 0, err
	}

	if err := s.putObject(ctx, s.versionKey(addr, next), data, true); err != nil {
		if isPreconditionFailed(err) {
			// lost the race between listing and writing
			return 0, &container.ConflictError{Address: addr, Expected: params.ExpectedVersion, Current: next}
		}
		return 0, fmt.Errorf("publish container %s version %d: %w", addr, next, err)
	}
	return next, nil
}

// ===================================================================================================

func (s *Store) latestVersion(ctx context.Context, addr address.Address) (uint64, error) {
	prefix := s.containerPrefix(addr)
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})

	found := false
	var latest uint64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("list container %s: %w", addr, err)
		}
		for _, obj := range page.Contents {
			v, err := strconv.ParseUint(path.Base(aws.ToString(obj.Key)), 10, 64)
			if err != nil {
				slog.Warn("unexpected object in container prefix", "key", aws.ToString(obj.Key))
				continue
			}
			if !found || v > latest {
				latest = v
				found = true
			}
		}
	}

	if !found {
		return 0, fmt.Errorf("container %s: %w", addr, store.ErrNotFound)
	}
	return latest, nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *Store) putObject(ctx context.Context, key string, data []byte, ifNoneMatch bool) error {
	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ifNoneMatch {
		input.IfNoneMatch = aws.String("*")
	}
	_, err := s.api.PutObject(ctx, input)
	return err
}

func (s *Store) key(parts ...string) string {
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (s *Store) blobKey(addr address.Address) string {
	return s.key(blobsPrefix, addr.Key())
}

func (s *Store) containerPrefix(addr address.Address) string {
	return s.key(containersPrefix, addr.Key()) + "/"
}

func (s *Store) versionKey(addr address.Address, version uint64) string {
	return s.containerPrefix(addr) + fmt.Sprintf("%0*d", versionWidth, version)
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
	}
	return false
}

var (
	_ store.ContentStore   = (*Store)(nil)
	_ store.ContainerStore = (*Store)(nil)
)
