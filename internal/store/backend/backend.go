package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/store/fsstore"
	"github.com/openmined/syftfiles/internal/store/memstore"
	"github.com/openmined/syftfiles/internal/store/s3store"
	"github.com/openmined/syftfiles/internal/store/sqlstore"
)

type Kind string

const (
	// KindLocal keeps blobs as files and container history in sqlite.
	KindLocal Kind = "local"
	// KindSqlite keeps everything in one sqlite database.
	KindSqlite Kind = "sqlite"
	KindS3     Kind = "s3"
	KindMemory Kind = "memory"
)

const (
	blobsDirName   = "blobs"
	sqliteFileName = "containers.db"
)

var ErrUnknownKind = errors.New("unknown store kind")

type Config struct {
	Kind Kind   `mapstructure:"kind" json:"kind"`
	Dir  string `mapstructure:"dir" json:"dir,omitempty"`
	// S3 is required for KindS3.
	S3 *s3store.Config `mapstructure:"s3" json:"s3,omitempty"`
	// CacheEntries bounds the in-memory blob cache. Zero disables it.
	CacheEntries  int `mapstructure:"cache_entries" json:"cache_entries,omitempty"`
	CacheMaxBytes int `mapstructure:"cache_max_bytes" json:"cache_max_bytes,omitempty"`
}

func (c *Config) Validate() error {
	switch c.Kind {
	case KindLocal, KindSqlite:
		if c.Dir == "" {
			return fmt.Errorf("store `dir` is required for kind %q", c.Kind)
		}
	case KindS3:
		if c.S3 == nil {
			return fmt.Errorf("store `s3` is required for kind %q", c.Kind)
		}
		return c.S3.Validate()
	case KindMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

// Backend is an opened pair of content and container stores.
type Backend struct {
	Kind       Kind
	Content    store.ContentStore
	Containers store.ContainerStore
	closers    []io.Closer
}

// Open builds the stores described by cfg.
func Open(ctx context.Context, cfg *Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{Kind: cfg.Kind}

	switch cfg.Kind {
	case KindLocal:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		blobs, err := fsstore.Open(filepath.Join(cfg.Dir, blobsDirName))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, blobs)

		db, err := sqlstore.Open(filepath.Join(cfg.Dir, sqliteFileName))
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, db)
		b.Content, b.Containers = blobs, db

	case KindSqlite:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		db, err := sqlstore.Open(filepath.Join(cfg.Dir, sqliteFileName))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db)
		b.Content, b.Containers = db, db

	case KindS3:
		s3, err := s3store.NewFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		b.Content, b.Containers = s3, s3

	case KindMemory:
		b.Content, b.Containers = memstore.NewContentStore(), memstore.NewContainerStore()
	}

	if cfg.CacheEntries > 0 {
		maxBytes := cfg.CacheMaxBytes
		if maxBytes <= 0 {
			maxBytes = store.DefaultCacheMaxBytes
		}
		cached, err := store.NewCachedContentStore(b.Content, cfg.CacheEntries, maxBytes)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Content = cached
	}

	slog.Debug("store opened", "kind", cfg.Kind, "dir", cfg.Dir, "cacheEntries", cfg.CacheEntries)
	return b, nil
}

// Close releases file locks and database handles.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
