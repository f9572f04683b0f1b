package store

import (
	"bytes"
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openmined/syftfiles/internal/address"
)

const (
	DefaultCacheEntries  = 256
	DefaultCacheMaxBytes = 1 << 20 // blobs larger than this bypass the cache
)

// CachedContentStore keeps recently read blobs in memory. Blobs are immutable
// so cached entries never need invalidation. The cache holds its own copies;
// callers own every slice passed in or returned.
type CachedContentStore struct {
	ContentStore
	cache    *lru.Cache[string, []byte]
	maxBytes int
}

func NewCachedContentStore(inner ContentStore, entries int, maxBytes int) (*CachedContentStore, error) {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultCacheMaxBytes
	}
	cache, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	return &CachedContentStore{
		ContentStore: inner,
		cache:        cache,
		maxBytes:     maxBytes,
	}, nil
}

func (c *CachedContentStore) Put(ctx context.Context, data []byte) (address.Address, error) {
	addr, err := c.ContentStore.Put(ctx, data)
	if err != nil {
		return addr, err
	}
	c.add(addr, data)
	return addr, nil
}

func (c *CachedContentStore) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	if data, ok := c.cache.Get(addr.Key()); ok {
		slog.Debug("content cache hit", "address", addr)
		return bytes.Clone(data), nil
	}
	data, err := c.ContentStore.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.add(addr, data)
	return data, nil
}

func (c *CachedContentStore) Has(ctx context.Context, addr address.Address) (bool, error) {
	if c.cache.Contains(addr.Key()) {
		return true, nil
	}
	return c.ContentStore.Has(ctx, addr)
}

func (c *CachedContentStore) Len() int {
	return c.cache.Len()
}

func (c *CachedContentStore) add(addr address.Address, data []byte) {
	if len(data) > c.maxBytes {
		return
	}
	c.cache.Add(addr.Key(), bytes.Clone(data))
}

var _ ContentStore = (*CachedContentStore)(nil)
