package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/store/fsstore"
	"github.com/openmined/syftfiles/internal/store/s3store"
	"github.com/openmined/syftfiles/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackend(t *testing.T, cfg *Config) *Backend {
	t.Helper()
	b, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackendKinds(t *testing.T) {
	for _, kind := range []Kind{KindLocal, KindSqlite, KindMemory} {
		t.Run(string(kind), func(t *testing.T) {
			storetest.RunContentStore(t, func(t *testing.T) store.ContentStore {
				return openBackend(t, &Config{Kind: kind, Dir: t.TempDir()}).Content
			})
			storetest.RunContainerStore(t, func(t *testing.T) store.ContainerStore {
				return openBackend(t, &Config{Kind: kind, Dir: t.TempDir()}).Containers
			})
		})
	}
}

func TestBackendCache(t *testing.T) {
	b := openBackend(t, &Config{Kind: KindMemory, CacheEntries: 8})

	cached, ok := b.Content.(*store.CachedContentStore)
	require.True(t, ok)

	addr, err := b.Content.Put(context.Background(), []byte("hello"))
	require.NoError(t, err)
	_, err = b.Content.Get(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Len())
}

func TestBackendLocalLocksDir(t *testing.T) {
	dir := t.TempDir()
	openBackend(t, &Config{Kind: KindLocal, Dir: dir})

	_, err := Open(context.Background(), &Config{Kind: KindLocal, Dir: dir})
	assert.ErrorIs(t, err, fsstore.ErrStoreLocked)
}

func TestBackendLocalReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(ctx, &Config{Kind: KindLocal, Dir: dir})
	require.NoError(t, err)
	addr, err := b.Containers.Create(ctx, &store.CreateParams{ID: "photos"})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	assert.FileExists(t, filepath.Join(dir, sqliteFileName))
	assert.DirExists(t, filepath.Join(dir, blobsDirName))

	b = openBackend(t, &Config{Kind: KindLocal, Dir: dir})
	snap, err := b.Containers.Read(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Version)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{Kind: KindMemory}).Validate())
	assert.Error(t, (&Config{Kind: KindLocal}).Validate())
	assert.Error(t, (&Config{Kind: KindS3}).Validate())
	assert.Error(t, (&Config{Kind: KindS3, S3: &s3store.Config{}}).Validate())
	assert.ErrorIs(t, (&Config{Kind: "ftp"}).Validate(), ErrUnknownKind)
}
