package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContentStore(t *testing.T) {
	storetest.RunContentStore(t, func(t *testing.T) store.ContentStore {
		return openTemp(t)
	})
}

func TestContainerStore(t *testing.T) {
	storetest.RunContainerStore(t, func(t *testing.T) store.ContainerStore {
		return openTemp(t)
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := Open(path)
	require.NoError(t, err)
	addr, err := s.Create(ctx, &store.CreateParams{
		ID:      "docs",
		Entries: container.FileMap{"/a.txt": storetest.Entry("/a.txt", "a")},
	})
	require.NoError(t, err)
	_, err = s.Publish(ctx, &store.PublishParams{Address: addr, ExpectedVersion: 0, Entries: container.FileMap{}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Read(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Empty(t, snap.Entries)

	versions, err := s.Versions(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, versions)
}

func TestMemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	addr, err := s.Put(context.Background(), []byte("in memory"))
	require.NoError(t, err)
	ok, err := s.Has(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenAppliesStorePragmas(t *testing.T) {
	s := openTemp(t)

	var foreignKeys int
	require.NoError(t, s.db.Get(&foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, foreignKeys)

	var synchronous int
	require.NoError(t, s.db.Get(&synchronous, "PRAGMA synchronous"))
	assert.Equal(t, 1, synchronous) // NORMAL

	assert.Equal(t, 1, s.db.Stats().MaxOpenConnections)
}
