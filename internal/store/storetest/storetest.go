// Package storetest holds behaviour tests shared by every store backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Entry(p, content string) *container.FileEntry {
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	return &container.FileEntry{
		Path:     p,
		Link:     address.OfBlob([]byte(content)),
		Size:     uint64(len(content)),
		Created:  ts,
		Modified: ts,
	}
}

// RunContentStore exercises a ContentStore returned by newStore.
func RunContentStore(t *testing.T, newStore func(t *testing.T) store.ContentStore) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		s := newStore(t)
		data := []byte("hello world")

		addr, err := s.Put(ctx, data)
		require.NoError(t, err)
		assert.True(t, addr.IsBlob())
		assert.True(t, address.OfBlob(data).Equals(addr))

		got, err := s.Get(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		ok, err := s.Has(ctx, addr)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("put is idempotent", func(t *testing.T) {
		s := newStore(t)
		a1, err := s.Put(ctx, []byte("same"))
		require.NoError(t, err)
		a2, err := s.Put(ctx, []byte("same"))
		require.NoError(t, err)
		assert.True(t, a1.Equals(a2))
	})

	t.Run("empty blob", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Put(ctx, []byte{})
		require.NoError(t, err)
		got, err := s.Get(ctx, addr)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("missing blob", func(t *testing.T) {
		s := newStore(t)
		missing := address.OfBlob([]byte("never stored"))

		_, err := s.Get(ctx, missing)
		assert.ErrorIs(t, err, store.ErrNotFound)

		ok, err := s.Has(ctx, missing)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// RunContainerStore exercises a ContainerStore returned by newStore.
func RunContainerStore(t *testing.T, newStore func(t *testing.T) store.ContainerStore) {
	ctx := context.Background()

	initial := container.FileMap{
		"/a.txt": Entry("/a.txt", "a"),
		"/b.txt": Entry("/b.txt", "b"),
	}

	t.Run("create and read", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Create(ctx, &store.CreateParams{Entries: initial})
		require.NoError(t, err)
		assert.True(t, addr.IsContainer())

		snap, err := s.Read(ctx, addr)
		require.NoError(t, err)
		assert.True(t, addr.Equals(snap.Address))
		assert.Equal(t, uint64(0), snap.Version)
		assert.Equal(t, []string{"/a.txt", "/b.txt"}, snap.Entries.Paths())
		assert.True(t, initial["/a.txt"].Link.Equals(snap.Entries["/a.txt"].Link))
	})

	t.Run("named create collides", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Create(ctx, &store.CreateParams{ID: "photos", Entries: initial})
		require.NoError(t, err)
		assert.True(t, address.OfContainer("photos").Equals(addr))

		_, err = s.Create(ctx, &store.CreateParams{ID: "photos"})
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("random ids do not collide", func(t *testing.T) {
		s := newStore(t)
		a1, err := s.Create(ctx, &store.CreateParams{})
		require.NoError(t, err)
		a2, err := s.Create(ctx, &store.CreateParams{})
		require.NoError(t, err)
		assert.False(t, a1.Equals(a2))
	})

	t.Run("publish appends versions", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Create(ctx, &store.CreateParams{Entries: initial})
		require.NoError(t, err)

		next := initial.Clone()
		next["/c.txt"] = Entry("/c.txt", "c")
		delete(next, "/a.txt")

		v, err := s.Publish(ctx, &store.PublishParams{Address: addr, ExpectedVersion: 0, Entries: next})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)

		latest, err := s.Read(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), latest.Version)
		assert.Equal(t, []string{"/b.txt", "/c.txt"}, latest.Entries.Paths())

		old, err := s.ReadVersion(ctx, addr, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a.txt", "/b.txt"}, old.Entries.Paths())

		_, err = s.ReadVersion(ctx, addr, 2)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("stale publish conflicts", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Create(ctx, &store.CreateParams{Entries: initial})
		require.NoError(t, err)

		_, err = s.Publish(ctx, &store.PublishParams{Address: addr, ExpectedVersion: 0, Entries: initial})
		require.NoError(t, err)

		stale := container.FileMap{"/z.txt": Entry("/z.txt", "z")}
		_, err = s.Publish(ctx, &store.PublishParams{Address: addr, ExpectedVersion: 0, Entries: stale})
		require.ErrorIs(t, err, store.ErrConflict)

		var conflict *container.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, uint64(1), conflict.Current)
		assert.Equal(t, uint64(0), conflict.Expected)

		latest, err := s.Read(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), latest.Version)
		assert.NotContains(t, latest.Entries, "/z.txt")
	})

	t.Run("concurrent publishes have one winner", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Create(ctx, &store.CreateParams{Entries: initial})
		require.NoError(t, err)

		const writers = 8
		var wg sync.WaitGroup
		results := make([]error, writers)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entries := container.FileMap{}
				p := fmt.Sprintf("/w%d.txt", i)
				entries[p] = Entry(p, p)
				_, results[i] = s.Publish(ctx, &store.PublishParams{Address: addr, ExpectedVersion: 0, Entries: entries})
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, store.ErrConflict)
			}
		}
		assert.Equal(t, 1, wins)

		latest, err := s.Read(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), latest.Version)
	})

	t.Run("unknown container", func(t *testing.T) {
		s := newStore(t)
		missing := address.OfContainer("missing")

		_, err := s.Read(ctx, missing)
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Publish(ctx, &store.PublishParams{Address: missing, Entries: container.FileMap{}})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("snapshots are immutable", func(t *testing.T) {
		s := newStore(t)
		addr, err := s.Create(ctx, &store.CreateParams{Entries: initial})
		require.NoError(t, err)

		snap, err := s.Read(ctx, addr)
		require.NoError(t, err)
		delete(snap.Entries, "/a.txt")

		again, err := s.Read(ctx, addr)
		require.NoError(t, err)
		assert.Contains(t, again.Entries, "/a.txt")
	})

	t.Run("invalid entries rejected", func(t *testing.T) {
		s := newStore(t)
		bad := container.FileMap{"relative": Entry("relative", "x")}
		_, err := s.Create(ctx, &store.CreateParams{Entries: bad})
		assert.ErrorIs(t, err, container.ErrInvalidFileMap)
	})
}
