package fsstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/utils"
)

const (
	blobsDir = "blobs"
	tmpDir   = "tmp"
	lockFile = "store.lock"
)

var (
	ErrStoreLocked = errors.New("content store locked by another process")
	ErrCorruptBlob = errors.New("blob content does not match its address")
	ErrStoreClosed = errors.New("content store closed")
)

// ContentStore keeps blobs as files under a data directory, one file per
// address, sharded by the last two characters of the address.
type ContentStore struct {
	root    string
	blobDir string
	tmpDir  string
	flock   *flock.Flock
}

// Open resolves dir and takes an exclusive lock on it.
func Open(dir string) (*ContentStore, error) {
	root, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", dir, err)
	}

	s := &ContentStore{
		root:    root,
		blobDir: filepath.Join(root, blobsDir),
		tmpDir:  filepath.Join(root, tmpDir),
		flock:   flock.New(filepath.Join(root, lockFile)),
	}

	for _, dir := range []string{s.blobDir, s.tmpDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	locked, err := s.flock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock content store: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	slog.Debug("content store opened", "root", root)
	return s, nil
}

func (s *ContentStore) Close() error {
	if err := s.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock content store: %w", err)
	}
	// leftovers of interrupted writes
	return os.RemoveAll(s.tmpDir)
}

func (s *ContentStore) Root() string {
	return s.root
}

func (s *ContentStore) Put(ctx context.Context, data []byte) (address.Address, error) {
	if !s.flock.Locked() {
		return address.Undef, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return address.Undef, err
	}

	addr := address.OfBlob(data)
	path := s.blobPath(addr)
	if utils.FileExists(path) {
		return addr, nil
	}

	if err := writeBlobAtomic(s.tmpDir, path, data, addr); err != nil {
		return address.Undef, fmt.Errorf("put blob %s: %w", addr, err)
	}
	return addr, nil
}

func (s *ContentStore) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.blobPath(addr))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", addr, store.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", addr, err)
	}

	if !address.OfBlob(data).Equals(addr) {
		return nil, fmt.Errorf("blob %s: %w", addr, ErrCorruptBlob)
	}
	return data, nil
}

func (s *ContentStore) Has(_ context.Context, addr address.Address) (bool, error) {
	return utils.FileExists(s.blobPath(addr)), nil
}

func (s *ContentStore) blobPath(addr address.Address) string {
	key := addr.Key()
	shard := "_"
	if len(key) > 2 {
		shard = key[len(key)-2:]
	}
	return filepath.Join(s.blobDir, shard, key)
}

// writeBlobAtomic writes body to a temp file, checks it against its address
// and renames it into place.
func writeBlobAtomic(tmpDirPath string, path string, body []byte, expected address.Address) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}

	// *.sfc.tmp.* is part of the default ignore list
	tempFile, err := os.CreateTemp(tmpDirPath, filepath.Base(path)+".sfc.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(body); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	written, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("reopen temp file: %w", err)
	}
	computed, err := address.OfReader(written)
	written.Close()
	if err != nil {
		return fmt.Errorf("hash temp file: %w", err)
	}
	if !computed.Equals(expected) {
		return fmt.Errorf("integrity check failed expected %s got %s", expected, computed)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ store.ContentStore = (*ContentStore)(nil)
