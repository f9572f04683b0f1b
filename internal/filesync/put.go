package filesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/scanner"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/utils"
)

type PutParams struct {
	// Root is a local directory or a single file.
	Root      string
	Recursive bool
	// DestRoot prefixes every container path.
	DestRoot string
	// Name gives the container a stable identity. Empty means random.
	Name string
	// Include keeps only files matching one of these doublestar patterns.
	Include []string
}

type PutResult struct {
	Snapshot *container.Snapshot
	Failed   []FailedFile
	// Warning is set when parts of the local tree could not be read.
	Warning error
}

// Put stores every file under params.Root and creates a new container whose
// version 0 holds them.
func (s *Service) Put(ctx context.Context, params *PutParams) (*PutResult, error) {
	tStart := time.Now()

	if params.Name != "" {
		addr := address.OfContainer(params.Name)
		if _, err := s.reader.Read(ctx, addr); err == nil {
			return nil, fmt.Errorf("container %q (%s): %w", params.Name, addr, store.ErrAlreadyExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	inv, err := s.scan(ctx, params.Root, params.Recursive, params.DestRoot, params.Include)
	if err != nil {
		return nil, err
	}

	failed, err := s.storeBlobs(ctx, inv.Entries)
	if err != nil {
		return nil, err
	}
	skip := failedSet(failed)

	entries := make(container.FileMap, len(inv.Entries))
	for _, e := range inv.Entries {
		if _, ok := skip[e.Path]; ok {
			continue
		}
		if _, dup := entries[e.Path]; dup {
			slog.Warn("put duplicate path", "path", e.Path, "source", e.SourcePath)
			continue
		}
		entries[e.Path] = newFileEntry(e)
	}

	addr, err := s.containers.Create(ctx, &store.CreateParams{
		ID:      params.Name,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	slog.Info("put", "container", addr, "files", len(entries), "failed", len(failed), "took", time.Since(tStart))

	return &PutResult{
		Snapshot: &container.Snapshot{Address: addr, Version: 0, Entries: entries},
		Failed:   failed,
		Warning:  inv.Warning,
	}, nil
}

func newFileEntry(e *scanner.Entry) *container.FileEntry {
	return &container.FileEntry{
		Path:     e.Path,
		Link:     e.Fingerprint,
		Size:     e.Size,
		Created:  e.ModTime,
		Modified: e.ModTime,
		Metadata: map[string]string{metaContentType: utils.DetectContentType(e.Path)},
	}
}
