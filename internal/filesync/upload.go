package filesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/queue"
	"github.com/openmined/syftfiles/internal/scanner"
	"github.com/openmined/syftfiles/internal/utils"
	"golang.org/x/sync/errgroup"
)

var ErrChangedDuringSync = errors.New("file changed while syncing")

func resolveRoot(root string) (string, error) {
	resolved, err := utils.ResolvePath(root)
	if err != nil {
		return "", &scanner.ScanError{Root: root, Err: err}
	}
	return resolved, nil
}

// storeBlobs stores the content of every entry, at most s.concurrency at a
// time. Entries sharing a fingerprint are stored once, and small blobs go
// first. Per-file failures are returned sorted by path and do not stop the
// other uploads. The returned error is only set when ctx is done.
func (s *Service) storeBlobs(ctx context.Context, entries []*scanner.Entry) ([]FailedFile, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	groups := make(map[string][]*scanner.Entry, len(entries))
	pending := queue.NewPriority[*scanner.Entry]()
	for _, entry := range entries {
		key := entry.Fingerprint.Key()
		if _, ok := groups[key]; !ok {
			pending.Push(entry, int64(entry.Size))
		}
		groups[key] = append(groups[key], entry)
	}

	var (
		mu     sync.Mutex
		failed []FailedFile
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)

	for _, entry := range pending.Drain() {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			if err := s.storeBlob(egCtx, entry); err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				mu.Lock()
				for _, e := range groups[entry.Fingerprint.Key()] {
					slog.Error("store blob", "path", e.Path, "source", e.SourcePath, "error", err)
					failed = append(failed, FailedFile{Path: e.Path, SourcePath: e.SourcePath, Err: err})
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(failed, func(a, b FailedFile) int {
		return strings.Compare(a.Path, b.Path)
	})
	return failed, nil
}

func (s *Service) storeBlob(ctx context.Context, entry *scanner.Entry) error {
	data, err := os.ReadFile(entry.AbsPath)
	if err != nil {
		return fmt.Errorf("read %q: %w", entry.AbsPath, err)
	}

	// the bytes read now must be the bytes the diff was computed on
	if got := address.OfBlob(data); !got.Equals(entry.Fingerprint) {
		return fmt.Errorf("%w: %q", ErrChangedDuringSync, entry.AbsPath)
	}

	has, err := s.content.Has(ctx, entry.Fingerprint)
	if err != nil {
		slog.Warn("content lookup", "address", entry.Fingerprint, "error", err)
	} else if has {
		slog.Debug("store blob", "op", "SKIPPED", "reason", "already stored", "path", entry.Path)
		return nil
	}

	addr, err := s.content.Put(ctx, data)
	if err != nil {
		return fmt.Errorf("store %q: %w", entry.Path, err)
	}
	if !addr.Equals(entry.Fingerprint) {
		return fmt.Errorf("store %q: content store returned %s, expected %s", entry.Path, addr, entry.Fingerprint)
	}

	slog.Debug("store blob", "path", entry.Path, "address", addr, "size", humanize.IBytes(entry.Size))
	return nil
}

func failedSet(failed []FailedFile) map[string]struct{} {
	out := make(map[string]struct{}, len(failed))
	for _, f := range failed {
		out[f.Path] = struct{}{}
	}
	return out
}
