package filesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/diff"
	"github.com/openmined/syftfiles/internal/scanner"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/utils"
)

type SyncParams struct {
	Root      string
	Container address.Address
	Recursive bool
	DestRoot  string
	// AllowDeletions removes container entries missing locally.
	AllowDeletions bool
	// DryRun computes the operations without storing or publishing anything.
	DryRun bool
	// Include keeps only local files matching one of these doublestar
	// patterns. It cannot be combined with AllowDeletions.
	Include []string
}

type SyncResult struct {
	// Snapshot is the published snapshot, or the one read when nothing was
	// published.
	Snapshot     *container.Snapshot
	PriorVersion uint64
	// Operations holds the applied operations: Updates, Adds, Deletes, each
	// sorted by path. Operations whose upload failed are in Failed instead.
	Operations []diff.Operation
	Failed     []FailedFile
	Published  bool
	Warning    error
}

func (r *SyncResult) Summary() diff.Summary {
	return diff.Summarize(r.Operations)
}

// Sync brings the container at params.Container in line with the local tree
// and publishes the result as the next version. When the container moved on
// since it was read the run fails with a *StaleVersionError and nothing is
// published. A run with no changes publishes nothing.
func (s *Service) Sync(ctx context.Context, params *SyncParams) (*SyncResult, error) {
	tStart := time.Now()

	if params.AllowDeletions && len(params.Include) > 0 {
		return nil, ErrIncludeWithDeletions
	}

	prior, err := s.reader.Read(ctx, params.Container)
	if err != nil {
		return nil, err
	}

	inv, err := s.scan(ctx, params.Root, params.Recursive, params.DestRoot, params.Include)
	if err != nil {
		return nil, err
	}

	ops := diff.Diff(inv.Entries, prior, diff.Options{AllowDeletions: params.AllowDeletions})
	for _, op := range ops {
		if op.Entry != nil {
			if op.Entry.Metadata == nil {
				op.Entry.Metadata = make(map[string]string, 1)
			}
			op.Entry.Metadata[metaContentType] = utils.DetectContentType(op.Path)
		}
	}

	result := &SyncResult{
		Snapshot:     prior,
		PriorVersion: prior.Version,
		Operations:   ops,
		Warning:      inv.Warning,
	}

	if params.DryRun || len(ops) == 0 {
		slog.Debug("sync", "container", params.Container, "operations", len(ops), "dryRun", params.DryRun)
		return result, nil
	}

	var uploads []*scanner.Entry
	for _, op := range ops {
		if op.Type == diff.OpAdd || op.Type == diff.OpUpdate {
			uploads = append(uploads, op.Local)
		}
	}

	failed, err := s.storeBlobs(ctx, uploads)
	if err != nil {
		return nil, err
	}
	skip := failedSet(failed)

	applied := make([]diff.Operation, 0, len(ops))
	for _, op := range ops {
		if _, ok := skip[op.Path]; ok {
			continue
		}
		applied = append(applied, op)
	}
	result.Operations = applied
	result.Failed = failed

	if len(applied) == 0 {
		slog.Warn("sync", "container", params.Container, "published", false, "failed", len(failed))
		return result, nil
	}

	next := diff.Apply(prior.Entries, applied)
	version, err := s.containers.Publish(ctx, &store.PublishParams{
		Address:         params.Container,
		ExpectedVersion: prior.Version,
		Entries:         next,
	})
	if err != nil {
		var conflict *container.ConflictError
		if errors.As(err, &conflict) {
			return nil, &StaleVersionError{Address: params.Container, Read: prior.Version, Current: conflict.Current}
		} else if errors.Is(err, store.ErrConflict) {
			return nil, &StaleVersionError{Address: params.Container, Read: prior.Version}
		}
		return nil, fmt.Errorf("publish container %s: %w", params.Container, err)
	}

	for _, op := range applied {
		slog.Info("sync", "op", op.Type, "path", op.Path)
	}

	summary := diff.Summarize(applied)
	slog.Info("sync", "container", params.Container, "version", version,
		"added", summary.Added, "updated", summary.Updated, "deleted", summary.Deleted,
		"failed", len(failed), "took", time.Since(tStart))

	result.Snapshot = &container.Snapshot{Address: params.Container, Version: version, Entries: next}
	result.Published = true
	return result, nil
}
