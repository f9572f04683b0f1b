package filesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/pathnorm"
	"github.com/openmined/syftfiles/internal/scanner"
	"github.com/openmined/syftfiles/internal/store"
)

const (
	DefaultUploadConcurrency = 4
	metaContentType          = "content-type"
)

var (
	ErrStaleVersion = errors.New("stale container version")

	// ErrIncludeWithDeletions is returned by Sync when both Include and
	// AllowDeletions are set.
	ErrIncludeWithDeletions = errors.New("include patterns cannot be combined with deletions")
)

// StaleVersionError is returned by Sync when another writer published a
// newer version after this run read the container. Nothing was published.
type StaleVersionError struct {
	Address address.Address
	Read    uint64
	Current uint64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("%s: container %s moved from version %d to %d while syncing, re-read the container and retry",
		ErrStaleVersion, e.Address, e.Read, e.Current)
}

func (e *StaleVersionError) Unwrap() error {
	return ErrStaleVersion
}

// FailedFile is a local file that could not be stored. It is left out of
// the published snapshot.
type FailedFile struct {
	Path       string
	SourcePath string
	Err        error
}

func (f FailedFile) Error() string {
	return fmt.Sprintf("%s: %v", f.SourcePath, f.Err)
}

type Option func(*Service)

// WithUploadConcurrency bounds the number of blobs stored in parallel.
func WithUploadConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithIgnoreRules adds gitignore style rules applied to every scan on top of
// the root's ignore file.
func WithIgnoreRules(rules ...string) Option {
	return func(s *Service) {
		s.ignoreRules = append(s.ignoreRules, rules...)
	}
}

// Service mirrors local trees into files containers and resolves sfc urls.
// It keeps no state between calls.
type Service struct {
	content     store.ContentStore
	containers  store.ContainerStore
	reader      *container.Reader
	concurrency int
	ignoreRules []string
}

func NewService(content store.ContentStore, containers store.ContainerStore, opts ...Option) *Service {
	s := &Service{
		content:     content,
		containers:  containers,
		reader:      container.NewReader(containers),
		concurrency: DefaultUploadConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scan walks root and fills in each entry's container path.
func (s *Service) scan(ctx context.Context, root string, recursive bool, destRoot string, include []string) (*scanner.Inventory, error) {
	resolved, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	if err := scanner.ValidatePatterns(include); err != nil {
		return nil, err
	}

	ignore := scanner.NewIgnoreList(resolved, s.ignoreRules...)
	ignore.Load()

	inv, err := scanner.New(resolved,
		scanner.WithRecursive(recursive),
		scanner.WithIgnore(ignore),
		scanner.WithInclude(include...),
	).Scan(ctx)
	if err != nil {
		return nil, err
	}

	// a directory root is stripped from every path, a single file keeps its name
	anchor := "/"
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		anchor = "/" + filepath.Base(resolved)
	}

	paths := pathnorm.NormalizeUnder(inv.SourcePaths(), anchor, destRoot)
	for i, e := range inv.Entries {
		e.Path = paths[i]
	}

	slog.Debug("scan normalized", "root", resolved, "files", len(inv.Entries), "destRoot", destRoot)
	return inv, nil
}
