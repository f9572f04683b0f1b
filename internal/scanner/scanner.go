package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Entry is one regular file found by a scan.
type Entry struct {
	// Path is the container path, filled in by the caller after
	// normalization. Empty straight out of the scanner.
	Path string
	// SourcePath is slash separated and rooted at the scan root's name,
	// e.g. /to-upload/sub/file.txt
	SourcePath  string
	AbsPath     string
	Fingerprint address.Address
	Size        uint64
	ModTime     time.Time
}

// Inventory is the fully assembled result of a scan, ordered by SourcePath.
type Inventory struct {
	Root    string
	Entries []*Entry
	// Warning aggregates the subtrees and files that could not be read.
	// Entries holds everything that could.
	Warning error
}

func (inv *Inventory) SourcePaths() []string {
	out := make([]string, len(inv.Entries))
	for i, e := range inv.Entries {
		out[i] = e.SourcePath
	}
	return out
}

// ScanError is returned when the scan root itself cannot be read.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %q: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

type Option func(*Scanner)

func WithRecursive(recursive bool) Option {
	return func(s *Scanner) {
		s.recursive = recursive
	}
}

func WithIgnore(ignore *IgnoreList) Option {
	return func(s *Scanner) {
		s.ignore = ignore
	}
}

// WithInclude keeps only files whose root relative path matches one of the
// doublestar patterns, e.g. "**/*.csv". Ignore rules still apply.
func WithInclude(patterns ...string) Option {
	return func(s *Scanner) {
		s.include = append(s.include, patterns...)
	}
}

// ValidatePatterns reports the first malformed include pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid include pattern %q", p)
		}
	}
	return nil
}

// WithConcurrency bounds the number of files hashed in parallel by Scan.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Scanner walks a local directory tree. It holds no state between scans;
// every Scan or Iter re-reads the filesystem.
type Scanner struct {
	root        string
	recursive   bool
	ignore      *IgnoreList
	include     []string
	concurrency int
}

func New(root string, opts ...Option) *Scanner {
	s := &Scanner{
		root:        root,
		recursive:   true,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	abs    string
	source string
	info   fs.FileInfo
}

// Iter lazily yields entries in walk order, hashing each file as it goes.
// Unreadable files and subtrees are yielded as (nil, err) and the walk
// continues. A failure on the root yields a *ScanError and stops.
func (s *Scanner) Iter(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		stopped := false
		err := s.walk(ctx, func(c candidate) bool {
			entry, err := hashEntry(c)
			if err != nil {
				stopped = !yield(nil, err)
			} else {
				stopped = !yield(entry, nil)
			}
			return !stopped
		}, func(warn error) bool {
			stopped = !yield(nil, warn)
			return !stopped
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// Scan walks the tree, hashes files in parallel and returns the inventory
// sorted by source path.
func (s *Scanner) Scan(ctx context.Context) (*Inventory, error) {
	tStart := time.Now()

	var warnings *multierror.Error
	var candidates []candidate

	err := s.walk(ctx, func(c candidate) bool {
		candidates = append(candidates, c)
		return true
	}, func(warn error) bool {
		warnings = multierror.Append(warnings, warn)
		return true
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, len(candidates))
	hashErrs := make([]error, len(candidates))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, c := range candidates {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			entries[i], hashErrs[i] = hashEntry(c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, err := range hashErrs {
		if err != nil {
			warnings = multierror.Append(warnings, err)
		}
	}

	entries = slices.DeleteFunc(entries, func(e *Entry) bool { return e == nil })
	slices.SortFunc(entries, func(a, b *Entry) int {
		return strings.Compare(a.SourcePath, b.SourcePath)
	})

	inv := &Inventory{
		Root:    s.root,
		Entries: entries,
		Warning: warnings.ErrorOrNil(),
	}

	slog.Debug("scan", "root", s.root, "files", len(entries), "recursive", s.recursive, "took", time.Since(tStart))
	if inv.Warning != nil {
		slog.Warn("scan incomplete", "root", s.root, "error", inv.Warning)
	}

	return inv, nil
}

// walk calls onFile for every regular file under the root and onWarn for
// every unreadable path. Either callback returning false stops the walk.
func (s *Scanner) walk(ctx context.Context, onFile func(candidate) bool, onWarn func(error) bool) error {
	root, err := utils.ResolvePath(s.root)
	if err != nil {
		return &ScanError{Root: s.root, Err: err}
	}

	rootInfo, err := os.Stat(root)
	if err != nil {
		return &ScanError{Root: s.root, Err: err}
	}

	rootName := filepath.Base(root)
	if rootName == string(filepath.Separator) || rootName == "." {
		rootName = ""
	}

	if rootInfo.Mode().IsRegular() {
		onFile(candidate{abs: root, source: "/" + rootName, info: rootInfo})
		return nil
	}
	if !rootInfo.IsDir() {
		return &ScanError{Root: s.root, Err: fmt.Errorf("not a regular file or directory")}
	}

	ignore := s.ignore
	if ignore == nil {
		ignore = NewIgnoreList(root)
		ignore.Load()
	}

	var stopped bool
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			if path == root {
				return &ScanError{Root: s.root, Err: walkErr}
			}
			if !onWarn(fmt.Errorf("read %q: %w", path, walkErr)) {
				stopped = true
				return fs.SkipAll
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if !s.recursive || ignore.ShouldIgnore(relPath+"/") {
				return fs.SkipDir
			}
			return nil
		}

		// symlinks, sockets, devices and pipes are not part of a file map
		if !d.Type().IsRegular() {
			return nil
		}

		if ignore.ShouldIgnore(relPath) || !s.included(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if !onWarn(fmt.Errorf("stat %q: %w", path, err)) {
				stopped = true
				return fs.SkipAll
			}
			return nil
		}

		source := "/" + relPath
		if rootName != "" {
			source = "/" + rootName + source
		}

		if !onFile(candidate{abs: path, source: source, info: info}) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})

	if stopped {
		return nil
	}

	var scanErr *ScanError
	if errors.As(walkErr, &scanErr) {
		return scanErr
	}
	return walkErr
}

func (s *Scanner) included(relPath string) bool {
	if len(s.include) == 0 {
		return true
	}
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	return false
}

func hashEntry(c candidate) (*Entry, error) {
	file, err := os.Open(c.abs)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", c.abs, err)
	}
	defer file.Close()

	fingerprint, err := address.OfReader(file)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %q: %w", c.abs, err)
	}

	return &Entry{
		SourcePath:  c.source,
		AbsPath:     c.abs,
		Fingerprint: fingerprint,
		Size:        uint64(c.info.Size()),
		ModTime:     c.info.ModTime(),
	}, nil
}
