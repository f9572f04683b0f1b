package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rjeczalik/notify"
)

const (
	DefaultQuietPeriod = 500 * time.Millisecond
	eventBufferSize    = 256
	batchBufferSize    = 4
)

var ErrAlreadyStarted = errors.New("watcher already started")

// FilterCallback returns true if the event at path should be dropped.
type FilterCallback func(path string) bool

// Batch is the set of paths that changed during one burst of activity.
type Batch struct {
	Paths []string
	At    time.Time
}

type Option func(*Watcher)

// WithQuietPeriod sets how long the tree must stay still before a batch is
// emitted.
func WithQuietPeriod(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.quietPeriod = d
		}
	}
}

func WithRecursive(recursive bool) Option {
	return func(w *Watcher) {
		w.recursive = recursive
	}
}

func WithFilter(cb FilterCallback) Option {
	return func(w *Watcher) {
		w.filter = cb
	}
}

// Watcher coalesces file system events under a root into batches. Many
// events within the quiet period make one batch.
type Watcher struct {
	root        string
	watchPath   string
	onlyFile    string
	recursive   bool
	quietPeriod time.Duration
	filter      FilterCallback

	rawEvents chan notify.EventInfo
	batches   chan Batch
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once

	// debouncing, owned by the filter goroutine
	pending mapset.Set[string]
	timer   *time.Timer
	fire    chan struct{}
}

func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:        root,
		recursive:   true,
		quietPeriod: DefaultQuietPeriod,
		done:        make(chan struct{}),
		pending:     mapset.NewThreadUnsafeSet[string](),
		fire:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Start(ctx context.Context) error {
	if w.rawEvents != nil {
		return ErrAlreadyStarted
	}

	// events are reported with absolute, resolved paths
	root, err := filepath.Abs(w.root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	w.root = root

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	// a single file is watched through its parent directory
	switch {
	case !info.IsDir():
		w.onlyFile = w.root
		w.watchPath = filepath.Dir(w.root)
	case w.recursive:
		w.watchPath = filepath.Join(w.root, "...")
	default:
		w.watchPath = w.root
	}

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	w.batches = make(chan Batch, batchBufferSize)

	if err := notify.Watch(w.watchPath, w.rawEvents, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return fmt.Errorf("watch %s: %w", w.watchPath, err)
	}
	slog.Info("file watcher start", "path", w.watchPath, "quietPeriod", w.quietPeriod)

	w.wg.Add(1)
	go w.filterEvents(ctx)

	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.rawEvents != nil {
			notify.Stop(w.rawEvents)
		}
		w.wg.Wait()
		slog.Info("file watcher stopped", "path", w.watchPath)
	})
}

// Batches is closed once the watcher stops.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

func (w *Watcher) filterEvents(ctx context.Context) {
	defer func() {
		if w.timer != nil {
			w.timer.Stop()
		}
		if batch, ok := w.take(); ok {
			select {
			case w.batches <- batch:
			default:
				slog.Warn("file watcher dropped batch on exit", "paths", len(batch.Paths))
			}
		}

		w.wg.Done()
		close(w.batches)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.fire:
			batch, ok := w.take()
			if !ok {
				continue
			}
			select {
			case w.batches <- batch:
				slog.Debug("file watcher batch", "paths", len(batch.Paths))
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}

			path := event.Path()
			if w.onlyFile != "" && path != w.onlyFile {
				continue
			}
			if !w.recursive && filepath.Dir(path) != w.root && path != w.root {
				continue
			}
			if w.filter != nil && w.filter(path) {
				continue
			}

			w.debounce(path)
		}
	}
}

// debounce records path and restarts the quiet period.
func (w *Watcher) debounce(path string) {
	w.pending.Add(path)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quietPeriod, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

// take drains the pending paths into a batch.
func (w *Watcher) take() (Batch, bool) {
	if w.pending.Cardinality() == 0 {
		return Batch{}, false
	}
	paths := w.pending.ToSlice()
	w.pending.Clear()
	w.timer = nil

	slices.Sort(paths)
	return Batch{Paths: paths, At: time.Now()}, true
}
