package pipeline

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Watcher polls the frames directory and fans new frames out to a bounded
// worker pool. A frame stays claimed until its worker finishes, so a slow
// frame is never dispatched twice across polls.
type Watcher struct {
	dir      string
	interval time.Duration
	workers  int
	process  func(ctx context.Context, name string)
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewWatcher(dir string, interval time.Duration, workers int, process func(ctx context.Context, name string), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		workers:  workers,
		process:  process,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Run blocks until the context is canceled. The poll loop itself is
// single-threaded; only frame processing is concurrent.
func (w *Watcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	tasks := make(chan string)

	for range w.workers {
		g.Go(func() error {
			for name := range tasks {
				w.process(ctx, name)
				w.release(name)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(tasks)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			if err := w.scan(ctx, tasks); err != nil {
				w.logger.Error("frame directory scan failed", "dir", w.dir, "error", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

// scan dispatches every unclaimed frame file to the worker pool.
func (w *Watcher) scan(ctx context.Context, tasks chan<- string) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !IsFrameFile(e.Name()) {
			continue
		}
		name := e.Name()
		if !w.claim(name) {
			continue
		}
		select {
		case tasks <- name:
		case <-ctx.Done():
			w.release(name)
			return nil
		}
	}
	return nil
}

func (w *Watcher) claim(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inflight[name]; ok {
		return false
	}
	w.inflight[name] = struct{}{}
	return true
}

func (w *Watcher) release(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, name)
}
