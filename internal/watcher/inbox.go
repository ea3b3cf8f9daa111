package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InboxWatcher reports files created, changed, or removed directly inside
// one directory. Subdirectories are not watched.
type InboxWatcher struct {
	opts      Options
	dir       string
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	logger    *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
	polling bool
}

// NewInboxWatcher returns a watcher for dir. The directory is created if it
// does not exist.
func NewInboxWatcher(dir string, opts Options, logger *slog.Logger) (*InboxWatcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &InboxWatcher{
		opts:      opts,
		dir:       abs,
		debouncer: NewDebouncer(opts.Debounce),
		events:    make(chan []FileEvent, 16),
		errors:    make(chan error, 8),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *InboxWatcher) Dir() string { return w.dir }

// Polling reports whether the watcher fell back to directory scans.
func (w *InboxWatcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// Events returns debounced batches. It is closed by Stop.
func (w *InboxWatcher) Events() <-chan []FileEvent { return w.events }

// Errors returns non-fatal watch errors. It is closed by Stop.
func (w *InboxWatcher) Errors() <-chan error { return w.errors }

// Existing returns the accepted files already in the inbox.
func (w *InboxWatcher) Existing() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !w.accept(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(w.dir, e.Name()))
	}
	return out, nil
}

// Run watches until ctx is done or Stop is called.
func (w *InboxWatcher) Run(ctx context.Context) error {
	go w.forward(ctx)

	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = fsw.Add(w.dir); err == nil {
				return w.runFsnotify(ctx, fsw)
			}
			_ = fsw.Close()
		}
		w.logger.Warn("fsnotify unavailable, polling the inbox",
			slog.String("dir", w.dir), slog.String("error", err.Error()))
	}

	w.mu.Lock()
	w.polling = true
	w.mu.Unlock()
	return w.runPolling(ctx)
}

func (w *InboxWatcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	defer fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *InboxWatcher) handle(ev fsnotify.Event) {
	if filepath.Dir(ev.Name) != w.dir || !w.accept(filepath.Base(ev.Name)) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpDelete
	default:
		return
	}
	if op != OpDelete {
		if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
			return
		}
	}
	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

type fileState struct {
	modTime time.Time
	size    int64
}

func (w *InboxWatcher) runPolling(ctx context.Context) error {
	known, err := w.scan()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			current, err := w.scan()
			if err != nil {
				w.emitError(err)
				continue
			}
			now := time.Now()
			for path, st := range current {
				prev, ok := known[path]
				switch {
				case !ok:
					w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
				case prev != st:
					w.debouncer.Add(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
				}
			}
			for path := range known {
				if _, ok := current[path]; !ok {
					w.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
				}
			}
			known = current
		}
	}
}

func (w *InboxWatcher) scan() (map[string]fileState, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}
	out := make(map[string]fileState, len(entries))
	for _, e := range entries {
		if e.IsDir() || !w.accept(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(w.dir, e.Name())] = fileState{modTime: info.ModTime(), size: info.Size()}
	}
	return out, nil
}

func (w *InboxWatcher) accept(name string) bool {
	if name == "" || name[0] == '.' {
		return false
	}
	return w.opts.Filter == nil || w.opts.Filter(name)
}

func (w *InboxWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.mu.Lock()
			if !w.stopped {
				select {
				case w.events <- batch:
				default:
					w.logger.Warn("inbox event buffer full, dropping batch", slog.Int("batch_size", len(batch)))
				}
			}
			w.mu.Unlock()
		}
	}
}

func (w *InboxWatcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop ends Run and closes both channels. Safe to call twice.
func (w *InboxWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	close(w.events)
	close(w.errors)
	return nil
}
