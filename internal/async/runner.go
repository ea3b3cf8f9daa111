package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Defaults for RunnerConfig.
const (
	DefaultWorkers       = 2
	DefaultTaskRetention = 24 * time.Hour
)

// ErrRunnerClosed is returned by Submit after Close.
var ErrRunnerClosed = errors.New("task runner is closed")

// Request identifies the document a job ingests.
type Request struct {
	TaskID     string
	DocumentID string
	SourcePath string
}

// Job runs the ingestion pipeline for one request, reporting checkpoints
// through task.SetProgress.
type Job func(ctx context.Context, req Request, task *Task) error

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Workers   int
	Retention time.Duration
}

// Runner dispatches ingestion jobs to a bounded pool of workers and keeps
// their task records. The task map has its own lock, independent of the
// index lock.
type Runner struct {
	cfg    RunnerConfig
	job    Job
	sem    *semaphore.Weighted
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	tasks  map[string]*Task
	closed bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner that executes job for every submitted task.
func NewRunner(cfg RunnerConfig, job Job, opts ...RunnerOption) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultTaskRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cfg:    cfg,
		job:    job,
		sem:    semaphore.NewWeighted(int64(cfg.Workers)),
		logger: slog.Default(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit creates a pending task and starts it as soon as a worker is free.
// It returns immediately.
func (r *Runner) Submit(documentID, sourcePath string) (TaskSnapshot, error) {
	if documentID == "" {
		return TaskSnapshot{}, docerrors.ValidationError("document id must not be empty", nil)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return TaskSnapshot{}, ErrRunnerClosed
	}
	task := newTask(uuid.NewString(), documentID, sourcePath, r.now())
	r.tasks[task.id] = task
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(task)

	r.logger.Info("ingestion task submitted",
		slog.String("task_id", task.id),
		slog.String("document_id", documentID),
		slog.String("source", sourcePath))
	return task.Snapshot(), nil
}

func (r *Runner) run(task *Task) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		task.fail(fmt.Errorf("task cancelled before start: %w", err), r.now())
		return
	}
	defer r.sem.Release(1)

	task.start(r.now())
	start := time.Now()
	req := Request{TaskID: task.id, DocumentID: task.documentID, SourcePath: task.sourcePath}

	err := r.safeRun(req, task)
	if err != nil {
		task.fail(err, r.now())
		r.logger.Error("ingestion task failed",
			append([]any{
				slog.String("task_id", task.id),
				slog.String("document_id", task.documentID),
			}, docerrors.LogAttrs(err)...)...)
		return
	}

	task.complete(r.now())
	r.logger.Info("ingestion task completed",
		slog.String("task_id", task.id),
		slog.String("document_id", task.documentID),
		slog.Duration("duration", time.Since(start)))
}

// safeRun turns a panicking job into a failed task.
func (r *Runner) safeRun(req Request, task *Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("ingestion panicked: %v", p)
		}
	}()
	// Close does not interrupt running jobs.
	return r.job(context.WithoutCancel(r.ctx), req, task)
}

// Get returns a snapshot of the task with id.
func (r *Runner) Get(id string) (TaskSnapshot, bool) {
	r.mu.RLock()
	task, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok {
		return TaskSnapshot{}, false
	}
	return task.Snapshot(), true
}

// List returns snapshots of all tasks, oldest first.
func (r *Runner) List() []TaskSnapshot {
	r.mu.RLock()
	out := make([]TaskSnapshot, 0, len(r.tasks))
	for _, task := range r.tasks {
		out = append(out, task.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Cleanup drops terminal tasks that finished more than maxAge ago and
// returns how many were removed.
func (r *Runner) Cleanup(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, task := range r.tasks {
		if task.expired(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("expired tasks removed", slog.Int("count", removed))
	}
	return removed
}

// StartGC runs Cleanup with the configured retention every interval until
// ctx is done or the runner is closed.
func (r *Runner) StartGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup(r.cfg.Retention)
			}
		}
	}()
}

// Wait blocks until every submitted task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close stops accepting tasks and waits for in-flight ones. Tasks still
// waiting for a worker are failed.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	return nil
}
