// Package async runs document ingestion in the background. Each upload
// becomes a Task whose progress readers can poll while a bounded pool of
// workers drives it through extraction, chunking, embedding, and indexing.
package async

import (
	"sync"
	"time"
)

// TaskState is the lifecycle state of an ingestion task.
type TaskState string

const (
	// TaskPending means the task waits for a free worker.
	TaskPending TaskState = "pending"
	// TaskProcessing means a worker is running the pipeline.
	TaskProcessing TaskState = "processing"
	// TaskCompleted means the document is indexed and persisted.
	TaskCompleted TaskState = "completed"
	// TaskFailed means a stage failed; Error holds the message.
	TaskFailed TaskState = "failed"
)

// Terminal reports whether no further transitions happen.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Pipeline checkpoints, in percent.
const (
	ProgressExtracted = 10
	ProgressChunked   = 30
	ProgressEmbedded  = 60
	ProgressIndexed   = 80
	ProgressPersisted = 95
	ProgressDone      = 100
)

// Stage names reported alongside the checkpoints.
const (
	StageQueued     = "queued"
	StageExtracting = "extracting"
	StageChunking   = "chunking"
	StageEmbedding  = "embedding"
	StageIndexing   = "indexing"
	StagePersisting = "persisting"
	StageDone       = "done"
)

// TaskSnapshot is an immutable copy of a task's state.
type TaskSnapshot struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	SourcePath  string     `json:"source_path"`
	State       TaskState  `json:"state"`
	Progress    int        `json:"progress"`
	Stage       string     `json:"stage"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Task tracks one ingestion. All methods are safe for concurrent use.
type Task struct {
	mu sync.RWMutex

	id          string
	documentID  string
	sourcePath  string
	state       TaskState
	progress    int
	stage       string
	message     string
	err         string
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
}

func newTask(id, documentID, sourcePath string, now time.Time) *Task {
	return &Task{
		id:         id,
		documentID: documentID,
		sourcePath: sourcePath,
		state:      TaskPending,
		stage:      StageQueued,
		createdAt:  now,
	}
}

// ID returns the task id.
func (t *Task) ID() string { return t.id }

// SetProgress records a checkpoint. Values below the current progress are
// ignored so progress never regresses. Terminal tasks are not updated.
func (t *Task) SetProgress(progress int, stage, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() || progress < t.progress {
		return
	}
	if progress > ProgressDone {
		progress = ProgressDone
	}
	t.progress = progress
	if stage != "" {
		t.stage = stage
	}
	t.message = message
}

func (t *Task) start(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = TaskProcessing
	t.startedAt = now
}

func (t *Task) complete(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = TaskCompleted
	t.progress = ProgressDone
	t.stage = StageDone
	t.completedAt = now
}

func (t *Task) fail(err error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = TaskFailed
	t.err = err.Error()
	t.completedAt = now
}

// expired reports whether the task finished before cutoff.
func (t *Task) expired(cutoff time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.Terminal() && t.completedAt.Before(cutoff)
}

// Snapshot returns an immutable copy of the current state.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := TaskSnapshot{
		ID:         t.id,
		DocumentID: t.documentID,
		SourcePath: t.sourcePath,
		State:      t.state,
		Progress:   t.progress,
		Stage:      t.stage,
		Message:    t.message,
		Error:      t.err,
		CreatedAt:  t.createdAt,
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		snap.StartedAt = &started
	}
	if !t.completedAt.IsZero() {
		completed := t.completedAt
		snap.CompletedAt = &completed
	}
	return snap
}
