package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Aman-CERP/docrag/internal/async"
)

// PlainRenderer prints one line whenever a task changes stage or state.
type PlainRenderer struct {
	mu   sync.Mutex
	out  io.Writer
	last map[string]string
}

// NewPlainRenderer returns a renderer writing to cfg.Output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, last: make(map[string]string)}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// Update implements Renderer.
func (r *PlainRenderer) Update(task async.TaskSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(task.State) + "/" + task.Stage
	if r.last[task.ID] == key {
		return
	}
	r.last[task.ID] = key

	switch task.State {
	case async.TaskFailed:
		_, _ = fmt.Fprintf(r.out, "[FAIL] %s: %s\n", task.DocumentID, task.Error)
	case async.TaskCompleted:
		_, _ = fmt.Fprintf(r.out, "[DONE] %s\n", task.DocumentID)
	default:
		_, _ = fmt.Fprintf(r.out, "[%3d%%] %s %s\n", task.Progress, task.DocumentID, strings.ToUpper(task.Stage))
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Ingested %d of %d documents", s.Completed, s.Completed+s.Failed)
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed)", s.Failed)
	}
	_, _ = fmt.Fprintf(r.out, ". Index holds %d files, %d chunks.\n", s.Files, s.Chunks)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }
