package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/async"
)

func TestIsTTY_NonFileWriter(t *testing.T) {
	// Given: a buffer
	var buf bytes.Buffer

	// Then: it is not a terminal
	assert.False(t, IsTTY(&buf))
	assert.False(t, IsTTY(nil))
}

func TestNewRenderer_PlainForBuffers(t *testing.T) {
	// Given: a non-terminal output
	var buf bytes.Buffer

	// When: creating a renderer
	r := NewRenderer(Config{Output: &buf})

	// Then: the plain renderer is chosen
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestGetStyles_NoColorHonoursEnv(t *testing.T) {
	// Given: NO_COLOR set
	t.Setenv("NO_COLOR", "")

	// When: asking for colored styles
	styles := GetStyles(false)

	// Then: rendering adds no escape codes
	assert.Equal(t, "done", styles.Success.Render("done"))
}

func snapshot(id, doc string, state async.TaskState, progress int, stage string) async.TaskSnapshot {
	return async.TaskSnapshot{
		ID:         id,
		DocumentID: doc,
		State:      state,
		Progress:   progress,
		Stage:      stage,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPlainRenderer_PrintsOnStageChange(t *testing.T) {
	// Given: a plain renderer
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})
	require.NoError(t, r.Start(context.Background()))

	// When: the same stage is reported twice, then progress moves on
	r.Update(snapshot("t1", "lease.pdf", async.TaskProcessing, 10, async.StageExtracting))
	r.Update(snapshot("t1", "lease.pdf", async.TaskProcessing, 10, async.StageExtracting))
	r.Update(snapshot("t1", "lease.pdf", async.TaskProcessing, 30, async.StageChunking))
	r.Update(snapshot("t1", "lease.pdf", async.TaskCompleted, 100, async.StageDone))

	// Then: one line per distinct stage
	assert.Equal(t,
		"[ 10%] lease.pdf EXTRACTING\n[ 30%] lease.pdf CHUNKING\n[DONE] lease.pdf\n",
		buf.String())
	require.NoError(t, r.Stop())
}

func TestPlainRenderer_FailureAndSummary(t *testing.T) {
	// Given: a plain renderer
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})

	// When: a task fails and the summary is shown
	failed := snapshot("t2", "scan.pdf", async.TaskFailed, 10, async.StageExtracting)
	failed.Error = "no text"
	r.Update(failed)
	r.Complete(Summary{Completed: 1, Failed: 1, Files: 1, Chunks: 4})

	// Then: both are reported
	out := buf.String()
	assert.Contains(t, out, "[FAIL] scan.pdf: no text")
	assert.Contains(t, out, "Ingested 1 of 2 documents (1 failed). Index holds 1 files, 4 chunks.")
}

func TestProgressModel_TracksTasks(t *testing.T) {
	// Given: a progress model
	m := newProgressModel(NoColorStyles())

	// When: two tasks report
	m.Update(taskMsg(snapshot("a", "a.txt", async.TaskProcessing, 60, async.StageEmbedding)))
	m.Update(taskMsg(snapshot("b", "b.txt", async.TaskFailed, 10, async.StageExtracting)))

	// Then: the view lists both
	view := m.View()
	assert.Contains(t, view, "a.txt")
	assert.Contains(t, view, "embedding")
	assert.Contains(t, view, "failed")

	// And: the summary quits the program
	_, cmd := m.Update(summaryMsg(Summary{Completed: 1, Failed: 1}))
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "1 completed, 1 failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
