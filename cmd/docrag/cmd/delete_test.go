package cmd

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/store"
)

func records(ids ...string) []store.FileRecord {
	out := make([]store.FileRecord, len(ids))
	for i, id := range ids {
		out[i] = store.FileRecord{DocumentID: id, StartIndex: i, EndIndex: i, UploadedAt: time.Now()}
	}
	return out
}

func TestResolveSelection(t *testing.T) {
	docs := records("a.pdf", "b.pdf", "2024.txt")

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{name: "by id", args: []string{"b.pdf"}, want: []string{"b.pdf"}},
		{name: "by number", args: []string{"1", "3"}, want: []string{"a.pdf", "2024.txt"}},
		{name: "duplicates collapse", args: []string{"1", "a.pdf"}, want: []string{"a.pdf"}},
		{name: "unknown id passes through", args: []string{"zzz"}, want: []string{"zzz"}},
		{name: "number out of range", args: []string{"4"}, wantErr: true},
		{name: "zero", args: []string{"0"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveSelection(tt.args, docs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteCmd_ByNumber(t *testing.T) {
	// Given: two documents
	env := newTestEnv(t)
	env.ingest("lease.txt", "notice.md")

	// When: deleting the first by number
	out, err := env.run("delete", "1")

	// Then: it is removed and the second remains
	require.NoError(t, err)
	assert.Contains(t, out, "lease.txt: removed")
	files, err := env.run("files", "--json")
	require.NoError(t, err)
	assert.NotContains(t, files, "lease.txt")
	assert.Contains(t, files, "notice.md")
}

func TestDeleteCmd_InvalidNumberFails(t *testing.T) {
	env := newTestEnv(t)
	env.ingest("lease.txt")

	_, err := env.run("delete", "5")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid selection")
}

func TestDeleteCmd_UnknownIDReportsOutcome(t *testing.T) {
	// Given: one document
	env := newTestEnv(t)
	env.ingest("lease.txt")

	// When: deleting a known and an unknown id as JSON
	out, err := env.run("delete", "--json", "ghost.pdf", "lease.txt")

	// Then: the batch continues and reports both outcomes
	require.Error(t, err)
	var batch index.BatchDeleteResult
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.NotEmpty(t, batch.Outcomes[0].Error)
	assert.Equal(t, docerrors.ErrCodeDocumentNotFound, batch.Outcomes[0].Code)
	assert.Empty(t, batch.Outcomes[1].Code)
}

func TestDeleteCmd_PartialFailureWarns(t *testing.T) {
	// Given: one document
	env := newTestEnv(t)
	env.ingest("lease.txt")

	// When: deleting it along with an unknown id
	out, err := env.run("delete", "ghost.pdf", "lease.txt")

	// Then: both outcomes print and a summary warning follows
	require.Error(t, err)
	assert.Contains(t, out, "ghost.pdf:")
	assert.Contains(t, out, "lease.txt: removed")
	assert.Contains(t, out, "1 of 2 deletions failed, the others were applied")
}

func TestDeleteCmd_AllCancelled(t *testing.T) {
	// Given: a document and a "no" answer
	env := newTestEnv(t)
	env.ingest("lease.txt")
	env.stdin = "n\n"

	// When: deleting everything
	_, err := env.run("delete", "--all")

	// Then: nothing is removed and the command fails
	require.Error(t, err)
	files, _ := env.run("files", "--json")
	assert.Contains(t, files, "lease.txt")
}

func TestDeleteCmd_AllConfirmed(t *testing.T) {
	env := newTestEnv(t)
	env.ingest("lease.txt", "notice.md")
	env.stdin = "y\n"

	out, err := env.run("delete", "--all")

	require.NoError(t, err)
	assert.Contains(t, out, "All documents deleted")
	files, _ := env.run("files")
	assert.Contains(t, files, "No documents indexed")
}

func TestDeleteCmd_AllRejectsArguments(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("delete", "--all", "--yes", "lease.txt")

	require.Error(t, err)
}

func TestDeleteCmd_NoArgsNonInteractive(t *testing.T) {
	env := newTestEnv(t)
	old := interactiveFunc
	interactiveFunc = func() bool { return false }
	t.Cleanup(func() { interactiveFunc = old })

	_, err := env.run("delete")

	require.Error(t, err)
}

func TestDeleteCmd_InteractiveSelection(t *testing.T) {
	// Given: a terminal and a selection of the second document
	env := newTestEnv(t)
	env.ingest("lease.txt", "notice.md")
	oldInteractive, oldSelect := interactiveFunc, selectFunc
	interactiveFunc = func() bool { return true }
	var offered []string
	selectFunc = func(_ string, items []string, _ bool) ([]string, error) {
		offered = items
		return []string{"notice.md"}, nil
	}
	t.Cleanup(func() { interactiveFunc, selectFunc = oldInteractive, oldSelect })

	// When: deleting without arguments
	out, err := env.run("delete")

	// Then: all documents were offered and the chosen one removed
	require.NoError(t, err)
	assert.Equal(t, []string{"lease.txt", "notice.md"}, offered)
	assert.Contains(t, out, "notice.md: removed")
}
