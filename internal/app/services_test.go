package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/async"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/embed"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/internal/search"
)

const leaseText = `PERJANJIAN SEWA LAHAN. Perjanjian ini dibuat pada tanggal 12/03/2024 di Jakarta. Para pihak sepakat sebagai berikut.
PASAL 1
Objek sewa adalah sebidang tanah di Jalan Merdeka nomor 10.
PASAL 2
Harga sewa dibayar setiap bulan sebesar sepuluh juta rupiah.`

type recordingProvider struct {
	calls    int
	question string
	err      error
}

func (p *recordingProvider) Answer(_ context.Context, _, _, question string) (string, error) {
	p.calls++
	p.question = question
	if p.err != nil {
		return "", p.err
	}
	return "answer: " + question, nil
}

type failingEmbedder struct {
	*embed.StaticEmbedder
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider offline")
}

func newTestServices(t *testing.T, opts ...Option) (*Services, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(dir, ".docrag")
	cfg.Embedding.Dimensions = 64

	opts = append([]Option{WithEmbedder(embed.NewStaticEmbedder(64))}, opts...)
	s, err := New(context.Background(), cfg, logging.Discard(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ingestAndWait(t *testing.T, s *Services, path, id string) async.TaskSnapshot {
	t.Helper()
	snap, err := s.Submit(path, id)
	require.NoError(t, err)
	s.Runner.Wait()
	final, ok := s.Runner.Get(snap.ID)
	require.True(t, ok)
	return final
}

func TestManagerConfig_MapsSearchSettings(t *testing.T) {
	// Given: a config with custom weights
	cfg := config.NewConfig()
	cfg.Search.KeywordWeight = 0.5
	cfg.Search.SemanticWeight = 0.5
	cfg.Vector.Metric = "COSINE"

	// When: mapping it
	mc := ManagerConfig(cfg)

	// Then: the engine and graph settings carry over
	assert.Equal(t, search.Weights{Keyword: 0.5, Semantic: 0.5}, mc.Search.Weights)
	assert.Equal(t, search.Weights{Keyword: 0.4, Semantic: 0.6}, mc.Search.DocumentWeights)
	assert.Equal(t, "cosine", mc.Vector.Metric)
	assert.Equal(t, 5000, mc.MaxVocabulary)
	assert.Equal(t, 10, mc.SummaryChunks)
}

func TestIngest_CompletesAndIndexes(t *testing.T) {
	// Given: services and a lease document on disk
	s, dir := newTestServices(t)
	path := writeFile(t, dir, "lease.txt", leaseText)

	// When: ingesting it without an explicit id
	final := ingestAndWait(t, s, path, "")

	// Then: the task completes at 100 and the id is the base name
	assert.Equal(t, async.TaskCompleted, final.State, final.Error)
	assert.Equal(t, async.ProgressDone, final.Progress)
	assert.Equal(t, "lease.txt", final.DocumentID)

	stats := s.Manager.Stats()
	assert.Equal(t, 1, stats.FileCount)
	assert.Positive(t, stats.ChunkCount)
	assert.Equal(t, stats.ChunkCount, stats.VectorCount)
	assert.Equal(t, stats.ChunkCount, stats.KeywordCount)
}

func TestIngest_UnsupportedFileFails(t *testing.T) {
	// Given: a file with an unsupported extension
	s, dir := newTestServices(t)
	path := writeFile(t, dir, "sheet.xlsx", "binary")

	// When: ingesting it
	final := ingestAndWait(t, s, path, "")

	// Then: the task fails and nothing is indexed
	assert.Equal(t, async.TaskFailed, final.State)
	assert.NotEmpty(t, final.Error)
	assert.Equal(t, 0, s.Manager.Stats().ChunkCount)
}

func TestIngest_EmptyDocumentFails(t *testing.T) {
	s, dir := newTestServices(t)
	path := writeFile(t, dir, "blank.txt", "   \n\n  ")

	final := ingestAndWait(t, s, path, "blank")

	assert.Equal(t, async.TaskFailed, final.State)
	assert.Contains(t, final.Error, "no chunks")
}

func TestIngest_EmbeddingFailureIsWrapped(t *testing.T) {
	// Given: an embedder whose batch call fails
	s, dir := newTestServices(t, WithEmbedder(failingEmbedder{embed.NewStaticEmbedder(64)}))
	path := writeFile(t, dir, "lease.txt", leaseText)

	// When: ingesting
	snap, err := s.Submit(path, "lease")
	require.NoError(t, err)
	s.Runner.Wait()
	final, _ := s.Runner.Get(snap.ID)

	// Then: the task fails after chunking and the index is untouched
	assert.Equal(t, async.TaskFailed, final.State)
	assert.Equal(t, async.ProgressChunked, final.Progress)
	assert.Contains(t, final.Error, "provider offline")
	assert.Empty(t, s.Manager.Documents())
}

func TestIngest_DuplicateIDFails(t *testing.T) {
	s, dir := newTestServices(t)
	path := writeFile(t, dir, "lease.txt", leaseText)

	first := ingestAndWait(t, s, path, "lease")
	second := ingestAndWait(t, s, path, "lease")

	assert.Equal(t, async.TaskCompleted, first.State)
	assert.Equal(t, async.TaskFailed, second.State)
	assert.Len(t, s.Manager.Documents(), 1)
}

func TestAsk_SectionQuestionUsesProvider(t *testing.T) {
	// Given: an indexed lease and a recording provider
	p := &recordingProvider{}
	s, dir := newTestServices(t, WithAnswerProvider(p))
	ingestAndWait(t, s, writeFile(t, dir, "lease.txt", leaseText), "lease")

	// When: asking about a section
	reply, r, err := s.Ask(context.Background(), "What does pasal 2 of lease say?")

	// Then: the section chunk is the context and the provider answers
	require.NoError(t, err)
	assert.Equal(t, search.QuestionSection, r.Question.Kind)
	require.NotEmpty(t, r.Chunks)
	assert.Contains(t, r.Chunks[0].Text, "Harga sewa")
	assert.Equal(t, 1, p.calls)
	assert.True(t, strings.HasPrefix(reply, "answer: "))
}

func TestAsk_ProviderFailureBecomesReply(t *testing.T) {
	// Given: a provider that always fails
	p := &recordingProvider{err: errors.New("rate limited")}
	s, dir := newTestServices(t, WithAnswerProvider(p))
	ingestAndWait(t, s, writeFile(t, dir, "lease.txt", leaseText), "lease")

	// When: asking a free question
	reply, _, err := s.Ask(context.Background(), "how much is the rent?")

	// Then: the failure is reported as the answer text
	require.NoError(t, err)
	assert.Contains(t, reply, "failed to get a response from the model")
	assert.Contains(t, reply, "rate limited")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	s, _ := newTestServices(t)

	_, _, err := s.Ask(context.Background(), "  ")

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeQueryEmpty, docerrors.GetCode(err))
}

func TestServices_ReopenSeesPersistedIndex(t *testing.T) {
	// Given: a document ingested by one process
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(dir, ".docrag")
	s1, err := New(context.Background(), cfg, logging.Discard(), WithEmbedder(embed.NewStaticEmbedder(64)))
	require.NoError(t, err)
	ingestAndWait(t, s1, writeFile(t, dir, "lease.txt", leaseText), "lease")
	require.NoError(t, s1.Close())

	// When: a new process opens the same data directory
	s2, err := New(context.Background(), cfg, logging.Discard(), WithEmbedder(embed.NewStaticEmbedder(64)))
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	// Then: the document is still there
	docs := s2.Manager.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "lease", docs[0].DocumentID)
}
