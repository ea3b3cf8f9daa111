package index

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/docrag/internal/embed"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

// Snapshotter persists and restores the chunk store and vector index.
// *store.SnapshotStore is the production implementation.
type Snapshotter interface {
	Save(chunks *store.ChunkStore, vectors *store.VectorIndex) error
	Load(cfg store.VectorConfig) (*store.ChunkStore, *store.VectorIndex, error)
	Remove() error
	// Acquire holds the cross-process lock until release is called. Save,
	// Load, and Remove may be called while it is held.
	Acquire() (release func(), err error)
	// Changed reports whether another process replaced the snapshot since
	// it was last loaded or saved here.
	Changed() (bool, error)
}

// Config configures the manager.
type Config struct {
	DataDir       string
	Vector        store.VectorConfig
	MaxVocabulary int
	Search        search.Config
	// Rerank enables the term-coverage pass for free questions.
	Rerank bool
	// SummaryChunks is the sample size for summary questions.
	SummaryChunks int
}

// Stats summarizes the live index.
type Stats struct {
	FileCount      int    `json:"file_count"`
	ChunkCount     int    `json:"chunk_count"`
	MetadataCount  int    `json:"metadata_count"`
	EmbeddingCount int    `json:"embedding_count"`
	VectorCount    int    `json:"vector_count"`
	KeywordCount   int    `json:"keyword_count"`
	Vocabulary     int    `json:"vocabulary"`
	Dimensions     int    `json:"dimensions"`
	State          string `json:"state"`
}

// DeleteResult describes one removed document.
type DeleteResult struct {
	DocumentID       string   `json:"document_id"`
	RemovedChunks    int      `json:"removed_chunks"`
	RemainingChunks  int      `json:"remaining_chunks"`
	RemainingFiles   int      `json:"remaining_files"`
	ShiftedDocuments []string `json:"shifted_documents,omitempty"`
}

// DeleteOutcome is one entry of a batch delete.
type DeleteOutcome struct {
	DocumentID string        `json:"document_id"`
	Result     *DeleteResult `json:"result,omitempty"`
	Err        error         `json:"-"`
	// Error and Code are Err's message and error code, for JSON output.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// BatchDeleteResult aggregates a batch delete. Failures never abort the
// batch.
type BatchDeleteResult struct {
	Outcomes  []DeleteOutcome `json:"outcomes"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

// Manager owns the live index. One RWMutex guards the chunk store, the
// registry, and both indices: searches share it, mutations hold it
// exclusively. A mutation either commits fully (memory and snapshot) or the
// manager reloads the last snapshot.
//
// Mutations also hold the snapshot's file lock from start to commit and
// begin from the persisted snapshot, so writers in other processes are never
// overwritten. Memory that could not be reloaded is stale: writes are
// refused until a reload succeeds.
type Manager struct {
	cfg        Config
	embedder   embed.Embedder
	engine     *search.Engine
	classifier *search.Classifier
	snapshots  Snapshotter
	logger     *slog.Logger
	now        func() time.Time

	state atomic.Int32

	mu      sync.RWMutex
	chunks  *store.ChunkStore
	vectors *store.VectorIndex
	keyword *store.KeywordIndex
	stale   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithSnapshotter replaces the on-disk snapshot store.
func WithSnapshotter(s Snapshotter) Option {
	return func(m *Manager) { m.snapshots = s }
}

// WithClassifier replaces the question classifier.
func WithClassifier(c *search.Classifier) Option {
	return func(m *Manager) { m.classifier = c }
}

// WithClock sets the time source for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an empty manager. Call Open to load the snapshot.
func NewManager(cfg Config, embedder embed.Embedder, opts ...Option) *Manager {
	if cfg.SummaryChunks <= 0 {
		cfg.SummaryChunks = search.DefaultSummaryChunks
	}
	m := &Manager{
		cfg:      cfg,
		embedder: embedder,
		logger:   slog.Default(),
		now:      time.Now,
		chunks:   store.NewChunkStore(),
		vectors:  store.NewVectorIndex(cfg.Vector),
		keyword:  store.NewKeywordIndex(cfg.MaxVocabulary),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.snapshots == nil {
		m.snapshots = store.NewSnapshotStore(cfg.DataDir, m.logger)
	}
	if m.classifier == nil {
		m.classifier = search.NewClassifier(nil)
	}
	m.engine = search.NewEngine(cfg.Search, search.WithLogger(m.logger))
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Open loads the persisted snapshot. A missing snapshot starts an empty
// index; an inconsistent one is logged and replaced by an empty index.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setState(StateLoading)
	if err := m.loadLocked(ctx); err != nil {
		m.stale = true
		m.setState(StateFailed)
		return err
	}

	m.logger.Info("index loaded",
		slog.Int("files", m.chunks.Registry().Len()),
		slog.Int("chunks", m.chunks.Len()))
	m.setState(StateIdle)
	return nil
}

// Refresh reloads the snapshot when another process replaced it or an
// earlier reload failed.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	release, err := m.beginLocked(ctx)
	if err != nil {
		return err
	}
	release()
	return nil
}

// Close releases the keyword index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyword.Close()
}

// Embedder returns the embedder used for queries.
func (m *Manager) Embedder() embed.Embedder {
	return m.embedder
}

// Ingest appends a document's chunks with their precomputed embeddings,
// extends both indices, and persists. On any failure after the append the
// manager reverts to the last snapshot.
func (m *Manager) Ingest(ctx context.Context, documentID string, texts []string, metas []store.ChunkMeta, embeddings [][]float32) (store.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	release, err := m.beginLocked(ctx)
	if err != nil {
		return store.FileRecord{}, err
	}
	defer release()

	m.setState(StateMutating)
	rec, err := m.chunks.AppendDocument(documentID, texts, metas, embeddings, m.now())
	if err != nil {
		// Nothing was changed.
		m.setState(StateIdle)
		return store.FileRecord{}, err
	}

	m.setState(StateRebuilding)
	if err := m.vectors.Add(rec.StartIndex, embeddings); err != nil {
		return store.FileRecord{}, m.failLocked("add vectors", err)
	}
	if err := m.keyword.Build(ctx, m.chunks.Texts()); err != nil {
		return store.FileRecord{}, m.failLocked("rebuild keyword index", err)
	}
	reportStep(ctx, StepIndexed)

	if err := m.commitLocked(); err != nil {
		return store.FileRecord{}, err
	}
	reportStep(ctx, StepPersisted)

	m.logger.Info("document ingested",
		slog.String("document_id", documentID),
		slog.Int("chunks", rec.ChunkCount()),
		slog.Int("start", rec.StartIndex),
		slog.Int("end", rec.EndIndex))
	return rec, nil
}

// DeleteDocument removes a document, rebuilds both indices from the cached
// embeddings and texts, and persists. An unknown id returns NotFound with
// the known ids and changes nothing.
func (m *Manager) DeleteDocument(ctx context.Context, documentID string) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	release, err := m.beginLocked(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := m.chunks.Registry().Get(documentID); !ok {
		return nil, docerrors.NotFound(documentID, m.chunks.Registry().IDs())
	}

	m.setState(StateMutating)
	removed, err := m.chunks.RemoveDocument(documentID)
	if err != nil {
		return nil, m.failLocked("remove document", err)
	}

	m.setState(StateRebuilding)
	if err := m.vectors.Build(m.chunks.Embeddings()); err != nil {
		return nil, m.failLocked("rebuild vectors", err)
	}
	if err := m.keyword.Build(ctx, m.chunks.Texts()); err != nil {
		return nil, m.failLocked("rebuild keyword index", err)
	}

	if err := m.commitLocked(); err != nil {
		return nil, err
	}

	res := &DeleteResult{
		DocumentID:       documentID,
		RemovedChunks:    removed.Record.ChunkCount(),
		RemainingChunks:  m.chunks.Len(),
		RemainingFiles:   m.chunks.Registry().Len(),
		ShiftedDocuments: removed.ShiftedDocuments,
	}
	m.logger.Info("document deleted",
		slog.String("document_id", documentID),
		slog.Int("removed_chunks", res.RemovedChunks),
		slog.Int("remaining_chunks", res.RemainingChunks),
		slog.Int("shifted_documents", len(res.ShiftedDocuments)))
	return res, nil
}

// DeleteMany deletes ids one at a time. Each id gets its own outcome.
func (m *Manager) DeleteMany(ctx context.Context, ids []string) *BatchDeleteResult {
	batch := &BatchDeleteResult{Outcomes: make([]DeleteOutcome, 0, len(ids))}
	for _, id := range ids {
		res, err := m.DeleteDocument(ctx, id)
		outcome := DeleteOutcome{DocumentID: id, Result: res, Err: err}
		if err != nil {
			outcome.Error = err.Error()
			outcome.Code = docerrors.GetCode(err)
		}
		batch.Outcomes = append(batch.Outcomes, outcome)
		if err != nil {
			batch.Failed++
			m.logger.Warn("batch delete item failed", append([]any{slog.String("document_id", id)}, docerrors.LogAttrs(err)...)...)
			continue
		}
		batch.Succeeded++
	}
	return batch
}

// ClearAll removes every document and the persisted snapshot.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Everything is discarded, so there is nothing to reload first.
	release, err := m.snapshots.Acquire()
	if err != nil {
		return err
	}
	defer release()

	m.setState(StatePersisting)
	if err := m.snapshots.Remove(); err != nil {
		return m.failLocked("remove snapshot", err)
	}
	m.resetLocked()
	m.stale = false
	m.logger.Info("index cleared")
	m.setState(StateIdle)
	return nil
}

// commitLocked verifies consistency and writes the snapshot.
func (m *Manager) commitLocked() error {
	if res := CheckConsistency(m.chunks, m.vectors, m.keyword); !res.OK() {
		return m.failLocked("verify consistency", res.Err())
	}
	m.setState(StatePersisting)
	if err := m.snapshots.Save(m.chunks, m.vectors); err != nil {
		return m.failLocked("persist snapshot", err)
	}
	m.setState(StateIdle)
	return nil
}

// failLocked logs a failed step, reloads the last snapshot, and returns the
// error. The state stays Failed until the next successful operation. When
// the reload fails too, memory is cleared and marked stale so nothing is
// persisted from it.
func (m *Manager) failLocked(step string, err error) error {
	m.setState(StateFailed)
	m.logger.Error("index operation failed, reverting to last snapshot",
		append([]any{slog.String("step", step)}, docerrors.LogAttrs(err)...)...)

	if lerr := m.loadLocked(context.Background()); lerr != nil {
		m.logger.Error("snapshot reload failed, refusing writes until a reload succeeds", docerrors.LogAttrs(lerr)...)
		m.stale = true
		m.resetLocked()
	}
	return err
}

// beginLocked takes the snapshot lock for a whole mutation and brings memory
// up to date with the persisted snapshot first. Callers hold m.mu and must
// call release.
func (m *Manager) beginLocked(ctx context.Context) (func(), error) {
	release, err := m.snapshots.Acquire()
	if err != nil {
		return nil, err
	}

	reload := m.stale
	if !reload {
		changed, err := m.snapshots.Changed()
		if err != nil {
			release()
			return nil, err
		}
		if changed {
			m.logger.Info("snapshot replaced by another process, reloading")
			reload = true
		}
	}
	if !reload {
		return release, nil
	}

	m.setState(StateLoading)
	if err := m.loadLocked(ctx); err != nil {
		m.stale = true
		m.setState(StateFailed)
		release()
		m.logger.Error("snapshot reload failed, write refused", docerrors.LogAttrs(err)...)
		return nil, err
	}
	m.setState(StateIdle)
	return release, nil
}

// loadLocked replaces memory with the persisted snapshot. A missing or
// inconsistent snapshot loads as an empty index, which the next commit
// overwrites. Any other failure leaves memory untouched and is returned.
func (m *Manager) loadLocked(ctx context.Context) error {
	chunks, vectors, err := m.snapshots.Load(m.cfg.Vector)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNoSnapshot):
		m.logger.Info("no snapshot found, starting with an empty index")
		chunks, vectors = store.NewChunkStore(), store.NewVectorIndex(m.cfg.Vector)
	case errors.Is(err, docerrors.ErrInconsistent):
		m.logger.Error("snapshot is inconsistent, starting with an empty index", docerrors.LogAttrs(err)...)
		chunks, vectors = store.NewChunkStore(), store.NewVectorIndex(m.cfg.Vector)
	default:
		return err
	}

	m.setState(StateRebuilding)
	if err := m.keyword.Build(ctx, chunks.Texts()); err != nil {
		return docerrors.New(docerrors.ErrCodeIndexFailed, "build keyword index", err)
	}
	m.chunks, m.vectors = chunks, vectors
	m.stale = false

	if res := CheckConsistency(m.chunks, m.vectors, m.keyword); !res.OK() {
		m.logger.Error("loaded index is inconsistent, starting with an empty index", docerrors.LogAttrs(res.Err())...)
		m.resetLocked()
	}
	return nil
}

func (m *Manager) resetLocked() {
	m.chunks = store.NewChunkStore()
	m.vectors = store.NewVectorIndex(m.cfg.Vector)
	_ = m.keyword.Build(context.Background(), nil)
}

// Stats returns index counts.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		FileCount:      m.chunks.Registry().Len(),
		ChunkCount:     m.chunks.Len(),
		MetadataCount:  m.chunks.MetadataLen(),
		EmbeddingCount: m.chunks.EmbeddingLen(),
		VectorCount:    m.vectors.Count(),
		KeywordCount:   m.keyword.Count(),
		Vocabulary:     m.keyword.VocabularySize(),
		Dimensions:     m.chunks.Dimensions(),
		State:          m.State().String(),
	}
}

// Check runs a consistency check on the live index.
func (m *Manager) Check() *CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CheckConsistency(m.chunks, m.vectors, m.keyword)
}

// Documents returns the registered documents ordered by range.
func (m *Manager) Documents() []store.FileRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks.Registry().List()
}

// DocumentChunks returns one document's chunks in order.
func (m *Manager) DocumentChunks(documentID string) ([]store.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks.DocumentChunks(documentID)
}

// Search runs a hybrid search. The query is embedded before the read lock
// is taken so slow providers never block writers.
func (m *Manager) Search(ctx context.Context, query string, opts search.Options) ([]*search.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, docerrors.New(docerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, docerrors.Embedding(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if opts.DocumentID != "" {
		if _, ok := m.chunks.Registry().Get(opts.DocumentID); !ok {
			return nil, docerrors.NotFound(opts.DocumentID, m.chunks.Registry().IDs())
		}
	}
	return m.engine.Search(ctx, corpus{m}, query, vec, opts)
}

// SummarizeDocument returns the summary sample of a document. A
// non-positive maxChunks uses the configured size.
func (m *Manager) SummarizeDocument(documentID string, maxChunks int) ([]store.Chunk, error) {
	if maxChunks <= 0 {
		maxChunks = m.cfg.SummaryChunks
	}
	chunks, err := m.DocumentChunks(documentID)
	if err != nil {
		return nil, err
	}
	return search.Summarize(chunks, maxChunks), nil
}

// Retrieve classifies a question and gathers its context. Free questions
// run a hybrid search, scoped to the named document when there is one.
// Other kinds read a fixed part of the named document; when no document is
// named and exactly one is indexed, that one is used.
func (m *Manager) Retrieve(ctx context.Context, text string) (*search.Retrieval, error) {
	if strings.TrimSpace(text) == "" {
		return nil, docerrors.New(docerrors.ErrCodeQueryEmpty, "question must not be empty", nil)
	}

	m.mu.RLock()
	known := m.chunks.Registry().IDs()
	m.mu.RUnlock()

	q := m.classifier.Classify(text, known)
	out := &search.Retrieval{Question: q}

	if q.Kind == search.QuestionFree {
		results, err := m.Search(ctx, text, search.Options{
			TopK:       m.cfg.Search.TopK,
			Rerank:     m.cfg.Rerank,
			DocumentID: q.DocumentID,
		})
		if err != nil {
			return nil, err
		}
		out.Results = results
		out.Chunks = make([]store.Chunk, len(results))
		for i, r := range results {
			out.Chunks[i] = r.Chunk
		}
		return out, nil
	}

	if q.DocumentID == "" {
		if len(known) != 1 {
			return nil, docerrors.ValidationError("could not tell which document the question is about", nil).
				WithDetail("question_kind", q.Kind.String()).
				WithSuggestion("Mention the document name, as listed by 'docrag files'")
		}
		q.DocumentID = known[0]
		out.Question.DocumentID = known[0]
	}

	chunks, err := m.DocumentChunks(q.DocumentID)
	if err != nil {
		return nil, err
	}
	out.Chunks = search.SelectChunks(q, chunks, m.cfg.SummaryChunks)
	return out, nil
}

// corpus adapts the manager's state to search.Corpus. Callers hold the
// read lock.
type corpus struct{ m *Manager }

func (c corpus) Len() int { return c.m.chunks.Len() }

func (c corpus) Chunk(id int) (store.Chunk, bool) { return c.m.chunks.Chunk(id) }

func (c corpus) DocumentRange(documentID string) (store.FileRecord, bool) {
	return c.m.chunks.Registry().Get(documentID)
}

func (c corpus) SearchKeyword(ctx context.Context, query string, limit int) ([]store.KeywordResult, error) {
	return c.m.keyword.Search(ctx, query, limit)
}

func (c corpus) SearchVector(query []float32, k int) ([]store.VectorResult, error) {
	return c.m.vectors.Search(query, k)
}

var _ search.Corpus = corpus{}
