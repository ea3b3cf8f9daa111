package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Snapshot layout inside the data directory.
const (
	SnapshotDirName = "index"
	stagingDirName  = "index.staging"
	previousDirName = "index.old"

	VectorsFile    = "vectors.hnsw"
	ChunksFile     = "chunks.json"
	MetadataFile   = "metadata.json"
	FilesFile      = "files.json"
	EmbeddingsFile = "embeddings.db"
	// SnapshotIDFile holds a random id written by every save, so a process
	// can tell when another one replaced the snapshot.
	SnapshotIDFile = "snapshot.id"
)

// ErrNoSnapshot is returned by Load when nothing has been persisted yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// SnapshotStore persists the chunk store and vector index as one unit.
// Files are written to a staging directory and swapped in by rename, so a
// failed save leaves the previous snapshot authoritative.
//
// The cross-process lock is re-entrant within one store: Acquire holds it
// across a whole mutation while Save and Load take it again inside.
type SnapshotStore struct {
	dataDir string
	lock    *FileLock
	logger  *slog.Logger

	mu    sync.Mutex
	holds int
	// seen is the id of the snapshot this process last loaded or saved.
	seen string

	// beforeSwap runs after staging succeeds; tests use it to inject faults.
	beforeSwap func(stagingDir string) error
}

// NewSnapshotStore returns a store rooted at dataDir.
func NewSnapshotStore(dataDir string, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{
		dataDir: dataDir,
		lock:    NewFileLock(dataDir),
		logger:  logger,
	}
}

// Dir returns the live snapshot directory.
func (s *SnapshotStore) Dir() string {
	return filepath.Join(s.dataDir, SnapshotDirName)
}

// Acquire takes the cross-process lock until the returned release func is
// called. Release is idempotent.
func (s *SnapshotStore) Acquire() (func(), error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(s.release) }, nil
}

func (s *SnapshotStore) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holds > 0 {
		s.holds++
		return nil
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return docerrors.New(docerrors.ErrCodeLocked, "snapshot lock unavailable", err)
	}
	if !ok {
		s.logger.Info("index locked by another docrag process, waiting",
			slog.String("lock", s.lock.Path()))
		if err := s.lock.Lock(); err != nil {
			return docerrors.New(docerrors.ErrCodeLocked, "snapshot lock unavailable", err)
		}
	}
	s.holds = 1
	return nil
}

func (s *SnapshotStore) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holds == 0 {
		return
	}
	s.holds--
	if s.holds > 0 {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release snapshot lock", slog.String("error", err.Error()))
	}
}

// Changed reports whether the persisted snapshot differs from the one this
// store last loaded or saved.
func (s *SnapshotStore) Changed() (bool, error) {
	if err := s.acquire(); err != nil {
		return false, err
	}
	defer s.release()

	id, err := s.liveID()
	if err != nil {
		return false, docerrors.Persistence("read "+SnapshotIDFile, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != s.seen, nil
}

func (s *SnapshotStore) setSeen(id string) {
	s.mu.Lock()
	s.seen = id
	s.mu.Unlock()
}

// resolveDir returns the directory Load reads: the live snapshot, or the
// previous one when a swap was interrupted.
func (s *SnapshotStore) resolveDir() (string, error) {
	dir := s.Dir()
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		previous := filepath.Join(s.dataDir, previousDirName)
		if _, perr := os.Stat(previous); perr != nil {
			return "", ErrNoSnapshot
		}
		return previous, nil
	}
	return dir, nil
}

// liveID returns the id of the snapshot Load would read, "" when there is
// none or it predates snapshot ids.
func (s *SnapshotStore) liveID() (string, error) {
	dir, err := s.resolveDir()
	if errors.Is(err, ErrNoSnapshot) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, SnapshotIDFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes all artifacts. Either every file of the new snapshot is in
// place when it returns nil, or the previous snapshot is untouched.
func (s *SnapshotStore) Save(chunks *ChunkStore, vectors *VectorIndex) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	staging := filepath.Join(s.dataDir, stagingDirName)
	if err := os.RemoveAll(staging); err != nil {
		return docerrors.Persistence("clear staging directory", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return docerrors.Persistence("create staging directory", err)
	}

	id := uuid.NewString()
	if err := s.stage(staging, id, chunks, vectors); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if s.beforeSwap != nil {
		if err := s.beforeSwap(staging); err != nil {
			_ = os.RemoveAll(staging)
			return docerrors.Persistence("stage snapshot", err)
		}
	}

	if err := s.swap(staging); err != nil {
		_ = os.RemoveAll(staging)
		return docerrors.Persistence("swap snapshot", err)
	}
	s.setSeen(id)
	return nil
}

func (s *SnapshotStore) stage(dir, id string, chunks *ChunkStore, vectors *VectorIndex) error {
	texts := chunks.Texts()
	if texts == nil {
		texts = []string{}
	}
	meta := chunks.Metadata()
	if meta == nil {
		meta = []ChunkMeta{}
	}

	if err := writeJSONFile(filepath.Join(dir, ChunksFile), texts); err != nil {
		return docerrors.Persistence("write "+ChunksFile, err)
	}
	if err := writeJSONFile(filepath.Join(dir, MetadataFile), meta); err != nil {
		return docerrors.Persistence("write "+MetadataFile, err)
	}
	if err := writeJSONFile(filepath.Join(dir, FilesFile), chunks.Registry()); err != nil {
		return docerrors.Persistence("write "+FilesFile, err)
	}
	if err := writeEmbeddings(filepath.Join(dir, EmbeddingsFile), chunks.Embeddings()); err != nil {
		return docerrors.Persistence("write "+EmbeddingsFile, err)
	}

	if err := writeFileSync(filepath.Join(dir, SnapshotIDFile), []byte(id+"\n")); err != nil {
		return docerrors.Persistence("write "+SnapshotIDFile, err)
	}

	f, err := os.Create(filepath.Join(dir, VectorsFile))
	if err != nil {
		return docerrors.Persistence("create "+VectorsFile, err)
	}
	if err := vectors.Export(f); err != nil {
		_ = f.Close()
		return docerrors.Persistence("write "+VectorsFile, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return docerrors.Persistence("sync "+VectorsFile, err)
	}
	if err := f.Close(); err != nil {
		return docerrors.Persistence("close "+VectorsFile, err)
	}
	return nil
}

func (s *SnapshotStore) swap(staging string) error {
	live := s.Dir()
	previous := filepath.Join(s.dataDir, previousDirName)

	if err := os.RemoveAll(previous); err != nil {
		return err
	}
	hadLive := false
	if _, err := os.Stat(live); err == nil {
		if err := os.Rename(live, previous); err != nil {
			return err
		}
		hadLive = true
	}
	if err := os.Rename(staging, live); err != nil {
		if hadLive {
			_ = os.Rename(previous, live)
		}
		return err
	}
	if err := os.RemoveAll(previous); err != nil {
		s.logger.Warn("failed to remove previous snapshot", slog.String("error", err.Error()))
	}
	return nil
}

// Load reads the snapshot. It returns ErrNoSnapshot when none exists, an
// IndexInconsistency error when the artifacts disagree with each other or
// cannot be decoded, and a Persistence error when a file cannot be read. A
// vector blob that cannot be used is rebuilt from the cached embeddings.
func (s *SnapshotStore) Load(cfg VectorConfig) (*ChunkStore, *VectorIndex, error) {
	if err := s.acquire(); err != nil {
		return nil, nil, err
	}
	defer s.release()

	dir, err := s.resolveDir()
	if errors.Is(err, ErrNoSnapshot) {
		s.setSeen("")
		return nil, nil, ErrNoSnapshot
	}
	if dir != s.Dir() {
		s.logger.Warn("live snapshot missing, recovering previous snapshot", slog.String("dir", dir))
	}
	id, err := s.liveID()
	if err != nil {
		return nil, nil, docerrors.Persistence("read "+SnapshotIDFile, err)
	}

	chunks, vectors, err := s.read(dir, cfg)
	if err != nil && !errors.Is(err, docerrors.ErrInconsistent) {
		return nil, nil, err
	}
	// An inconsistent snapshot was still looked at; the caller decides
	// whether to replace it.
	s.setSeen(id)
	return chunks, vectors, err
}

func (s *SnapshotStore) read(dir string, cfg VectorConfig) (*ChunkStore, *VectorIndex, error) {
	var texts []string
	var meta []ChunkMeta
	registry := NewRegistry()
	if err := readJSONFile(filepath.Join(dir, ChunksFile), &texts); err != nil {
		return nil, nil, readError(ChunksFile, err)
	}
	if err := readJSONFile(filepath.Join(dir, MetadataFile), &meta); err != nil {
		return nil, nil, readError(MetadataFile, err)
	}
	if err := readJSONFile(filepath.Join(dir, FilesFile), registry); err != nil {
		return nil, nil, readError(FilesFile, err)
	}
	if _, err := os.Stat(filepath.Join(dir, EmbeddingsFile)); err != nil {
		return nil, nil, readError(EmbeddingsFile, err)
	}
	embeddings, err := readEmbeddings(filepath.Join(dir, EmbeddingsFile))
	if err != nil {
		return nil, nil, docerrors.Inconsistent("read %s: %v", EmbeddingsFile, err)
	}

	chunks := &ChunkStore{
		texts:      texts,
		meta:       meta,
		embeddings: embeddings,
		registry:   registry,
	}
	if len(embeddings) > 0 {
		chunks.dims = len(embeddings[0])
		for i, e := range embeddings {
			if len(e) != chunks.dims {
				return nil, nil, docerrors.Inconsistent("embedding %d has %d dimensions, expected %d", i, len(e), chunks.dims)
			}
		}
	}
	if err := chunks.Validate(); err != nil {
		return nil, nil, err
	}

	vectors := NewVectorIndex(cfg)
	if err := s.importVectors(filepath.Join(dir, VectorsFile), vectors, embeddings); err != nil || vectors.Count() != chunks.Len() {
		attrs := []any{slog.Int("chunks", chunks.Len()), slog.Int("vectors", vectors.Count())}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		s.logger.Warn("vector blob unusable, rebuilding from cached embeddings", attrs...)
		if err := vectors.Build(embeddings); err != nil {
			return nil, nil, docerrors.Inconsistent("rebuild vectors: %v", err)
		}
	}
	return chunks, vectors, nil
}

// readError separates I/O failures, which say nothing about the snapshot,
// from missing or undecodable artifacts, which make it inconsistent.
func readError(name string, err error) error {
	var pathErr *fs.PathError
	if !errors.Is(err, fs.ErrNotExist) && errors.As(err, &pathErr) {
		return docerrors.Persistence("read "+name, err)
	}
	return docerrors.Inconsistent("read %s: %v", name, err)
}

func (s *SnapshotStore) importVectors(path string, vectors *VectorIndex, embeddings [][]float32) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return vectors.Import(f, embeddings)
}

// Remove deletes every persisted artifact.
func (s *SnapshotStore) Remove() error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	for _, name := range []string{SnapshotDirName, stagingDirName, previousDirName} {
		if err := os.RemoveAll(filepath.Join(s.dataDir, name)); err != nil {
			return docerrors.Persistence("remove "+name, err)
		}
	}
	s.setSeen("")
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeFileSync(path, data)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
