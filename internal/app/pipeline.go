package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/docrag/internal/async"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/index"
)

// ingest is the async.Job for one document: extract, chunk, embed, then
// hand the chunks to the manager, which indexes and persists atomically.
func (s *Services) ingest(ctx context.Context, req async.Request, task *async.Task) error {
	task.SetProgress(0, async.StageExtracting, "")
	text, err := s.extractor.Extract(ctx, req.SourcePath)
	if err != nil {
		return err
	}
	task.SetProgress(async.ProgressExtracted, async.StageChunking, fmt.Sprintf("extracted %d bytes", len(text)))

	texts, metas := s.chunker.Chunk(text)
	if len(texts) == 0 {
		return docerrors.New(docerrors.ErrCodeChunkingFailed,
			fmt.Sprintf("document %q produced no chunks", req.DocumentID), nil).
			WithSuggestion("Check that the file contains extractable text")
	}
	task.SetProgress(async.ProgressChunked, async.StageEmbedding, fmt.Sprintf("%d chunks", len(texts)))

	embeddings, err := s.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return docerrors.Embedding(err)
	}
	if len(embeddings) != len(texts) {
		return docerrors.Embedding(fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(texts)))
	}
	task.SetProgress(async.ProgressEmbedded, async.StageIndexing, "")

	ctx = index.WithProgress(ctx, func(step index.Step) {
		switch step {
		case index.StepIndexed:
			task.SetProgress(async.ProgressIndexed, async.StagePersisting, "")
		case index.StepPersisted:
			task.SetProgress(async.ProgressPersisted, async.StagePersisting, "snapshot written")
		}
	})
	rec, err := s.Manager.Ingest(ctx, req.DocumentID, texts, metas, embeddings)
	if err != nil {
		return err
	}

	s.Logger.Debug("ingestion pipeline finished",
		slog.String("task_id", req.TaskID),
		slog.String("document_id", rec.DocumentID),
		slog.Int("chunks", rec.ChunkCount()))
	return nil
}
