package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/app"
	"github.com/Aman-CERP/docrag/internal/async"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/extract"
	"github.com/Aman-CERP/docrag/internal/ignore"
	"github.com/Aman-CERP/docrag/internal/ui"
)

// progressPollInterval is how often task progress is rendered.
const progressPollInterval = 100 * time.Millisecond

type ingestOptions struct {
	documentID string
	plain      bool
}

func newIngestCmd(g *globalOptions) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Add documents to the index",
		Long: `Extract, chunk, embed, and index documents.

Directories are searched recursively for .pdf, .txt, and .md files.
Paths listed in a directory's .docragignore (gitignore syntax) are skipped.
Each file becomes one document whose id is its base name unless --id is
given.

Examples:
  docrag ingest lease.pdf
  docrag ingest contracts/
  docrag ingest scan-0042.pdf --id "lease-jakarta"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, g, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.documentID, "id", "", "Document id (single file only)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Print progress lines instead of progress bars")
	return cmd
}

func runIngest(cmd *cobra.Command, g *globalOptions, args []string, opts ingestOptions) error {
	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	if opts.documentID != "" && len(paths) != 1 {
		return docerrors.ValidationError(fmt.Sprintf("--id needs exactly one file, got %d", len(paths)), nil)
	}

	svc, cleanup, err := g.open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		snap, err := svc.Submit(p, opts.documentID)
		if err != nil {
			return err
		}
		ids = append(ids, snap.ID)
	}

	renderer := ui.NewRenderer(ui.Config{
		Output:     cmd.OutOrStdout(),
		ForcePlain: opts.plain,
		NoColor:    g.noColor,
	})
	if err := renderer.Start(cmd.Context()); err != nil {
		return err
	}
	completed, failed := trackTasks(cmd.Context(), svc, ids, renderer)

	stats := svc.Manager.Stats()
	renderer.Complete(ui.Summary{
		Completed: completed,
		Failed:    failed,
		Files:     stats.FileCount,
		Chunks:    stats.ChunkCount,
	})
	_ = renderer.Stop()

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to ingest", failed, len(ids))
	}
	return nil
}

// trackTasks renders the tasks until all are terminal or ctx is done.
func trackTasks(ctx context.Context, svc *app.Services, ids []string, r ui.Renderer) (completed, failed int) {
	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	for {
		completed, failed = 0, 0
		for _, id := range ids {
			snap, ok := svc.Runner.Get(id)
			if !ok {
				continue
			}
			r.Update(snap)
			switch snap.State {
			case async.TaskCompleted:
				completed++
			case async.TaskFailed:
				failed++
			}
		}
		if completed+failed == len(ids) {
			return completed, failed
		}

		select {
		case <-ctx.Done():
			return completed, len(ids) - completed
		case <-ticker.C:
		}
	}
}

// collectFiles expands directories into their supported files, honoring
// each directory argument's .docragignore. Explicit file arguments are kept
// even when unsupported so the task reports why.
func collectFiles(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, docerrors.New(docerrors.ErrCodeFileNotFound, fmt.Sprintf("cannot read %s", arg), err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		found, err := walkDocuments(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, docerrors.ValidationError("no supported documents found", nil).
			WithSuggestion("Supported extensions: .pdf, .txt, .md")
	}
	return out, nil
}

func walkDocuments(root string) ([]string, error) {
	matcher, err := ignore.Load(root)
	if err != nil {
		return nil, err
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if extract.Supported(path) && !matcher.Match(rel, false) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(found)
	return found, nil
}
