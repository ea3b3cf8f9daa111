package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/app"
	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/extract"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/watcher"
)

type serveOptions struct {
	inbox        string
	forcePolling bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch the inbox and ingest new documents",
		Long: `Watch the inbox directory and ingest documents dropped into it.

Files already in the inbox but not yet indexed are ingested at start. A
changed file replaces its document. Removing a file from the inbox leaves
the index untouched; use 'docrag delete' for that.

Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, cleanup, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			return runServe(ctx, svc, g.output(cmd), opts)
		},
	}

	cmd.Flags().StringVar(&opts.inbox, "inbox", "", "Directory to watch (default: ingest.inbox)")
	cmd.Flags().BoolVar(&opts.forcePolling, "poll", false, "Poll the inbox instead of using file system events")
	return cmd
}

func runServe(ctx context.Context, svc *app.Services, out *output.Writer, opts serveOptions) error {
	dir := opts.inbox
	if dir == "" {
		dir = svc.Config.Ingest.Inbox
	}
	w, err := watcher.NewInboxWatcher(dir, watcher.Options{
		Debounce:     svc.Config.Ingest.Debounce,
		ForcePolling: opts.forcePolling,
		Filter:       extract.Supported,
	}, svc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	svc.Runner.StartGC(ctx, svc.Config.Ingest.GCInterval)

	existing, err := w.Existing()
	if err != nil {
		return err
	}
	inbox := &inboxIngester{svc: svc, out: out}
	for _, path := range existing {
		inbox.ingestNew(path)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	out.Successf("Watching %s", w.Dir())

	watchErrs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			out.Status("", "Shutting down, waiting for running ingestions...")
			svc.Runner.Wait()
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			svc.Runner.Wait()
			return nil
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			svc.Logger.Warn("inbox watch error", slog.String("error", err.Error()))
		case batch, ok := <-w.Events():
			if !ok {
				svc.Runner.Wait()
				return nil
			}
			// Pick up deletes and ingests made by other docrag processes.
			if err := svc.Manager.Refresh(ctx); err != nil {
				svc.Logger.Warn("index refresh failed", docerrors.LogAttrs(err)...)
			}
			for _, ev := range batch {
				inbox.handle(ctx, ev)
			}
		}
	}
}

// inboxIngester turns inbox events into ingestion tasks.
type inboxIngester struct {
	svc *app.Services
	out *output.Writer
}

func (in *inboxIngester) handle(ctx context.Context, ev watcher.FileEvent) {
	switch ev.Operation {
	case watcher.OpCreate:
		in.ingestNew(ev.Path)
	case watcher.OpModify:
		in.replace(ctx, ev.Path)
	case watcher.OpDelete:
		in.svc.Logger.Info("inbox file removed, index unchanged", slog.String("path", ev.Path))
	}
}

// ingestNew submits path unless a document with its name is indexed.
func (in *inboxIngester) ingestNew(path string) {
	id := filepath.Base(path)
	if in.indexed(id) {
		return
	}
	in.submit(path, id)
}

// replace removes the document for path, if any, and ingests it again.
func (in *inboxIngester) replace(ctx context.Context, path string) {
	id := filepath.Base(path)
	if in.indexed(id) {
		if _, err := in.svc.Manager.DeleteDocument(ctx, id); err != nil {
			in.out.Errorf("%s: %s", id, err)
			return
		}
	}
	in.submit(path, id)
}

func (in *inboxIngester) submit(path, id string) {
	snap, err := in.svc.Submit(path, id)
	if err != nil {
		in.out.Errorf("%s: %s", id, err)
		in.svc.Logger.Error("inbox submit failed",
			append([]any{slog.String("path", path)}, docerrors.LogAttrs(err)...)...)
		return
	}
	in.out.Statusf("+", "queued %s (task %s)", id, snap.ID)
}

func (in *inboxIngester) indexed(id string) bool {
	for _, d := range in.svc.Manager.Documents() {
		if d.DocumentID == id {
			return true
		}
	}
	return false
}
