package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/store"
	"github.com/Aman-CERP/docrag/internal/ui"
)

type deleteOptions struct {
	all        bool
	yes        bool
	jsonOutput bool
}

// selectFunc picks documents interactively. Tests replace it.
var selectFunc = ui.SelectItems

// interactiveFunc reports whether prompts can be shown. Tests replace it.
var interactiveFunc = ui.IsInteractive

func newDeleteCmd(g *globalOptions) *cobra.Command {
	var opts deleteOptions

	cmd := &cobra.Command{
		Use:   "delete [name|number]...",
		Short: "Remove documents from the index",
		Long: `Remove documents by id or by the number shown in 'docrag files'.

Without arguments on a terminal, a selection list is shown.
With --all, every document and the persisted index are removed.

Examples:
  docrag delete lease.pdf
  docrag delete 1 3
  docrag delete --all --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, g, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Delete every document")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation for --all")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the outcomes as JSON")
	return cmd
}

func runDelete(cmd *cobra.Command, g *globalOptions, args []string, opts deleteOptions) error {
	if opts.all && len(args) > 0 {
		return docerrors.ValidationError("--all does not take document arguments", nil)
	}

	svc, cleanup, err := g.open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()
	out := g.output(cmd)

	if opts.all {
		if !opts.yes {
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Delete all %d documents? [y/N] ", len(svc.Manager.Documents())))
			if err != nil {
				return err
			}
			if !ok {
				return docerrors.New(docerrors.ErrCodeInvalidInput, "deletion cancelled", nil)
			}
		}
		if err := svc.Manager.ClearAll(cmd.Context()); err != nil {
			return err
		}
		out.Success("All documents deleted")
		return nil
	}

	docs := svc.Manager.Documents()
	var ids []string
	if len(args) == 0 {
		if !interactiveFunc() {
			return docerrors.ValidationError("no documents given", nil).
				WithSuggestion("Pass document names or numbers, or run on a terminal to pick interactively")
		}
		if len(docs) == 0 {
			out.Status("", "No documents indexed.")
			return nil
		}
		ids, err = selectFunc("Select documents to delete", documentIDs(docs), g.noColor)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			out.Status("", "Nothing selected.")
			return nil
		}
	} else {
		ids, err = resolveSelection(args, docs)
		if err != nil {
			return err
		}
	}

	batch := svc.Manager.DeleteMany(cmd.Context(), ids)
	if opts.jsonOutput {
		if err := out.JSON(batch); err != nil {
			return err
		}
	} else {
		printOutcomes(out, batch)
	}
	if batch.Failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", batch.Failed, len(batch.Outcomes))
	}
	return nil
}

// resolveSelection maps each argument to a document id. A known id wins
// over a list number; a number outside the list is an error.
func resolveSelection(args []string, docs []store.FileRecord) ([]string, error) {
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d.DocumentID] = true
	}

	seen := make(map[string]bool, len(args))
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id := arg
		if !known[arg] {
			if n, err := strconv.Atoi(arg); err == nil {
				if n < 1 || n > len(docs) {
					return nil, docerrors.ValidationError(
						fmt.Sprintf("invalid selection %d: choose 1-%d", n, len(docs)), nil)
				}
				id = docs[n-1].DocumentID
			}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func documentIDs(docs []store.FileRecord) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocumentID
	}
	return ids
}

func printOutcomes(out *output.Writer, batch *index.BatchDeleteResult) {
	for _, o := range batch.Outcomes {
		if o.Err != nil {
			msg := o.Err.Error()
			if known := docerrors.KnownIDs(o.Err); len(known) > 0 {
				msg = fmt.Sprintf("%s (known: %s)", msg, strings.Join(known, ", "))
			}
			out.Errorf("%s: %s", o.DocumentID, msg)
			continue
		}
		out.Successf("%s: removed %d chunks, %d chunks in %d files remain",
			o.DocumentID, o.Result.RemovedChunks, o.Result.RemainingChunks, o.Result.RemainingFiles)
	}
	if batch.Failed > 0 && batch.Succeeded > 0 {
		out.Warningf("%d of %d deletions failed, the others were applied", batch.Failed, len(batch.Outcomes))
	}
}

// confirm asks a y/N question on in and reports a yes.
func confirm(in io.Reader, outw io.Writer, prompt string) (bool, error) {
	_, _ = fmt.Fprint(outw, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
