package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/search"
)

type searchOptions struct {
	topK       int
	documentID string
	noRerank   bool
	jsonOutput bool
}

// snippetLength caps the chunk text shown per result.
const snippetLength = 240

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search the indexed documents using hybrid search.

Keyword and semantic scores are normalized and fused, then results that
cover more of the query terms are boosted.

Examples:
  docrag search "harga sewa"
  docrag search "termination notice" --top-k 10
  docrag search "payment" --doc lease.pdf --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			query := strings.Join(args, " ")
			results, err := svc.Manager.Search(cmd.Context(), query, search.Options{
				TopK:       opts.topK,
				Rerank:     !opts.noRerank && svc.Config.Search.Rerank,
				DocumentID: opts.documentID,
			})
			if err != nil {
				return err
			}

			out := g.output(cmd)
			if opts.jsonOutput {
				return out.JSON(results)
			}
			if len(results) == 0 {
				out.Status("", fmt.Sprintf("No results for %q", query))
				return nil
			}

			styles := out.Styles()
			for i, r := range results {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d. %s %s %s\n",
					i+1,
					styles.Active.Render(r.Chunk.DocumentID),
					styles.Label.Render(fmt.Sprintf("chunk %d (%s)", r.Chunk.ID, r.Chunk.Kind)),
					styles.Score.Render(fmt.Sprintf("score %.3f", r.Score)))
				out.Code(snippet(r.Chunk.Text, snippetLength))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of results (default: search.top_k)")
	cmd.Flags().StringVar(&opts.documentID, "doc", "", "Restrict results to one document")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Skip the term-coverage rerank")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// snippet collapses whitespace and truncates text to n runes.
func snippet(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	r := []rune(flat)
	if len(r) <= n {
		return flat
	}
	return string(r[:n]) + "..."
}
