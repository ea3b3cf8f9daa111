package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// askOutput is the JSON output of the ask command.
type askOutput struct {
	Question   string `json:"question"`
	Kind       string `json:"kind"`
	DocumentID string `json:"document_id,omitempty"`
	Section    int    `json:"section,omitempty"`
	Chunks     []int  `json:"chunks"`
	Answer     string `json:"answer"`
}

func newAskCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool
	var showContext bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Classify the question, gather context from the index, and ask the
configured chat model.

Summary, date, location, and section questions read the named document
directly; other questions use hybrid search. When only one document is
indexed it is used even if the question does not name it.

Examples:
  docrag ask "summarize lease.pdf"
  docrag ask "what does pasal 5 of lease say?"
  docrag ask "how much is the monthly rent?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			question := strings.Join(args, " ")
			reply, r, err := svc.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}

			out := g.output(cmd)
			if jsonOutput {
				res := askOutput{
					Question:   question,
					Kind:       r.Question.Kind.String(),
					DocumentID: r.Question.DocumentID,
					Section:    r.Question.Section,
					Chunks:     make([]int, len(r.Chunks)),
					Answer:     reply,
				}
				for i, c := range r.Chunks {
					res.Chunks[i] = c.ID
				}
				return out.JSON(res)
			}

			if showContext {
				styles := out.Styles()
				for _, c := range r.Chunks {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(),
						styles.Label.Render(fmt.Sprintf("[%s #%d %s]", c.DocumentID, c.ID, c.Kind)))
					out.Code(snippet(c.Text, snippetLength))
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), reply)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the context chunks before the answer")
	return cmd
}
