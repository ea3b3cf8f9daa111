package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/index"
)

// statsOutput is the JSON output of the stats command.
type statsOutput struct {
	index.Stats
	Consistent      bool     `json:"consistent"`
	Inconsistencies []string `json:"inconsistencies,omitempty"`
	DataDir         string   `json:"data_dir"`
	Embedder        string   `json:"embedder"`
}

func newStatsCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics and a consistency check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			check := svc.Manager.Check()
			res := statsOutput{
				Stats:      svc.Manager.Stats(),
				Consistent: check.OK(),
				DataDir:    svc.Config.DataDir,
				Embedder:   svc.Embedder.ModelName(),
			}
			for _, issue := range check.Inconsistencies {
				res.Inconsistencies = append(res.Inconsistencies, issue.Type.String()+": "+issue.Details)
			}

			out := g.output(cmd)
			if jsonOutput {
				return out.JSON(res)
			}

			out.Header("Index")
			out.KeyValue("Data dir", res.DataDir)
			out.KeyValue("State", res.State)
			out.KeyValue("Files", res.FileCount)
			out.KeyValue("Chunks", res.ChunkCount)
			out.KeyValue("Vectors", res.VectorCount)
			out.KeyValue("Keyword entries", res.KeywordCount)
			out.KeyValue("Vocabulary", res.Vocabulary)
			out.KeyValue("Dimensions", res.Dimensions)
			out.KeyValue("Embedder", res.Embedder)
			out.Newline()
			if res.Consistent {
				out.Success("Index is consistent")
				return nil
			}
			for _, issue := range res.Inconsistencies {
				out.Error(issue)
			}
			return check.Err()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
