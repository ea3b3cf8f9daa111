package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/store"
)

// fileEntry is the JSON form of one indexed document.
type fileEntry struct {
	Number     int       `json:"number"`
	DocumentID string    `json:"document_id"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	Chunks     int       `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func fileEntries(records []store.FileRecord) []fileEntry {
	out := make([]fileEntry, len(records))
	for i, rec := range records {
		out[i] = fileEntry{
			Number:     i + 1,
			DocumentID: rec.DocumentID,
			StartIndex: rec.StartIndex,
			EndIndex:   rec.EndIndex,
			Chunks:     rec.ChunkCount(),
			UploadedAt: rec.UploadedAt,
		}
	}
	return out
}

func newFilesCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List indexed documents",
		Long: `List indexed documents in index order with their chunk ranges.

The numbers shown can be passed to 'docrag delete'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entries := fileEntries(svc.Manager.Documents())
			out := g.output(cmd)
			if jsonOutput {
				return out.JSON(entries)
			}
			if len(entries) == 0 {
				out.Status("", "No documents indexed. Add some with 'docrag ingest <path>'.")
				return nil
			}

			styles := out.Styles()
			out.Header(fmt.Sprintf("%d documents", len(entries)))
			for _, e := range entries {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%3d. %s %s %s\n",
					e.Number,
					styles.Active.Render(e.DocumentID),
					styles.Label.Render(fmt.Sprintf("chunks %d-%d (%d)", e.StartIndex, e.EndIndex, e.Chunks)),
					styles.Dim.Render(e.UploadedAt.Local().Format("2006-01-02 15:04")))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
