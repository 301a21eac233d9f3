package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley-cli/internal/core/ports/driving"
	"github.com/custodia-labs/parley-cli/internal/normalisers"
)

var ingestDocID string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into the corpus",
	Long: `Extracts, chunks, embeds, and indexes documents. Markdown, HTML,
and DOCX files are reduced to plain text before chunking; anything
else is treated as plain text. Re-ingesting a file updates the
document to a new version; answers citing the old version are flagged
as stale.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocID, "id", "", "document ID (single file only; default derives from the file name)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := ensurePipeline(ctx); err != nil {
		return err
	}

	if ingestDocID != "" && len(args) > 1 {
		return fmt.Errorf("--id can only be used with a single file")
	}

	registry := normalisers.NewRegistry()

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		norm := registry.ForPath(path)
		text, err := norm.Normalise(data)
		if err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}

		doc, err := ingestService.Ingest(ctx, driving.IngestInput{
			DocumentID: ingestDocID,
			SourceURI:  "file://" + abs,
			Text:       text,
			FormatHint: norm.Format(),
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}

		cmd.Printf("Ingested %s (version %d)\n", doc.ID, doc.Version)
	}

	return nil
}
