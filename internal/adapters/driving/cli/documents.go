package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Remove a document from the corpus",
	Long: `Removes a document and its index entries. Answers in existing
conversations that cite the document are flagged as stale.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentsDelete,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	if err := ensurePipeline(ctx); err != nil {
		return err
	}

	docs, err := ingestService.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents ingested.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Source:  %s\n", docs[i].SourceURI)
		cmd.Printf("    Version: %d\n", docs[i].Version)
		cmd.Printf("    Updated: %s\n", docs[i].UpdatedAt.Format("2006-01-02 15:04:05"))
		cmd.Println()
	}
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := ensurePipeline(ctx); err != nil {
		return err
	}

	if err := ingestService.DeleteDocument(ctx, args[0]); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
