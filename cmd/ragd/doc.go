package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var docSearchFile string

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage a tenant's documents",
}

var docListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's documents",
	RunE:  runDocList,
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete a document from the index and storage",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocDelete,
}

var docSearchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search documents, grouped per file",
	Long: `Search the tenant's index and group matching chunks per document,
best-scoring documents first.

Examples:
  ragd doc search "migration plan"
  ragd doc search --tenant acme --file report.pdf "revenue"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocSearch,
}

func init() {
	docSearchCmd.Flags().StringVar(&docSearchFile, "file", "", "restrict the search to one filename")

	docCmd.AddCommand(docListCmd)
	docCmd.AddCommand(docDeleteCmd)
	docCmd.AddCommand(docSearchCmd)
}

func runDocList(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	docs := app.tenants.TenantDocuments(tenantID)
	if len(docs) == 0 {
		fmt.Printf("No documents for tenant %s.\n", tenantID)
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%-30s %-40s %8d bytes  %d chunks  %s\n",
			doc.Filename, doc.FileType, doc.FileSize, doc.ChunksCreated,
			doc.UploadDate.Format("2006-01-02 15:04"))
	}
	return nil
}

func runDocDelete(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	filename := args[0]
	if err := app.retriever.DeleteDocument(cmd.Context(), tenantID, filename); err != nil {
		return err
	}
	fmt.Printf("Deleted %s for tenant %s\n", filename, tenantID)
	return nil
}

func runDocSearch(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	query := strings.Join(args, " ")
	matches, err := app.retriever.SearchDocuments(cmd.Context(), query, tenantID, docSearchFile, 10)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No matches for tenant %s.\n", tenantID)
		return nil
	}

	for _, match := range matches {
		fmt.Printf("%s (best score %.3f)\n", match.Filename, match.BestScore)
		for _, chunk := range match.Chunks {
			fmt.Printf("  p%d %.3f  %s\n", chunk.Page, chunk.Score, chunk.Content)
		}
	}
	return nil
}
