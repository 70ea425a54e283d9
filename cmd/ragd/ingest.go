package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest documents into a tenant's index",
	Long: `Ingest one or more documents: chunk, embed, index, and store them
for the tenant.

Examples:
  ragd ingest report.pdf
  ragd ingest --tenant acme notes.txt data.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	failures := 0
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			failures++
			continue
		}

		filename := filepath.Base(path)
		result := app.retriever.AddDocument(cmd.Context(), content, filename, mimeForFile(path), tenantID)
		if !result.Success {
			fmt.Fprintf(os.Stderr, "✗ %s: %s\n", filename, result.Error)
			failures++
			continue
		}
		fmt.Printf("✓ %s: %d chunks indexed for tenant %s\n", filename, result.ChunksCreated, tenantID)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(args))
	}
	return nil
}
