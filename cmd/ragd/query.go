package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var (
	queryK         int
	querySemantic  bool
	queryDocuments []string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>...",
	Short: "Retrieve context for a question",
	Long: `Search the tenant's index and print the assembled context block with
source attributions.

Examples:
  ragd query "what were the quarterly findings"
  ragd query --tenant acme --k 3 --documents report.pdf "revenue growth"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryK, "k", retriever.DefaultK, "maximum chunks to retrieve")
	queryCmd.Flags().BoolVar(&querySemantic, "semantic", false, "disable keyword blending (pure semantic search)")
	queryCmd.Flags().StringSliceVar(&queryDocuments, "documents", nil, "restrict retrieval to these filenames")
}

func runQuery(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	question := strings.Join(args, " ")

	opts := retriever.DefaultQueryOptions()
	opts.K = queryK
	opts.UseHybrid = !querySemantic
	if len(queryDocuments) > 0 {
		opts.Filter = vectorstore.Filter{"filename": queryDocuments}
	}

	result, err := app.retriever.RetrieveContext(cmd.Context(), question, tenantID, opts)
	if err != nil {
		return err
	}

	if result.ChunksFound == 0 {
		fmt.Printf("No relevant context found for tenant %s.\n", tenantID)
		return nil
	}

	fmt.Println(result.Context)
	fmt.Printf("\n%d chunks from %d sources:\n", result.ChunksFound, len(result.Sources))
	for _, source := range result.Sources {
		fmt.Printf("  %s (page %d, score %.3f)\n", source.Filename, source.Page, source.Score)
	}
	return nil
}
