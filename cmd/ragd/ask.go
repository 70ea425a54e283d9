package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragd/internal/agents"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>...",
	Short: "Route a message through the chat handlers",
	Long: `Dispatch a message to the best-matching handler (document Q&A, API,
forms, analytics) and print its answer. Falls back to a general response
when no handler is confident.

Examples:
  ragd ask "summarize the findings in the report"
  ragd ask --tenant acme "what does the second doc say about pricing"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the registered chat handlers",
	RunE:  runHandlers,
}

func runAsk(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	message := strings.Join(args, " ")
	resp := app.router.Dispatch(cmd.Context(), message, &agents.RequestContext{TenantID: tenantID})

	fmt.Println(resp.Text)
	if resp.Err != "" {
		fmt.Printf("\n[%s, error: %s]\n", resp.Agent, resp.Err)
		return nil
	}
	fmt.Printf("\n[%s, confidence %.2f]\n", resp.Agent, resp.Confidence)
	return nil
}

func runHandlers(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	infos := app.router.Handlers()
	if len(infos) == 0 {
		fmt.Println("No handlers registered (router disabled).")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%-18s %s\n", info.Name, info.Description)
	}
	return nil
}
