package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	tenantName  string
	tenantEmail string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a tenant",
	Long: `Create a tenant. Without --id a short random ID is generated.

Examples:
  ragd tenant create --name "Acme Corp" --email ops@acme.example
  ragd tenant create --name "Acme Corp" --id acme`,
	RunE: runTenantCreate,
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants",
	RunE:  runTenantList,
}

var tenantStatsCmd = &cobra.Command{
	Use:   "stats <tenant-id>",
	Short: "Show a tenant's storage and index statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runTenantStats,
}

func init() {
	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "tenant display name")
	tenantCreateCmd.Flags().StringVar(&tenantEmail, "email", "", "tenant contact email")
	tenantCreateCmd.Flags().String("id", "", "explicit tenant ID")

	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantListCmd)
	tenantCmd.AddCommand(tenantStatsCmd)
}

func runTenantCreate(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	explicitID, _ := cmd.Flags().GetString("id")
	name := tenantName
	if name == "" {
		name = explicitID
	}
	if name == "" {
		return fmt.Errorf("--name or --id is required")
	}

	id, err := app.tenants.CreateTenant(name, tenantEmail, explicitID)
	if err != nil {
		return err
	}
	fmt.Printf("Created tenant %s\n", id)
	return nil
}

func runTenantList(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	tenants := app.tenants.ListTenants()
	if len(tenants) == 0 {
		fmt.Println("No tenants.")
		return nil
	}
	for _, info := range tenants {
		fmt.Printf("%-20s %-24s %d documents, %d chunks\n",
			info.TenantID, info.Name, info.DocumentCount, info.TotalChunks)
	}
	return nil
}

func runTenantStats(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	id := args[0]
	stats := app.tenants.TenantStats(id)
	if !stats.Exists {
		return fmt.Errorf("tenant %s not found", id)
	}

	index := app.store.TenantStats(id)
	out := struct {
		Tenant any `json:"tenant"`
		Index  any `json:"index"`
	}{Tenant: stats, Index: index}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
