// Package main implements the ragd CLI for multi-tenant document retrieval.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/agents"
	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retriever"
	"github.com/fyrsmithlabs/ragd/internal/tenant"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var (
	configPath string
	tenantID   string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Multi-tenant document ingestion and retrieval",
	Long: `ragd ingests documents into per-tenant vector indexes and retrieves
relevant context for questions, either directly or through specialized
chat handlers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/ragd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "default", "tenant ID to operate on")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(handlersCmd)
}

// app holds the wired service graph behind every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	tenants   *tenant.Manager
	store     *vectorstore.Store
	retriever *retriever.Service
	router    *agents.Router
}

// newApp loads config and wires the full service graph. Startup reconciles
// storage: orphaned document references are dropped and stale tenant
// indexes rebuilt.
func newApp(ctx context.Context) (*app, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	embedSvc, err := embeddings.NewService(cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("creating embeddings service: %w", err)
	}

	store, err := vectorstore.NewStore(cfg.VectorStore, embedSvc.Embedder(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	tenants, err := tenant.NewManager(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("creating tenant store: %w", err)
	}

	processor := chunker.New(
		chunker.WithChunkSize(cfg.Chunker.Size),
		chunker.WithOverlap(cfg.Chunker.Overlap),
		chunker.WithLogger(logger),
	)

	svc, err := retriever.NewService(processor, store, tenants, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	tenants.CleanupOrphanedReferences()
	if _, err := svc.Reindex(ctx); err != nil {
		logger.Warn("startup reindex incomplete", zap.Error(err))
	}

	router := buildRouter(cfg, svc, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		tenants:   tenants,
		store:     store,
		retriever: svc,
		router:    router,
	}, nil
}

// buildRouter assembles the handler chain. If the LLM client cannot be
// built the router runs disabled rather than failing startup, since
// ingestion and retrieval work without it.
func buildRouter(cfg *config.Config, svc *retriever.Service, logger *zap.Logger) *agents.Router {
	client, err := llm.New(cfg.LLM, logger)
	if err != nil {
		logger.Warn("llm client unavailable", zap.Error(err))
		return agents.NewDisabledRouter(logger)
	}

	handlers := []agents.Handler{
		agents.NewDocumentHandler(svc, client, logger),
		agents.NewAPIHandler(client, logger),
		agents.NewFormHandler(client, logger),
		agents.NewAnalyticsHandler(client, logger),
	}
	return agents.NewRouter(handlers, agents.NewFallbackHandler(client, logger), logger)
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// mimeForFile maps a filename extension to the processor's MIME types.
func mimeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return chunker.MIMEPDF
	case ".docx":
		return chunker.MIMEDocx
	case ".csv":
		return chunker.MIMECSV
	case ".xls":
		return chunker.MIMEXLS
	case ".xlsx":
		return chunker.MIMEXLSX
	default:
		return chunker.MIMEText
	}
}
