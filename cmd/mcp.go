package cmd

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/noustack/nous/internal/config"
	"github.com/noustack/nous/internal/ingest"
	"github.com/noustack/nous/internal/knowledge"
	"github.com/noustack/nous/internal/llm"
	"github.com/noustack/nous/internal/logging"
	"github.com/noustack/nous/internal/search"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/mcp"
)

// mcpCmd starts the MCP server over stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI tool integration",
	Long: `Start a Model Context Protocol (MCP) server over stdin/stdout exposing
the knowledge base tools: kb_store, kb_store_batch, kb_search, kb_get,
kb_ask, kb_summarize, kb_ingest and (in manager mode) kb_maintain.

The server runs until the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logging.Setup(cfg.LogLevel, cfg.LogFile)

	slog.Info("opening store", "path", cfg.StorePath, "dim", cfg.EmbeddingDim)
	st, err := store.Open(cfg.StorePath, cfg.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	embedder, err := search.NewEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbeddingDim, cfg.EmbedTimeout)
	if err != nil {
		slog.Warn("embedder construction failed, continuing FTS-only", "error", err)
		embedder = nil
	}

	extractionLLM := llm.New(cfg.ExtractionProvider, cfg)
	queryLLM := llm.New(cfg.QueryProvider, cfg)
	if extractionLLM != nil {
		defer extractionLLM.Close()
		slog.Info("extraction LLM configured", "provider", cfg.ExtractionProvider)
	} else {
		slog.Warn("extraction LLM unavailable, graph enrichment disabled", "provider", cfg.ExtractionProvider)
	}
	if queryLLM != nil {
		defer queryLLM.Close()
		slog.Info("query LLM configured", "provider", cfg.QueryProvider)
	} else {
		slog.Warn("query LLM unavailable, query planning and synthesis disabled", "provider", cfg.QueryProvider)
	}

	service := knowledge.NewService(st, embedder, extractionLLM, queryLLM, cfg.EntityMatchThreshold)
	srv := &mcp.Server{
		Service: service,
		Ingester: &ingest.Ingester{
			Service:     service,
			LLM:         extractionLLM,
			MaxFileSize: cfg.IngestMaxFileSize,
		},
		Config: cfg,
	}

	impl := &mcpsdk.Implementation{
		Name:    "nous",
		Version: version,
	}
	server := mcpsdk.NewServer(impl, &mcpsdk.ServerOptions{})
	mcp.RegisterTools(server, srv)

	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
