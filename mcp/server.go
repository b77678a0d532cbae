// Package mcp exposes the knowledge base as MCP tools over stdio.
package mcp

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/internal/config"
	"github.com/noustack/nous/internal/ingest"
	"github.com/noustack/nous/internal/knowledge"
)

// Server is the context shared by every tool handler. Availability
// caches live on the service's clients, not in package globals.
type Server struct {
	Service  *knowledge.Service
	Ingester *ingest.Ingester
	Config   config.Config
}

// RegisterTools wires every kb_* tool into the MCP server. kb_maintain
// is registered only in manager mode.
func RegisterTools(server *mcpsdk.Server, s *Server) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "kb_store",
		Description: "Store or update a knowledge entry. Creates a version record on every write, indexes for full-text and (when the embedder is up) vector search, and derives graph edges. Use deactivate_entry_id to soft-delete.",
	}, s.storeHandler())

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "kb_store_batch",
		Description: "Create up to 10 knowledge entries in one call. Entries are embedded and graph-linked individually, then enriched with a single batched LLM call.",
	}, s.storeBatchHandler())

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "kb_search",
		Description: "Hybrid BM25 + vector search with reciprocal rank fusion. Results carry confidence decay: stale entries are flagged, very stale ones filtered unless include_stale. Sparse result sets gain graph-derived hints.",
	}, s.searchHandler())

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "kb_get",
		Description: "Retrieve full details for up to 20 entries by ID. Marks the entries as accessed, which resets their confidence-decay clock.",
	}, s.getHandler())

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "kb_ask",
		Description: "Answer questions by traversing the knowledge graph. Strategies: auto (hybrid search + neighbor expansion), decision_trace (supersedes chains), timeline (chronological scope), related (BFS), connection (shortest path).",
	}, s.askHandler())

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "kb_summarize",
		Description: "Answer a question with a synthesized response citing entry IDs. Falls back to raw results when the query LLM is unavailable.",
	}, s.summarizeHandler())

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "kb_ingest",
		Description: "Ingest a file or directory: deny-list and secret checks, PII redaction, LLM summarization and entry extraction. Re-ingestion is idempotent via content hashing.",
	}, s.ingestHandler())

	if s.Config.ManagerMode {
		mcpsdk.AddTool(server, &mcpsdk.Tool{
			Name:        "kb_maintain",
			Description: "Administrative maintenance: stats, deactivate, reactivate, rebuild_embeddings, rebuild_graph, purge_inactive, vacuum, entry_versions.",
		}, s.maintainHandler())
	}
}
