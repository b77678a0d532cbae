package mcp

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/models"
	"github.com/noustack/nous/types"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// searchHandler runs the hybrid ranker and attaches sparse graph hints.
func (s *Server) searchHandler() mcpsdk.ToolHandlerFor[types.SearchParams, types.SearchResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.SearchParams]) (*mcpsdk.CallToolResultFor[types.SearchResponse], error) {
		args := params.Arguments
		if strings.TrimSpace(args.Query) == "" {
			return nil, types.NewMCPError("MISSING_QUERY", "Search query is required", nil)
		}
		if args.EntryType != "" && !models.ValidEntryType(args.EntryType) {
			return nil, types.NewMCPError("INVALID_ENTRY_TYPE", "Unknown entry type: "+args.EntryType, map[string]interface{}{
				"valid_values": models.EntryTypes,
			})
		}
		limit := clampLimit(args.Limit, defaultSearchLimit, maxSearchLimit)

		results, hints, err := s.Service.Search(ctx, models.SearchQuery{
			Query:        args.Query,
			ProjectRef:   args.ProjectRef,
			EntryType:    models.EntryType(args.EntryType),
			Tags:         args.Tags,
			Limit:        limit,
			IncludeStale: args.IncludeStale,
		})
		if err != nil {
			return nil, types.NewMCPError("SEARCH_FAILED", err.Error(), nil)
		}

		note := ""
		if s.Service.Embedder == nil || !s.Service.Embedder.IsAvailable(ctx) {
			note = "Vector search unavailable (embedder offline). Results are FTS-only."
		}

		formatted := make([]string, 0, len(results))
		summaries := make([]types.EntrySummary, 0, len(results))
		for _, r := range results {
			formatted = append(formatted, formatEntryCompact(r.Entry, r.EffectiveConfidence, r.StalenessWarning))
			summaries = append(summaries, entrySummary(r.Entry, r.EffectiveConfidence, r.StalenessWarning, r.MatchSource))
		}

		text := formatResultList(formatted, "", note, hints)
		return &mcpsdk.CallToolResultFor[types.SearchResponse]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			StructuredContent: types.SearchResponse{Results: summaries, Hints: hints, Note: note},
		}, nil
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
