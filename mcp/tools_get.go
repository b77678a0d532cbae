package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/internal/confidence"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/types"
)

// maxGetIDs is the hard cap on kb_get input.
const maxGetIDs = 20

// getHandler retrieves full entries by id. Unlike search, explicit
// retrieval touches last_accessed and resets the decay clock.
func (s *Server) getHandler() mcpsdk.ToolHandlerFor[types.GetParams, types.GetResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.GetParams]) (*mcpsdk.CallToolResultFor[types.GetResponse], error) {
		ids := params.Arguments.EntryIDs
		if len(ids) == 0 {
			return nil, types.NewMCPError("MISSING_IDS", "At least one entry ID is required", nil)
		}
		if len(ids) > maxGetIDs {
			return nil, types.NewMCPError("TOO_MANY_IDS",
				fmt.Sprintf("Maximum %d IDs per request (got %d)", maxGetIDs, len(ids)), nil)
		}

		now := time.Now().UTC()
		var (
			formatted []string
			summaries []types.EntrySummary
			missing   []string
			accessed  []string
		)
		for _, id := range ids {
			entry, err := s.Service.Store.GetEntry(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					formatted = append(formatted, fmt.Sprintf("[%s] not found", id))
					missing = append(missing, id)
					continue
				}
				return nil, types.NewMCPError("GET_FAILED", err.Error(), nil)
			}
			if !entry.IsActive {
				formatted = append(formatted, fmt.Sprintf("[%s] not found", id))
				missing = append(missing, id)
				continue
			}
			formatted = append(formatted, formatEntryFull(entry, ""))
			eff := confidence.EffectiveForEntry(entry, now)
			summaries = append(summaries, entrySummary(entry, eff, confidence.StalenessWarning(eff, entry.EntryType), ""))
			accessed = append(accessed, id)
		}

		if len(accessed) > 0 {
			if err := s.Service.Store.TouchAccessed(ctx, accessed); err != nil {
				return nil, types.NewMCPError("GET_FAILED", err.Error(), nil)
			}
		}

		text := formatResultList(formatted, "", "", nil)
		return &mcpsdk.CallToolResultFor[types.GetResponse]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			StructuredContent: types.GetResponse{Entries: summaries, Missing: missing},
		}, nil
	}
}
