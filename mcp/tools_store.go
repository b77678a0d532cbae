package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/internal/confidence"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
	"github.com/noustack/nous/types"
)

// maxBatch is the hard cap on kb_store_batch input.
const maxBatch = 10

// storeHandler creates, updates or deactivates a knowledge entry.
func (s *Server) storeHandler() mcpsdk.ToolHandlerFor[types.StoreParams, types.StoreResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.StoreParams]) (*mcpsdk.CallToolResultFor[types.StoreResponse], error) {
		args := params.Arguments

		// Deactivate path
		if args.DeactivateEntryID != "" {
			entry, err := s.Service.Deactivate(ctx, args.DeactivateEntryID)
			if err != nil {
				return nil, storeError(err, args.DeactivateEntryID)
			}
			text := fmt.Sprintf("Deactivated entry %s: %s", entry.ID, entry.ShortTitle)
			if args.ChangeReason != "" {
				text += " (" + args.ChangeReason + ")"
			}
			return storeResult(text, "deactivated", entry), nil
		}

		// Update path
		if args.UpdateEntryID != "" {
			if strings.TrimSpace(args.Details) == "" {
				return nil, types.NewMCPError("MISSING_DETAILS", "knowledge_details is required when updating", nil)
			}
			patch := store.EntryPatch{
				Details:         &args.Details,
				ConfidenceLevel: args.ConfidenceLevel,
				Tags:            args.Tags,
				Hints:           args.Hints,
			}
			entry, err := s.Service.UpdateEntry(ctx, args.UpdateEntryID, patch, args.ChangeReason)
			if err != nil {
				return nil, storeError(err, args.UpdateEntryID)
			}
			return storeResult(formatStoreText(entry, true), "updated", entry), nil
		}

		// Create path
		confidenceLevel := 0.9
		if args.ConfidenceLevel != nil {
			confidenceLevel = *args.ConfidenceLevel
		}
		entryType := args.EntryType
		if entryType == "" {
			entryType = string(models.TypeFactualReference)
		}

		entry, err := s.Service.CreateEntry(ctx, store.EntryFields{
			ShortTitle:      strings.TrimSpace(args.ShortTitle),
			LongTitle:       strings.TrimSpace(args.LongTitle),
			Details:         args.Details,
			EntryType:       models.EntryType(entryType),
			ProjectRef:      args.ProjectRef,
			SourceContext:   args.SourceContext,
			ConfidenceLevel: confidenceLevel,
			Tags:            args.Tags,
			Hints:           args.Hints,
		})
		if err != nil {
			return nil, storeError(err, "")
		}
		return storeResult(formatStoreText(entry, false), "created", entry), nil
	}
}

// storeBatchHandler creates up to maxBatch entries in one call.
func (s *Server) storeBatchHandler() mcpsdk.ToolHandlerFor[types.StoreBatchParams, types.StoreResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.StoreBatchParams]) (*mcpsdk.CallToolResultFor[types.StoreResponse], error) {
		entries := params.Arguments.Entries
		if len(entries) == 0 {
			return nil, types.NewMCPError("EMPTY_BATCH", "entries list is empty", nil)
		}
		if len(entries) > maxBatch {
			return nil, types.NewMCPError("BATCH_TOO_LARGE",
				fmt.Sprintf("Maximum %d entries per batch (got %d)", maxBatch, len(entries)), nil)
		}

		fieldsList := make([]store.EntryFields, 0, len(entries))
		for i, in := range entries {
			if in.ShortTitle == "" || in.LongTitle == "" || in.Details == "" {
				return nil, types.NewMCPError("MISSING_FIELDS",
					fmt.Sprintf("entry %d missing required fields (short_title, long_title, knowledge_details)", i), nil)
			}
			confidenceLevel := 0.9
			if in.ConfidenceLevel != nil {
				confidenceLevel = *in.ConfidenceLevel
			}
			entryType := in.EntryType
			if entryType == "" {
				entryType = string(models.TypeFactualReference)
			}
			fieldsList = append(fieldsList, store.EntryFields{
				ShortTitle:      in.ShortTitle,
				LongTitle:       in.LongTitle,
				Details:         in.Details,
				EntryType:       models.EntryType(entryType),
				ProjectRef:      in.ProjectRef,
				SourceContext:   in.SourceContext,
				ConfidenceLevel: confidenceLevel,
				Tags:            in.Tags,
				Hints:           in.Hints,
			})
		}

		created, err := s.Service.CreateBatch(ctx, fieldsList)
		if err != nil {
			return nil, storeError(err, "")
		}

		now := time.Now().UTC()
		formatted := make([]string, 0, len(created))
		summaries := make([]types.EntrySummary, 0, len(created))
		for _, entry := range created {
			eff := confidence.EffectiveForEntry(entry, now)
			formatted = append(formatted,
				fmt.Sprintf("Created %s (v%d)\n%s", entry.ID, entry.Version, formatEntryCompact(entry, eff, "")))
			summaries = append(summaries, entrySummary(entry, eff, "", ""))
		}

		text := formatResultList(formatted, fmt.Sprintf("Batch: %d entries created", len(created)), "", nil)
		return &mcpsdk.CallToolResultFor[types.StoreResponse]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			StructuredContent: types.StoreResponse{Entries: summaries, Action: "created"},
		}, nil
	}
}

func formatStoreText(entry *models.KnowledgeEntry, isUpdate bool) string {
	action := "Created"
	if isUpdate {
		action = "Updated"
	}
	eff := confidence.EffectiveForEntry(entry, time.Now().UTC())
	text := fmt.Sprintf("%s %s (v%d)\n%s", action, entry.ID, entry.Version, formatEntryCompact(entry, eff, ""))
	if !entry.HasEmbedding {
		text += "\n  Note: Entry will be embedded when the embedder is available"
	}
	return text
}

func storeResult(text, action string, entry *models.KnowledgeEntry) *mcpsdk.CallToolResultFor[types.StoreResponse] {
	eff := confidence.EffectiveForEntry(entry, time.Now().UTC())
	return &mcpsdk.CallToolResultFor[types.StoreResponse]{
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		StructuredContent: types.StoreResponse{Entries: []types.EntrySummary{entrySummary(entry, eff, "", "")}, Action: action},
	}
}

// storeError maps store failures onto the MCP error taxonomy. Not-found
// and validation failures are surfaced; anything else is internal.
func storeError(err error, id string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return types.NewMCPError("NOT_FOUND", fmt.Sprintf("Entry %s not found or inactive", id), nil)
	case store.IsValidation(err):
		return types.NewMCPError("VALIDATION_FAILED", err.Error(), nil)
	default:
		return types.NewMCPError("STORE_FAILED", err.Error(), nil)
	}
}
