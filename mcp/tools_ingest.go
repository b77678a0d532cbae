package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/internal/ingest"
	"github.com/noustack/nous/types"
)

// ingestHandler runs the file-ingestion pipeline on a file or directory.
func (s *Server) ingestHandler() mcpsdk.ToolHandlerFor[types.IngestParams, types.IngestResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.IngestParams]) (*mcpsdk.CallToolResultFor[types.IngestResponse], error) {
		args := params.Arguments
		if strings.TrimSpace(args.Path) == "" {
			return nil, types.NewMCPError("MISSING_PATH", "A file or directory path is required", nil)
		}

		info, err := os.Stat(args.Path)
		if err != nil {
			return nil, types.NewMCPError("PATH_NOT_FOUND", err.Error(), nil)
		}

		var result *ingest.Result
		if info.IsDir() {
			result, err = s.Ingester.IngestDirectory(ctx, args.Path, args.ProjectRef, args.Recursive, args.DryRun)
			if err != nil {
				return nil, types.NewMCPError("INGEST_FAILED", err.Error(), nil)
			}
		} else {
			fr := s.Ingester.IngestFile(ctx, args.Path, args.ProjectRef, "", args.DryRun)
			result = &ingest.Result{TotalFiles: 1, Files: []ingest.FileResult{fr}}
			switch fr.Action {
			case ingest.ActionIngested, ingest.ActionDryRun:
				result.Ingested = 1
				result.EntriesCreated = fr.EntryCount
			case ingest.ActionSkipped:
				result.Skipped = 1
			case ingest.ActionFlagged:
				result.Flagged = 1
			case ingest.ActionUnchanged:
				result.Unchanged = 1
			case ingest.ActionError:
				result.Errors = 1
			}
		}

		return &mcpsdk.CallToolResultFor[types.IngestResponse]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: formatIngestResult(result, args.DryRun)}},
			StructuredContent: types.IngestResponse{
				TotalFiles:     result.TotalFiles,
				Ingested:       result.Ingested,
				Skipped:        result.Skipped,
				Flagged:        result.Flagged,
				Errors:         result.Errors,
				Unchanged:      result.Unchanged,
				EntriesCreated: result.EntriesCreated,
			},
		}, nil
	}
}

func formatIngestResult(result *ingest.Result, dryRun bool) string {
	var b strings.Builder
	verb := "Ingested"
	if dryRun {
		verb = "Previewed"
	}
	fmt.Fprintf(&b, "%s %d of %d file(s): %d entries, %d skipped, %d flagged, %d unchanged, %d errors\n",
		verb, result.Ingested, result.TotalFiles, result.EntriesCreated,
		result.Skipped, result.Flagged, result.Unchanged, result.Errors)
	for _, fr := range result.Files {
		fmt.Fprintf(&b, "\n%s: %s", fr.Path, fr.Action)
		if fr.Reason != "" {
			fmt.Fprintf(&b, " (%s)", fr.Reason)
		}
		if fr.EntryCount > 0 {
			fmt.Fprintf(&b, " - %d entries", fr.EntryCount)
			if len(fr.EntryIDs) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(fr.EntryIDs, ", "))
			}
		}
		if fr.Summary != "" {
			fmt.Fprintf(&b, "\n  %s", fr.Summary)
		}
	}
	return b.String()
}
