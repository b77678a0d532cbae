package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/types"
)

var maintainActions = []string{
	"stats", "deactivate", "reactivate", "rebuild_embeddings",
	"rebuild_graph", "purge_inactive", "vacuum", "entry_versions",
}

// maintainHandler runs administrative maintenance. Only registered in
// manager mode.
func (s *Server) maintainHandler() mcpsdk.ToolHandlerFor[types.MaintainParams, types.MaintainResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.MaintainParams]) (*mcpsdk.CallToolResultFor[types.MaintainResponse], error) {
		args := params.Arguments

		var (
			detail string
			err    error
		)
		switch args.Action {
		case "stats":
			detail, err = s.actionStats(ctx)
		case "deactivate":
			detail, err = s.actionDeactivate(ctx, args.EntryID)
		case "reactivate":
			detail, err = s.actionReactivate(ctx, args.EntryID)
		case "rebuild_embeddings":
			detail, err = s.actionRebuildEmbeddings(ctx, args.Force)
		case "rebuild_graph":
			detail, err = s.actionRebuildGraph(ctx)
		case "purge_inactive":
			detail, err = s.actionPurgeInactive(ctx, args.DaysInactive, args.Confirm)
		case "vacuum":
			detail, err = s.actionVacuum(ctx)
		case "entry_versions":
			detail, err = s.actionEntryVersions(ctx, args.EntryID)
		default:
			return nil, types.NewMCPError("UNKNOWN_ACTION",
				fmt.Sprintf("Unknown action %q. Use: %s", args.Action, strings.Join(maintainActions, ", ")), nil)
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, types.NewMCPError("NOT_FOUND", err.Error(), nil)
			}
			if store.IsValidation(err) {
				return nil, types.NewMCPError("VALIDATION_FAILED", err.Error(), nil)
			}
			return nil, types.NewMCPError("MAINTAIN_FAILED", err.Error(), nil)
		}

		return &mcpsdk.CallToolResultFor[types.MaintainResponse]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: detail}},
			StructuredContent: types.MaintainResponse{Action: args.Action, Detail: detail},
		}, nil
	}
}

func (s *Server) actionStats(ctx context.Context) (string, error) {
	st, err := s.Service.Store.CollectStats(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Entries: %d active, %d inactive\n", st.ActiveEntries, st.InactiveEntries)
	for _, k := range sortedKeys(st.EntriesByType) {
		fmt.Fprintf(&b, "  %s: %d\n", k, st.EntriesByType[k])
	}
	fmt.Fprintf(&b, "Versions: %d\n", st.VersionCount)
	fmt.Fprintf(&b, "Embeddings: %d\n", st.EmbeddingCount)
	fmt.Fprintf(&b, "Ingested files: %d\n", st.IngestedFiles)
	b.WriteString("Graph nodes:\n")
	for _, k := range sortedKeys(st.NodesByType) {
		fmt.Fprintf(&b, "  %s: %d\n", k, st.NodesByType[k])
	}
	b.WriteString("Graph edges:\n")
	for _, k := range sortedKeys(st.EdgesByType) {
		fmt.Fprintf(&b, "  %s: %d\n", k, st.EdgesByType[k])
	}
	return b.String(), nil
}

func (s *Server) actionDeactivate(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", &store.ValidationError{Field: "entry_id", Reason: "required for deactivate"}
	}
	entry, err := s.Service.Deactivate(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deactivated %s: %s", entry.ID, entry.ShortTitle), nil
}

func (s *Server) actionReactivate(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", &store.ValidationError{Field: "entry_id", Reason: "required for reactivate"}
	}
	entry, err := s.Service.Reactivate(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Reactivated %s: %s (reindexed and relinked)", entry.ID, entry.ShortTitle), nil
}

func (s *Server) actionRebuildEmbeddings(ctx context.Context, force bool) (string, error) {
	var ids []string
	var err error
	if force {
		ids, err = s.Service.Store.ActiveEntryIDs(ctx)
	} else {
		ids, err = s.Service.Store.EntriesWithoutEmbeddings(ctx, 1000)
	}
	if err != nil {
		return "", err
	}

	embedded := 0
	for _, id := range ids {
		entry, err := s.Service.Store.GetEntry(ctx, id)
		if err != nil {
			continue
		}
		s.Service.EmbedEntry(ctx, entry)
		refreshed, err := s.Service.Store.GetEntry(ctx, id)
		if err == nil && refreshed.HasEmbedding {
			embedded++
		}
	}
	return fmt.Sprintf("Embedded %d of %d entries", embedded, len(ids)), nil
}

func (s *Server) actionRebuildGraph(ctx context.Context) (string, error) {
	ids, err := s.Service.Store.ActiveEntryIDs(ctx)
	if err != nil {
		return "", err
	}
	rebuilt := 0
	for _, id := range ids {
		entry, err := s.Service.Store.GetEntry(ctx, id)
		if err != nil {
			continue
		}
		if err := s.Service.Builder.BuildForEntry(ctx, entry); err != nil {
			continue
		}
		rebuilt++
	}
	return fmt.Sprintf("Rebuilt deterministic graph for %d of %d entries", rebuilt, len(ids)), nil
}

func (s *Server) actionPurgeInactive(ctx context.Context, daysInactive int, confirm bool) (string, error) {
	if !confirm {
		return "", &store.ValidationError{Field: "confirm", Reason: "purge_inactive is destructive; pass confirm=true"}
	}
	if daysInactive <= 0 {
		daysInactive = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysInactive)
	ids, err := s.Service.Store.PurgeInactive(ctx, cutoff)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "No inactive entries old enough to purge.", nil
	}
	return fmt.Sprintf("Purged %d entries: %s", len(ids), strings.Join(ids, ", ")), nil
}

func (s *Server) actionVacuum(ctx context.Context) (string, error) {
	if err := s.Service.Store.Vacuum(ctx); err != nil {
		return "", err
	}
	return "Vacuum complete.", nil
}

func (s *Server) actionEntryVersions(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", &store.ValidationError{Field: "entry_id", Reason: "required for entry_versions"}
	}
	versions, err := s.Service.Store.EntryVersions(ctx, id)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return fmt.Sprintf("entry %s: %s", id, store.ErrNotFound), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d version(s)\n", id, len(versions))
	for _, v := range versions {
		reason := v.ChangeReason
		if reason == "" {
			reason = "(no reason recorded)"
		}
		fmt.Fprintf(&b, "  v%d @ %s conf=%.2f: %s\n",
			v.VersionNumber, v.CreatedAt.Format("2006-01-02 15:04"), v.ConfidenceLevel, reason)
	}
	return b.String(), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
