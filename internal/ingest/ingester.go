package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/noustack/nous/internal/knowledge"
	"github.com/noustack/nous/internal/llm"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

// FileAction classifies the outcome of one file.
const (
	ActionIngested  = "ingested"
	ActionSkipped   = "skipped"
	ActionFlagged   = "flagged"
	ActionError     = "error"
	ActionUnchanged = "unchanged"
	ActionDryRun    = "dry_run"
)

// FileResult is the result of ingesting a single file.
type FileResult struct {
	Path       string   `json:"path"`
	Action     string   `json:"action"`
	Reason     string   `json:"reason,omitempty"`
	EntryCount int      `json:"entry_count,omitempty"`
	EntryIDs   []string `json:"entry_ids,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// Result aggregates a directory ingestion.
type Result struct {
	TotalFiles     int          `json:"total_files"`
	Ingested       int          `json:"ingested"`
	Skipped        int          `json:"skipped"`
	Flagged        int          `json:"flagged"`
	Errors         int          `json:"errors"`
	Unchanged      int          `json:"unchanged"`
	EntriesCreated int          `json:"entries_created"`
	Files          []FileResult `json:"files"`
}

// Ingester orchestrates file ingestion: safety checks, LLM
// summarisation and extraction, storage through the full entry
// pipeline, and the note node bookkeeping.
type Ingester struct {
	Service     *knowledge.Service
	LLM         llm.Provider
	MaxFileSize int64
}

// IngestFile runs one file through the pipeline. Content-hash matching
// makes re-ingestion idempotent; on change, entries extracted by the
// previous run are deactivated before the new ones are stored.
func (ing *Ingester) IngestFile(ctx context.Context, path, projectRef, baseDir string, dryRun bool) FileResult {
	relPath := filepath.Base(path)
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, path); err == nil {
			relPath = rel
		}
	}

	// Deny-list is the security boundary - it runs before anything else.
	if pattern := CheckDenyList(path); pattern != "" {
		return FileResult{Path: relPath, Action: ActionSkipped, Reason: "matches deny-list pattern: " + pattern}
	}
	if !IsAllowedFile(path) {
		return FileResult{Path: relPath, Action: ActionSkipped, Reason: "unsupported file type: " + filepath.Ext(path)}
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileResult{Path: relPath, Action: ActionError, Reason: err.Error()}
	}
	if info.Size() > ing.MaxFileSize {
		return FileResult{
			Path:   relPath,
			Action: ActionSkipped,
			Reason: fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), ing.MaxFileSize),
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: relPath, Action: ActionError, Reason: err.Error()}
	}
	content := string(raw)

	hash := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(hash[:])
	existing, err := ing.Service.Store.GetIngestedFile(ctx, relPath)
	if err != nil {
		return FileResult{Path: relPath, Action: ActionError, Reason: err.Error()}
	}
	if existing != nil && existing.ContentHash == contentHash && existing.IsActive {
		return FileResult{Path: relPath, Action: ActionUnchanged}
	}

	safety := RunSafetyPipeline(path, content)
	switch safety.Action {
	case "skip":
		return FileResult{Path: relPath, Action: ActionSkipped, Reason: safety.Reason}
	case "flag":
		return FileResult{Path: relPath, Action: ActionFlagged, Reason: safety.Reason}
	}
	content = safety.Content

	if dryRun {
		summary := SummarizeFile(ctx, ing.LLM, relPath, content)
		entries := ExtractEntries(ctx, ing.LLM, relPath, content)
		return FileResult{Path: relPath, Action: ActionDryRun, EntryCount: len(entries), Summary: summary}
	}

	// Re-ingestion: retire the entries the previous run produced.
	if existing != nil {
		ing.deactivateOldEntries(ctx, existing)
	}

	summary := SummarizeFile(ctx, ing.LLM, relPath, content)
	if summary == "" {
		return FileResult{Path: relPath, Action: ActionError, Reason: "LLM unavailable for summarization"}
	}

	extracted := ExtractEntries(ctx, ing.LLM, relPath, content)

	var entryIDs []string
	for _, ext := range extracted {
		entry, err := ing.Service.CreateEntry(ctx, store.EntryFields{
			ShortTitle:      ext.ShortTitle,
			LongTitle:       ext.LongTitle,
			Details:         ext.Details,
			EntryType:       models.EntryType(ext.EntryType),
			ProjectRef:      projectRef,
			SourceContext:   "ingested from " + relPath,
			ConfidenceLevel: 0.9,
			Tags:            ext.Tags,
		})
		if err != nil {
			slog.Warn("extracted entry rejected", "file", relPath, "error", err)
			continue
		}
		entryIDs = append(entryIDs, entry.ID)
	}

	noteNodeID := "note:" + relPath
	if err := ing.createNoteNode(ctx, noteNodeID, relPath, summary, entryIDs); err != nil {
		slog.Warn("note node creation failed", "file", relPath, "error", err)
	}

	record := &models.IngestedFile{
		Path:        relPath,
		ContentHash: contentHash,
		NoteNodeID:  noteNodeID,
		EntryIDs:    entryIDs,
		Summary:     summary,
		FileSize:    info.Size(),
		Extension:   filepath.Ext(path),
		ProjectRef:  projectRef,
		Redactions:  safety.Redactions,
		IsActive:    true,
	}
	if existing != nil {
		record.IngestedAt = existing.IngestedAt
	}
	if err := ing.Service.Store.UpsertIngestedFile(ctx, record); err != nil {
		return FileResult{Path: relPath, Action: ActionError, Reason: err.Error()}
	}

	return FileResult{
		Path:       relPath,
		Action:     ActionIngested,
		EntryCount: len(entryIDs),
		EntryIDs:   entryIDs,
		Summary:    summary,
	}
}

// IngestDirectory walks a directory and ingests each eligible file,
// yielding between files so a large tree does not monopolise the worker.
func (ing *Ingester) IngestDirectory(ctx context.Context, dir, projectRef string, recursive, dryRun bool) (*Result, error) {
	result := &Result{}

	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fr := ing.IngestFile(ctx, path, projectRef, dir, dryRun)
		result.TotalFiles++
		result.Files = append(result.Files, fr)
		switch fr.Action {
		case ActionIngested, ActionDryRun:
			result.Ingested++
			result.EntriesCreated += fr.EntryCount
		case ActionSkipped:
			result.Skipped++
		case ActionFlagged:
			result.Flagged++
		case ActionUnchanged:
			result.Unchanged++
		case ActionError:
			result.Errors++
		}
		return nil
	}

	if err := filepath.WalkDir(dir, walk); err != nil {
		return result, err
	}
	return result, nil
}

func (ing *Ingester) deactivateOldEntries(ctx context.Context, record *models.IngestedFile) {
	for _, id := range record.EntryIDs {
		if _, err := ing.Service.Deactivate(ctx, id); err != nil {
			slog.Warn("stale entry deactivation failed", "entry", id, "error", err)
		}
	}
}

func (ing *Ingester) createNoteNode(ctx context.Context, nodeID, relPath, summary string, entryIDs []string) error {
	props := map[string]any{"path": relPath, "summary": summary}
	if err := ing.Service.Store.UpsertNode(ctx, nodeID, models.NodeNote, props); err != nil {
		return err
	}
	for _, id := range entryIDs {
		if _, err := ing.Service.Store.InsertEdge(ctx, id, nodeID, models.EdgeExtractedFrom, nil); err != nil {
			return err
		}
	}
	return nil
}
