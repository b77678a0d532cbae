package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/noustack/nous/internal/confidence"
	"github.com/noustack/nous/models"
	"github.com/noustack/nous/types"
)

// formatEntryHeader renders: [kb-00082] lesson_learned | Title (90%).
func formatEntryHeader(entry *models.KnowledgeEntry, effective float64) string {
	return fmt.Sprintf("[%s] %s | %s (%.0f%%)", entry.ID, entry.EntryType, entry.ShortTitle, effective*100)
}

// formatEntryMeta renders: #tag1 #tag2 | project  [STALE].
func formatEntryMeta(entry *models.KnowledgeEntry, stale bool) string {
	var parts []string
	if len(entry.Tags) > 0 {
		tagged := make([]string, len(entry.Tags))
		for i, t := range entry.Tags {
			tagged[i] = "#" + t
		}
		parts = append(parts, strings.Join(tagged, " "))
	}
	if entry.ProjectRef != "" {
		parts = append(parts, entry.ProjectRef)
	}
	line := strings.Join(parts, " | ")
	if stale {
		if line == "" {
			return "[STALE]"
		}
		return line + "  [STALE]"
	}
	return line
}

// formatEntryCompact renders header + long title + meta, no body.
func formatEntryCompact(entry *models.KnowledgeEntry, effective float64, staleWarning string) string {
	lines := []string{formatEntryHeader(entry, effective)}
	if entry.LongTitle != "" && entry.LongTitle != entry.ShortTitle {
		lines = append(lines, "  "+entry.LongTitle)
	}
	if meta := formatEntryMeta(entry, staleWarning != ""); meta != "" {
		lines = append(lines, "  "+meta)
	}
	return strings.Join(lines, "\n")
}

// formatEntryFull renders header + meta + optional context + body.
func formatEntryFull(entry *models.KnowledgeEntry, context string) string {
	now := time.Now().UTC()
	eff := confidence.EffectiveForEntry(entry, now)
	warning := confidence.StalenessWarning(eff, entry.EntryType)

	lines := []string{formatEntryHeader(entry, eff)}
	if meta := formatEntryMeta(entry, warning != ""); meta != "" {
		lines = append(lines, "  "+meta)
	}
	if context != "" {
		lines = append(lines, "  ↳ "+context)
	}
	lines = append(lines, "  "+entry.Details)
	return strings.Join(lines, "\n")
}

// formatResultList renders count + note + blank-line-joined entries +
// optional graph hints.
func formatResultList(formatted []string, header, note string, hints []string) string {
	if len(formatted) == 0 {
		return "No results found."
	}
	var lines []string
	if header != "" {
		lines = append(lines, header)
	}
	lines = append(lines, fmt.Sprintf("%d result(s)", len(formatted)))
	if note != "" {
		lines = append(lines, "Note: "+note)
	}
	lines = append(lines, "", strings.Join(formatted, "\n\n"))
	if len(hints) > 0 {
		lines = append(lines, "", "Related entries via graph:")
		for _, h := range hints {
			lines = append(lines, "  "+h)
		}
	}
	return strings.Join(lines, "\n")
}

// entrySummary converts an entry to its structured output form.
func entrySummary(entry *models.KnowledgeEntry, effective float64, staleWarning, matchSource string) types.EntrySummary {
	return types.EntrySummary{
		ID:                  entry.ID,
		ShortTitle:          entry.ShortTitle,
		LongTitle:           entry.LongTitle,
		EntryType:           string(entry.EntryType),
		ProjectRef:          entry.ProjectRef,
		Tags:                entry.Tags,
		Version:             entry.Version,
		EffectiveConfidence: effective,
		StalenessWarning:    staleWarning,
		MatchSource:         matchSource,
	}
}
