package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noustack/nous/models"
)

func sampleEntry() *models.KnowledgeEntry {
	now := time.Now().UTC()
	return &models.KnowledgeEntry{
		ID:              "kb-00082",
		ShortTitle:      "wal checkpoints",
		LongTitle:       "How WAL checkpoints behave",
		Details:         "Checkpoints fold the log back into the main file.",
		EntryType:       models.TypeLessonLearned,
		ProjectRef:      "nous",
		Tags:            []string{"sqlite", "wal"},
		ConfidenceLevel: 0.9,
		CreatedAt:       now,
		UpdatedAt:       now,
		IsActive:        true,
		Version:         1,
	}
}

func TestFormatEntryHeader(t *testing.T) {
	got := formatEntryHeader(sampleEntry(), 0.9)
	assert.Equal(t, "[kb-00082] lesson_learned | wal checkpoints (90%)", got)
}

func TestFormatEntryMeta(t *testing.T) {
	entry := sampleEntry()
	assert.Equal(t, "#sqlite #wal | nous", formatEntryMeta(entry, false))
	assert.Equal(t, "#sqlite #wal | nous  [STALE]", formatEntryMeta(entry, true))

	bare := &models.KnowledgeEntry{}
	assert.Equal(t, "", formatEntryMeta(bare, false))
	assert.Equal(t, "[STALE]", formatEntryMeta(bare, true))
}

func TestFormatEntryCompactOmitsBody(t *testing.T) {
	got := formatEntryCompact(sampleEntry(), 0.9, "")
	assert.Contains(t, got, "[kb-00082]")
	assert.Contains(t, got, "How WAL checkpoints behave")
	assert.NotContains(t, got, "Checkpoints fold")
}

func TestFormatEntryFullIncludesBodyAndContext(t *testing.T) {
	got := formatEntryFull(sampleEntry(), "linked from kb-00001 via references")
	assert.Contains(t, got, "Checkpoints fold the log back")
	assert.Contains(t, got, "linked from kb-00001")
}

func TestFormatResultList(t *testing.T) {
	assert.Equal(t, "No results found.", formatResultList(nil, "", "", nil))

	got := formatResultList([]string{"one", "two"}, "Header", "a note", []string{"See also: [kb-00002] Two (via tag:x)"})
	assert.True(t, strings.HasPrefix(got, "Header\n2 result(s)\nNote: a note"))
	assert.Contains(t, got, "one\n\ntwo")
	assert.Contains(t, got, "Related entries via graph:")
	assert.Contains(t, got, "See also: [kb-00002]")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 50))
	assert.Equal(t, 25, clampLimit(25, 10, 50))
	assert.Equal(t, 50, clampLimit(99, 10, 50))
}
