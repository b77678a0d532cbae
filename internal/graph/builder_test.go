package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "knowledge.db"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createEntry(t *testing.T, s *store.Store, fields store.EntryFields) *models.KnowledgeEntry {
	t.Helper()
	if fields.ConfidenceLevel == 0 {
		fields.ConfidenceLevel = 0.9
	}
	if fields.EntryType == "" {
		fields.EntryType = models.TypeFactualReference
	}
	entry, err := s.CreateEntry(context.Background(), fields)
	require.NoError(t, err)
	return entry
}

func neighborIDs(t *testing.T, s *store.Store, node string) map[string]string {
	t.Helper()
	neighbors, err := s.Neighbors(context.Background(), node, nil, "outgoing", 100)
	require.NoError(t, err)
	out := make(map[string]string, len(neighbors))
	for _, n := range neighbors {
		out[n.NodeID] = n.EdgeType
	}
	return out
}

func TestBuildForEntryDerivesDeterministicEdges(t *testing.T) {
	s := newTestStore(t)
	b := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "edge derivation",
		LongTitle:  "Deterministic edge derivation",
		Details:    "Builds on kb-00042.",
		ProjectRef: "nous",
		Tags:       []string{"graph", "sqlite"},
		Hints: map[string]any{
			"person": "Ada",
			"tool":   "wazero",
		},
	})
	require.NoError(t, b.BuildForEntry(ctx, entry))

	node, err := s.GetNode(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, models.NodeEntry, node.NodeType)
	assert.Equal(t, entry.ShortTitle, node.Properties["short_title"])
	assert.Equal(t, string(entry.EntryType), node.Properties["entry_type"])

	edges := neighborIDs(t, s, entry.ID)
	assert.Equal(t, models.EdgeHasTag, edges["tag:graph"])
	assert.Equal(t, models.EdgeHasTag, edges["tag:sqlite"])
	assert.Equal(t, models.EdgeInProject, edges["project:nous"])
	assert.Equal(t, models.EdgeMentionsPerson, edges["person:ada"])
	assert.Equal(t, models.EdgeUsesTool, edges["tool:wazero"])
	assert.Equal(t, models.EdgeReferences, edges["kb-00042"])
}

// Body "See kb-00042 and also kb-00042, and kb-00007." creates exactly
// two references edges: duplicates and self-references are dropped.
func TestBuildForEntryDeduplicatesReferences(t *testing.T) {
	s := newTestStore(t)
	b := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "references",
		LongTitle:  "Reference dedup",
		Details:    "See kb-00042 and also kb-00042, and kb-00007.",
	})
	require.NoError(t, b.BuildForEntry(ctx, entry))

	edges := neighborIDs(t, s, entry.ID)
	refCount := 0
	for _, edgeType := range edges {
		if edgeType == models.EdgeReferences {
			refCount++
		}
	}
	assert.Equal(t, 2, refCount)
	assert.Equal(t, models.EdgeReferences, edges["kb-00042"])
	assert.Equal(t, models.EdgeReferences, edges["kb-00007"])
}

func TestBuildForEntrySkipsSelfReference(t *testing.T) {
	s := newTestStore(t)
	b := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "self",
		LongTitle:  "Self reference",
		Details:    "This entry is kb-00001 and cites kb-00001 only.",
	})
	require.Equal(t, "kb-00001", entry.ID)
	require.NoError(t, b.BuildForEntry(ctx, entry))

	edges := neighborIDs(t, s, entry.ID)
	for target, edgeType := range edges {
		assert.NotEqual(t, models.EdgeReferences, edgeType, "unexpected reference to %s", target)
	}
}

func TestBuildForEntrySupersedesHints(t *testing.T) {
	s := newTestStore(t)
	b := &Builder{Store: s}
	ctx := context.Background()

	old := createEntry(t, s, store.EntryFields{
		ShortTitle: "old decision",
		LongTitle:  "Old decision",
		Details:    "Superseded later.",
		EntryType:  models.TypeDecision,
	})
	replacement := createEntry(t, s, store.EntryFields{
		ShortTitle: "new decision",
		LongTitle:  "New decision",
		Details:    "Replaces the old one.",
		EntryType:  models.TypeDecision,
		Hints:      map[string]any{"supersedes": []string{old.ID}},
	})
	require.NoError(t, b.BuildForEntry(ctx, replacement))

	edges := neighborIDs(t, s, replacement.ID)
	assert.Equal(t, models.EdgeSupersedes, edges[old.ID])
}

func TestBuildForEntryRelatedEntities(t *testing.T) {
	s := newTestStore(t)
	b := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "related",
		LongTitle:  "Related entities",
		Details:    "Has related entries.",
		Hints: map[string]any{
			"related_entities": []any{
				"kb-00050",
				map[string]any{"id": "kb-00051", "edge_type": "depends_on"},
			},
		},
	})
	require.NoError(t, b.BuildForEntry(ctx, entry))

	edges := neighborIDs(t, s, entry.ID)
	assert.Equal(t, models.EdgeRelatedTo, edges["kb-00050"])
	assert.Equal(t, "depends_on", edges["kb-00051"])
}

// Rebuilding must drop stale deterministic edges but keep the LLM layer.
func TestBuildForEntryRebuildPreservesLLMEdges(t *testing.T) {
	s := newTestStore(t)
	b := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "rebuild",
		LongTitle:  "Rebuild semantics",
		Details:    "Body.",
		Tags:       []string{"old-tag"},
	})
	require.NoError(t, b.BuildForEntry(ctx, entry))

	require.NoError(t, s.EnsureNode(ctx, "concept:fusion", models.NodeConcept, nil))
	_, err := s.InsertEdge(ctx, entry.ID, "concept:fusion", "implements", map[string]any{"source": models.EdgeSourceLLM})
	require.NoError(t, err)

	entry.Tags = []string{"new-tag"}
	require.NoError(t, b.BuildForEntry(ctx, entry))

	edges := neighborIDs(t, s, entry.ID)
	_, hasOld := edges["tag:old-tag"]
	assert.False(t, hasOld, "stale deterministic edge must be deleted")
	assert.Equal(t, models.EdgeHasTag, edges["tag:new-tag"])
	assert.Equal(t, "implements", edges["concept:fusion"], "LLM edge must survive the rebuild")
}

func TestBuildForEntryIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	b := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "idempotent",
		LongTitle:  "Idempotent rebuild",
		Details:    "Cites kb-00042.",
		Tags:       []string{"a"},
	})
	require.NoError(t, b.BuildForEntry(ctx, entry))
	first := neighborIDs(t, s, entry.ID)
	require.NoError(t, b.BuildForEntry(ctx, entry))
	second := neighborIDs(t, s, entry.ID)
	assert.Equal(t, first, second)
}
