package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

// fakeLLM returns canned responses in order.
type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeLLM) Generate(ctx context.Context, prompt, system string) string {
	if f.calls >= len(f.responses) {
		return ""
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp
}

func (f *fakeLLM) Close() error { return nil }

func TestParseRelationships(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{
			name: "plain array",
			raw:  `[{"entity":"sqlite","entity_type":"technology","relationship":"uses"}]`,
			want: 1,
		},
		{
			name: "fenced array",
			raw:  "```json\n[{\"entity\":\"sqlite\",\"entity_type\":\"technology\",\"relationship\":\"uses\"}]\n```",
			want: 1,
		},
		{
			name: "prose around the array",
			raw:  `Here are the entities: [{"entity":"wal","entity_type":"concept","relationship":"implements"}] Hope that helps!`,
			want: 1,
		},
		{
			name: "invalid entity type discarded",
			raw:  `[{"entity":"x","entity_type":"animal","relationship":"pets"},{"entity":"y","entity_type":"tool","relationship":"uses"}]`,
			want: 1,
		},
		{
			name: "missing fields discarded",
			raw:  `[{"entity":"x","entity_type":"tool"},{"entity_type":"tool","relationship":"uses"}]`,
			want: 0,
		},
		{
			name: "non-object items skipped",
			raw:  `["just a string", {"entity":"y","entity_type":"tool","relationship":"uses"}]`,
			want: 1,
		},
		{
			name: "no JSON at all",
			raw:  `I could not extract anything.`,
			want: 0,
		},
		{
			name: "malformed JSON",
			raw:  `[{"entity": "x",]`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ParseRelationships(tt.raw), tt.want)
		})
	}
}

func TestParseRelationshipsCapsAtMax(t *testing.T) {
	raw := "["
	for i := 0; i < 12; i++ {
		if i > 0 {
			raw += ","
		}
		raw += `{"entity":"e` + string(rune('a'+i)) + `","entity_type":"concept","relationship":"uses"}`
	}
	raw += "]"
	assert.Len(t, ParseRelationships(raw), MaxRelationships)
}

func TestEnrichEntryWritesLLMEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "enrichable",
		LongTitle:  "Entry worth enriching",
		Details:    "Uses sqlite and wal internally.",
	})
	require.NoError(t, (&Builder{Store: s}).BuildForEntry(ctx, entry))

	e := &Enricher{
		Store: s,
		LLM: &fakeLLM{responses: []string{
			`[{"entity":"sqlite","entity_type":"technology","relationship":"uses"},
			  {"entity":"write-ahead-logging","entity_type":"concept","relationship":"depends_on"}]`,
		}},
		MatchThreshold: 0.85,
	}
	added, err := e.EnrichEntry(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	edges, err := s.OutgoingLLMEdges(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, edge := range edges {
		assert.True(t, edge.IsLLM())
	}
}

// Scenario: the enricher proposes concept:asyncio while the graph
// already holds technology:asyncio. Similarity 1.0 >= 0.85, so the edge
// must point at the existing node and no new node may appear.
func TestEnrichEntryReusesSimilarNodeAcrossTypes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureNode(ctx, "technology:asyncio", models.NodeTechnology, nil))
	// Give the existing node a connection so it shows in the vocabulary.
	require.NoError(t, s.EnsureNode(ctx, "kb-00099", models.NodeEntry, nil))
	_, err := s.InsertEdge(ctx, "kb-00099", "technology:asyncio", "uses", nil)
	require.NoError(t, err)

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "dedup",
		LongTitle:  "Entity dedup",
		Details:    "About asyncio.",
	})

	e := &Enricher{
		Store: s,
		LLM: &fakeLLM{responses: []string{
			`[{"entity":"asyncio","entity_type":"concept","relationship":"discusses"}]`,
		}},
		MatchThreshold: 0.85,
	}
	added, err := e.EnrichEntry(ctx, entry)
	require.NoError(t, err)
	require.Equal(t, 1, added)

	edges, err := s.OutgoingLLMEdges(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "technology:asyncio", edges[0].Target)

	conceptNode, err := s.GetNode(ctx, "concept:asyncio")
	require.NoError(t, err)
	assert.Nil(t, conceptNode, "no duplicate node may be created")
}

// Re-enrichment replaces only the LLM layer.
func TestReEnrichmentPreservesDeterministicEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "re-enrich",
		LongTitle:  "Re-enrichment semantics",
		Details:    "Body.",
		Tags:       []string{"keep-me"},
	})
	require.NoError(t, (&Builder{Store: s}).BuildForEntry(ctx, entry))

	e := &Enricher{
		Store: s,
		LLM: &fakeLLM{responses: []string{
			`[{"entity":"first","entity_type":"concept","relationship":"uses"}]`,
			`[{"entity":"second","entity_type":"concept","relationship":"uses"}]`,
		}},
		MatchThreshold: 0.85,
	}
	_, err := e.EnrichEntry(ctx, entry)
	require.NoError(t, err)
	_, err = e.EnrichEntry(ctx, entry)
	require.NoError(t, err)

	llmEdges, err := s.OutgoingLLMEdges(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, llmEdges, 1, "previous LLM layer must be replaced")
	assert.Equal(t, "concept:second", llmEdges[0].Target)

	edges := neighborIDs(t, s, entry.ID)
	assert.Equal(t, models.EdgeHasTag, edges["tag:keep-me"], "deterministic edges survive re-enrichment")
}

func TestEnrichBatchFallsBackPerEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createEntry(t, s, store.EntryFields{ShortTitle: "a", LongTitle: "A", Details: "Alpha."})
	b := createEntry(t, s, store.EntryFields{ShortTitle: "b", LongTitle: "B", Details: "Beta."})

	// First response is unparseable as a batch object; the two fallback
	// per-entry calls return arrays.
	e := &Enricher{
		Store: s,
		LLM: &fakeLLM{responses: []string{
			`no json here`,
			`[{"entity":"alpha","entity_type":"concept","relationship":"covers"}]`,
			`[{"entity":"beta","entity_type":"concept","relationship":"covers"}]`,
		}},
		MatchThreshold: 0.85,
	}
	total, err := e.EnrichBatch(ctx, []*models.KnowledgeEntry{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestEnrichBatchParsesKeyedObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createEntry(t, s, store.EntryFields{ShortTitle: "a", LongTitle: "A", Details: "Alpha."})
	b := createEntry(t, s, store.EntryFields{ShortTitle: "b", LongTitle: "B", Details: "Beta."})

	e := &Enricher{
		Store: s,
		LLM: &fakeLLM{responses: []string{
			`{"` + a.ID + `": [{"entity":"alpha","entity_type":"concept","relationship":"covers"}],
			  "` + b.ID + `": [{"entity":"beta","entity_type":"concept","relationship":"covers"}],
			  "kb-99999": [{"entity":"ghost","entity_type":"concept","relationship":"haunts"}]}`,
		}},
		MatchThreshold: 0.85,
	}
	total, err := e.EnrichBatch(ctx, []*models.KnowledgeEntry{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, total, "unknown entry ids in the batch response are ignored")

	ghost, err := s.GetNode(ctx, "concept:ghost")
	require.NoError(t, err)
	assert.Nil(t, ghost)
}
