package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noustack/nous/models"
)

func TestInsertEdgeUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureNode(ctx, "kb-00001", models.NodeEntry, nil))
	require.NoError(t, s.EnsureNode(ctx, "tag:go", models.NodeTag, nil))

	added, err := s.InsertEdge(ctx, "kb-00001", "tag:go", models.EdgeHasTag, nil)
	require.NoError(t, err)
	assert.True(t, added)

	// Duplicate (source, target, edge_type) is a no-op.
	added, err = s.InsertEdge(ctx, "kb-00001", "tag:go", models.EdgeHasTag, nil)
	require.NoError(t, err)
	assert.False(t, added)

	// A different edge type between the same nodes is a new row.
	added, err = s.InsertEdge(ctx, "kb-00001", "tag:go", models.EdgeRelatedTo, nil)
	require.NoError(t, err)
	assert.True(t, added)
}

func TestUpsertNodeRefreshesProperties(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNode(ctx, "kb-00001", models.NodeEntry, map[string]any{"short_title": "old"}))
	require.NoError(t, s.UpsertNode(ctx, "kb-00001", models.NodeEntry, map[string]any{"short_title": "new"}))

	node, err := s.GetNode(ctx, "kb-00001")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "new", node.Properties["short_title"])

	// EnsureNode must not clobber existing properties.
	require.NoError(t, s.EnsureNode(ctx, "kb-00001", models.NodeEntry, map[string]any{"short_title": "clobbered"}))
	node, err = s.GetNode(ctx, "kb-00001")
	require.NoError(t, err)
	assert.Equal(t, "new", node.Properties["short_title"])
}

func TestClearDeterministicEdgesPreservesLLMEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureNode(ctx, "kb-00001", models.NodeEntry, nil))
	require.NoError(t, s.EnsureNode(ctx, "tag:go", models.NodeTag, nil))
	require.NoError(t, s.EnsureNode(ctx, "concept:wal", models.NodeConcept, nil))

	_, err := s.InsertEdge(ctx, "kb-00001", "tag:go", models.EdgeHasTag, nil)
	require.NoError(t, err)
	_, err = s.InsertEdge(ctx, "kb-00001", "concept:wal", "uses", map[string]any{"source": models.EdgeSourceLLM})
	require.NoError(t, err)

	require.NoError(t, s.ClearDeterministicEdges(ctx, "kb-00001"))

	llmEdges, err := s.OutgoingLLMEdges(ctx, "kb-00001")
	require.NoError(t, err)
	require.Len(t, llmEdges, 1)
	assert.Equal(t, "concept:wal", llmEdges[0].Target)

	neighbors, err := s.Neighbors(ctx, "kb-00001", nil, "both", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 1, "deterministic edge must be gone")
	assert.Equal(t, "concept:wal", neighbors[0].NodeID)
}

func TestClearLLMEdgesPreservesDeterministicEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureNode(ctx, "kb-00001", models.NodeEntry, nil))
	require.NoError(t, s.EnsureNode(ctx, "tag:go", models.NodeTag, nil))
	require.NoError(t, s.EnsureNode(ctx, "concept:wal", models.NodeConcept, nil))

	_, err := s.InsertEdge(ctx, "kb-00001", "tag:go", models.EdgeHasTag, nil)
	require.NoError(t, err)
	_, err = s.InsertEdge(ctx, "kb-00001", "concept:wal", "uses", map[string]any{"source": models.EdgeSourceLLM})
	require.NoError(t, err)

	require.NoError(t, s.ClearLLMEdges(ctx, "kb-00001"))

	neighbors, err := s.Neighbors(ctx, "kb-00001", nil, "both", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "tag:go", neighbors[0].NodeID)
}

func TestNeighborsDirectionsAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.EnsureNode(ctx, id, models.NodeConcept, nil))
	}
	_, err := s.InsertEdge(ctx, "a", "b", "x", nil)
	require.NoError(t, err)
	_, err = s.InsertEdge(ctx, "c", "a", "y", nil)
	require.NoError(t, err)

	neighbors, err := s.Neighbors(ctx, "a", nil, "both", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "b", neighbors[0].NodeID)
	assert.Equal(t, "outgoing", neighbors[0].Direction)
	assert.Equal(t, "c", neighbors[1].NodeID)
	assert.Equal(t, "incoming", neighbors[1].Direction)

	capped, err := s.Neighbors(ctx, "a", nil, "both", 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestGraphVocabularyOrdersByDegree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureNode(ctx, "kb-00001", models.NodeEntry, nil))
	require.NoError(t, s.EnsureNode(ctx, "kb-00002", models.NodeEntry, nil))
	require.NoError(t, s.EnsureNode(ctx, "tag:popular", models.NodeTag, nil))
	require.NoError(t, s.EnsureNode(ctx, "tag:rare", models.NodeTag, nil))

	_, err := s.InsertEdge(ctx, "kb-00001", "tag:popular", models.EdgeHasTag, nil)
	require.NoError(t, err)
	_, err = s.InsertEdge(ctx, "kb-00002", "tag:popular", models.EdgeHasTag, nil)
	require.NoError(t, err)
	_, err = s.InsertEdge(ctx, "kb-00001", "tag:rare", models.EdgeHasTag, nil)
	require.NoError(t, err)

	vocab, err := s.GraphVocabulary(ctx, 10)
	require.NoError(t, err)
	require.Len(t, vocab, 2, "entry nodes are excluded from the vocabulary")
	assert.Equal(t, "tag:popular", vocab[0].NodeID)
	assert.Equal(t, 2, vocab[0].Degree)
	assert.Equal(t, "tag:rare", vocab[1].NodeID)
}

func TestVectorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := make([]float32, testDim)
	vec[0] = 1

	require.NoError(t, s.EnsureNode(ctx, "kb-00001", models.NodeEntry, nil))
	require.NoError(t, s.VectorStore(ctx, "kb-00001", vec))

	// Upsert is delete-then-insert: storing again keeps one row.
	require.NoError(t, s.VectorStore(ctx, "kb-00001", vec))
	n, err := s.VectorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other := make([]float32, testDim)
	other[1] = 1
	require.NoError(t, s.VectorStore(ctx, "kb-00002", other))

	matches, err := s.VectorSearch(ctx, vec, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "kb-00001", matches[0].EntryID)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
}

func TestVectorStoreRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t)
	err := s.VectorStore(context.Background(), "kb-00001", make([]float32, testDim+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}
