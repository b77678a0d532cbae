package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

func TestAutoNeighborCapPinned(t *testing.T) {
	assert.Equal(t, 10, AutoNeighborCap)
}

func TestBFSEntriesDepthAndVisited(t *testing.T) {
	s := newTestStore(t)
	q := &Queries{Store: s}
	ctx := context.Background()

	// kb-00001 -> tag:x -> kb-00002 -> tag:y -> kb-00003
	a := createEntry(t, s, store.EntryFields{ShortTitle: "a", LongTitle: "A", Details: "alpha", Tags: []string{"x"}})
	bEntry := createEntry(t, s, store.EntryFields{ShortTitle: "b", LongTitle: "B", Details: "beta", Tags: []string{"x", "y"}})
	cEntry := createEntry(t, s, store.EntryFields{ShortTitle: "c", LongTitle: "C", Details: "gamma", Tags: []string{"y"}})
	builder := &Builder{Store: s}
	for _, e := range []*models.KnowledgeEntry{a, bEntry, cEntry} {
		require.NoError(t, builder.BuildForEntry(ctx, e))
	}

	hits, err := q.BFSEntries(ctx, a.ID, 2, 20)
	require.NoError(t, err)
	// Depth 2 reaches kb-00002 through tag:x but not kb-00003.
	require.Len(t, hits, 1)
	assert.Equal(t, bEntry.ID, hits[0].EntryID)
	assert.Equal(t, 2, hits[0].Depth)
	assert.Equal(t, []string{a.ID, "tag:x", bEntry.ID}, hits[0].Path)

	// Depth 4 reaches the whole chain exactly once despite the cycle
	// back through tag:x.
	hits, err = q.BFSEntries(ctx, a.ID, 4, 20)
	require.NoError(t, err)
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.EntryID
	}
	assert.ElementsMatch(t, []string{bEntry.ID, cEntry.ID}, ids)
}

func TestFindPath(t *testing.T) {
	s := newTestStore(t)
	q := &Queries{Store: s}
	ctx := context.Background()

	a := createEntry(t, s, store.EntryFields{ShortTitle: "a", LongTitle: "A", Details: "alpha", Tags: []string{"shared"}})
	b := createEntry(t, s, store.EntryFields{ShortTitle: "b", LongTitle: "B", Details: "beta", Tags: []string{"shared"}})
	builder := &Builder{Store: s}
	require.NoError(t, builder.BuildForEntry(ctx, a))
	require.NoError(t, builder.BuildForEntry(ctx, b))

	path, err := q.FindPath(ctx, a.ID, b.ID, 4)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, a.ID, path[0].Source)
	assert.Equal(t, "tag:shared", path[0].Target)
	// The second hop is an incoming has_tag edge, so the triple keeps
	// its stored direction: b -[has_tag]-> tag:shared.
	assert.Equal(t, b.ID, path[1].Source)
	assert.Equal(t, "tag:shared", path[1].Target)

	// Identical endpoints yield an empty path, not nil.
	path, err = q.FindPath(ctx, a.ID, a.ID, 4)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Empty(t, path)

	// Unreachable within the bound yields nil.
	lonely := createEntry(t, s, store.EntryFields{ShortTitle: "lonely", LongTitle: "L", Details: "detached"})
	require.NoError(t, builder.BuildForEntry(ctx, lonely))
	path, err = q.FindPath(ctx, a.ID, lonely.ID, 4)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestSupersedesChainChronology(t *testing.T) {
	s := newTestStore(t)
	q := &Queries{Store: s}
	builder := &Builder{Store: s}
	ctx := context.Background()

	v1 := createEntry(t, s, store.EntryFields{ShortTitle: "v1", LongTitle: "V1", Details: "first", EntryType: models.TypeDecision})
	require.NoError(t, builder.BuildForEntry(ctx, v1))
	time.Sleep(5 * time.Millisecond)

	v2 := createEntry(t, s, store.EntryFields{
		ShortTitle: "v2", LongTitle: "V2", Details: "second", EntryType: models.TypeDecision,
		Hints: map[string]any{"supersedes": []string{v1.ID}},
	})
	require.NoError(t, builder.BuildForEntry(ctx, v2))
	time.Sleep(5 * time.Millisecond)

	v3 := createEntry(t, s, store.EntryFields{
		ShortTitle: "v3", LongTitle: "V3", Details: "third", EntryType: models.TypeDecision,
		Hints: map[string]any{"supersedes": []string{v2.ID}},
	})
	require.NoError(t, builder.BuildForEntry(ctx, v3))

	// Entering from the middle reconstructs the full chain.
	chain, err := q.SupersedesChain(ctx, v2.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, v1.ID, chain[0].EntryID)
	assert.Equal(t, "original", chain[0].Label)
	assert.Equal(t, v2.ID, chain[1].EntryID)
	assert.Contains(t, chain[1].Label, "supersedes "+v1.ID)
	assert.Equal(t, v3.ID, chain[2].EntryID)
	assert.Contains(t, chain[2].Label, "current")
}

func TestSupersedesChainSingleton(t *testing.T) {
	s := newTestStore(t)
	q := &Queries{Store: s}
	ctx := context.Background()

	only := createEntry(t, s, store.EntryFields{ShortTitle: "only", LongTitle: "Only", Details: "solo", EntryType: models.TypeDecision})
	require.NoError(t, (&Builder{Store: s}).BuildForEntry(ctx, only))

	chain, err := q.SupersedesChain(ctx, only.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "current", chain[0].Label)
}

func TestEntriesForScopeDispatch(t *testing.T) {
	s := newTestStore(t)
	q := &Queries{Store: s}
	builder := &Builder{Store: s}
	ctx := context.Background()

	first := createEntry(t, s, store.EntryFields{
		ShortTitle: "first", LongTitle: "First", Details: "one",
		ProjectRef: "nous", Tags: []string{"go"},
		EntryType: models.TypeDecision,
		Hints:     map[string]any{"person": "ada", "tool": "sqlite"},
	})
	require.NoError(t, builder.BuildForEntry(ctx, first))
	time.Sleep(5 * time.Millisecond)

	second := createEntry(t, s, store.EntryFields{
		ShortTitle: "second", LongTitle: "Second", Details: "two",
		ProjectRef: "nous", Tags: []string{"go"},
	})
	require.NoError(t, builder.BuildForEntry(ctx, second))

	// Project scope, chronological order.
	ids, err := q.EntriesForScope(ctx, "project:nous")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids)

	// Tag scope via graph edges.
	ids, err = q.EntriesForScope(ctx, "tag:go")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids)

	// Person and tool scopes.
	ids, err = q.EntriesForScope(ctx, "person:ada")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, ids)
	ids, err = q.EntriesForScope(ctx, "tool:sqlite")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, ids)

	// Entry-type scope.
	ids, err = q.EntriesForScope(ctx, "decision")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, ids)

	// Literal entry id.
	ids, err = q.EntriesForScope(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, ids)
}

func TestEntriesForScopeExcludesInactive(t *testing.T) {
	s := newTestStore(t)
	q := &Queries{Store: s}
	builder := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "gone", LongTitle: "Gone", Details: "x", Tags: []string{"ghost"},
	})
	require.NoError(t, builder.BuildForEntry(ctx, entry))
	_, err := s.DeactivateEntry(ctx, entry.ID)
	require.NoError(t, err)

	ids, err := q.EntriesForScope(ctx, "tag:ghost")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestVocabularyGroupsAndStripsPrefixes(t *testing.T) {
	s := newTestStore(t)
	q := &Queries{Store: s}
	builder := &Builder{Store: s}
	ctx := context.Background()

	entry := createEntry(t, s, store.EntryFields{
		ShortTitle: "vocab", LongTitle: "Vocab", Details: "x",
		ProjectRef: "nous", Tags: []string{"go", "sqlite"},
	})
	require.NoError(t, builder.BuildForEntry(ctx, entry))

	vocab, err := q.Vocabulary(ctx, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "sqlite"}, vocab["tag"])
	assert.Equal(t, []string{"nous"}, vocab["project"])
	_, hasEntries := vocab["entry"]
	assert.False(t, hasEntries)
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		scope    string
		kind     string
		value    string
	}{
		{"kb-00042", "entry", "kb-00042"},
		{"project:nous", "project", "nous"},
		{"tag:go", "tag", "go"},
		{"person:ada", "person", "ada"},
		{"tool:sqlite", "tool", "sqlite"},
		{"decision", "entry_type", "decision"},
		{"concept:wal", "node", "concept:wal"},
	}
	for _, tt := range tests {
		kind, value := parseScope(tt.scope)
		assert.Equal(t, tt.kind, kind, "scope %q", tt.scope)
		assert.Equal(t, tt.value, value, "scope %q", tt.scope)
	}
}
