package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noustack/nous/internal/graph"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

func TestAskRejectsUnknownStrategy(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Ask(context.Background(), "anything", "divination", "", "", 10)
	require.Error(t, err)
	assert.True(t, store.IsValidation(err))
}

// Auto expands search hits with previously-unseen entry neighbours.
func TestAskAutoExpandsNeighbors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	hit, err := svc.CreateEntry(ctx, store.EntryFields{
		ShortTitle:      "zeppelin history",
		LongTitle:       "History of zeppelins",
		Details:         "zeppelin flights",
		EntryType:       models.TypeFactualReference,
		ConfidenceLevel: 0.9,
		Tags:            []string{"airships"},
	})
	require.NoError(t, err)
	neighbor, err := svc.CreateEntry(ctx, store.EntryFields{
		ShortTitle:      "hydrogen lift",
		LongTitle:       "Hydrogen lift calculations",
		Details:         "lift gas notes",
		EntryType:       models.TypeFactualReference,
		ConfidenceLevel: 0.9,
		Tags:            []string{"airships"},
	})
	require.NoError(t, err)
	// Direct edge so the neighbour is one hop, not two.
	_, err = svc.Store.InsertEdge(ctx, hit.ID, neighbor.ID, models.EdgeRelatedTo, nil)
	require.NoError(t, err)

	result, err := svc.Ask(ctx, "zeppelin", graph.StrategyAuto, "", "", 10)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, hit.ID, result.Items[0].Entry.ID)
	assert.Contains(t, result.Items[0].Context, "search match")
	assert.Equal(t, neighbor.ID, result.Items[1].Entry.ID)
	assert.Contains(t, result.Items[1].Context, "linked from "+hit.ID)
}

func TestAskTimelineRequiresScope(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Ask(context.Background(), "history", graph.StrategyTimeline, "", "", 10)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Contains(t, result.Message, "requires a scope")
}

func TestAskTimelineChronological(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateEntry(ctx, fields("first event", "journal"))
	require.NoError(t, err)
	second, err := svc.CreateEntry(ctx, fields("second event", "journal"))
	require.NoError(t, err)

	result, err := svc.Ask(ctx, "what happened", graph.StrategyTimeline, "tag:journal", "", 10)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, first.ID, result.Items[0].Entry.ID)
	assert.Equal(t, second.ID, result.Items[1].Entry.ID)
	assert.Contains(t, result.Items[0].Context, "created ")
}

func TestAskConnectionRequiresBothEndpoints(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Ask(context.Background(), "how are they linked", graph.StrategyConnection, "tag:a", "", 10)
	require.NoError(t, err)
	assert.Contains(t, result.Message, "both scope and target")
}

func TestAskConnectionFindsPath(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateEntry(ctx, fields("endpoint a", "bridge"))
	require.NoError(t, err)
	b, err := svc.CreateEntry(ctx, fields("endpoint b", "bridge"))
	require.NoError(t, err)

	result, err := svc.Ask(ctx, "connection", graph.StrategyConnection, a.ID, b.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, result.Path)
	assert.Empty(t, result.Message)

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		ids = append(ids, item.Entry.ID)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}

func TestAskRelatedWalksGraph(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed, err := svc.CreateEntry(ctx, fields("seed entry", "cluster"))
	require.NoError(t, err)
	other, err := svc.CreateEntry(ctx, fields("clustered entry", "cluster"))
	require.NoError(t, err)

	result, err := svc.Ask(ctx, "related", graph.StrategyRelated, seed.ID, "", 10)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, other.ID, result.Items[0].Entry.ID)
	assert.Contains(t, result.Items[0].Context, "tag:cluster")
}

func TestAskDecisionTraceWalksChains(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	old, err := svc.CreateEntry(ctx, store.EntryFields{
		ShortTitle:      "use flat files",
		LongTitle:       "Decision to use flat files for storage",
		Details:         "storage decision",
		EntryType:       models.TypeDecision,
		ConfidenceLevel: 0.9,
	})
	require.NoError(t, err)
	current, err := svc.CreateEntry(ctx, store.EntryFields{
		ShortTitle:      "switch to sqlite storage",
		LongTitle:       "Decision to switch storage to sqlite",
		Details:         "storage decision revisited",
		EntryType:       models.TypeDecision,
		ConfidenceLevel: 0.9,
		Hints:           map[string]any{"supersedes": []string{old.ID}},
	})
	require.NoError(t, err)

	result, err := svc.Ask(ctx, "storage", graph.StrategyDecisionTrace, "", "", 10)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, old.ID, result.Items[0].Entry.ID)
	assert.Equal(t, "original", result.Items[0].Context)
	assert.Equal(t, current.ID, result.Items[1].Entry.ID)
	assert.Contains(t, result.Items[1].Context, "current")
}

// The planner reroutes an auto ask when it returns a specific strategy.
func TestAskUsesPlannerReroute(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateEntry(ctx, fields("planned entry", "plans"))
	require.NoError(t, err)

	svc.Planner = &graph.Planner{
		Store:   svc.Store,
		Queries: svc.Queries,
		LLM: &scriptedLLM{response: `{"strategy":"timeline","scope":"tag:plans","reasoning":"history"}`},
	}

	result, err := svc.Ask(ctx, "what happened with plans?", graph.StrategyAuto, "", "", 10)
	require.NoError(t, err)
	assert.Equal(t, graph.StrategyTimeline, result.Strategy)
	require.NotNil(t, result.Plan)
	assert.Equal(t, "history", result.Plan.Reasoning)
	require.Len(t, result.Items, 1)
	assert.Equal(t, first.ID, result.Items[0].Entry.ID)
}

type scriptedLLM struct {
	response string
}

func (s *scriptedLLM) IsAvailable(ctx context.Context) bool { return true }

func (s *scriptedLLM) Generate(ctx context.Context, prompt, system string) string {
	return s.response
}

func (s *scriptedLLM) Close() error { return nil }
