package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noustack/nous/internal/graph"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

// AskItem is one entry in an ask result with traversal context.
type AskItem struct {
	Entry   *models.KnowledgeEntry
	Context string
}

// AskResult is the strategy-dependent outcome of kb_ask.
type AskResult struct {
	Strategy string
	Header   string
	Items    []AskItem
	Path     []models.PathStep
	Plan     *graph.QueryPlan
	Message  string // set when the strategy produced no entries
}

// Ask dispatches a question to a traversal strategy. When the caller
// requested auto and a query LLM is configured, the planner may reroute
// to a more specific strategy; plan validation failures fall back to
// auto with the raw question.
func (s *Service) Ask(ctx context.Context, question, strategy, scope, target string, limit int) (*AskResult, error) {
	if !graph.ValidStrategies[strategy] {
		return nil, &store.ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}

	var plan *graph.QueryPlan
	if strategy == graph.StrategyAuto && s.Planner != nil {
		plan = s.Planner.Plan(ctx, question)
	}

	if plan != nil && plan.Strategy != graph.StrategyAuto {
		strategy = plan.Strategy
		if plan.Scope != "" {
			scope = plan.Scope
		}
		if plan.Target != "" {
			target = plan.Target
		}
		if plan.SearchQuery != "" {
			question = plan.SearchQuery
		}
	} else if plan != nil && plan.SearchQuery != "" {
		question = plan.SearchQuery
	}

	var (
		result *AskResult
		err    error
	)
	switch strategy {
	case graph.StrategyDecisionTrace:
		result, err = s.askDecisionTrace(ctx, question, scope, limit)
	case graph.StrategyTimeline:
		result, err = s.askTimeline(ctx, scope, limit)
	case graph.StrategyRelated:
		result, err = s.askRelated(ctx, scope, target, limit)
	case graph.StrategyConnection:
		result, err = s.askConnection(ctx, scope, target)
	default:
		result, err = s.askAuto(ctx, question, limit)
	}
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	return result, nil
}

// askAuto combines hybrid search with one-hop neighbour expansion:
// previously-unseen entry nodes adjacent to each hit are appended until
// the limit is reached, capped at AutoNeighborCap neighbours per hit.
func (s *Service) askAuto(ctx context.Context, question string, limit int) (*AskResult, error) {
	results, err := s.Ranker.Search(ctx, models.SearchQuery{Query: question, Limit: limit})
	if err != nil {
		return nil, err
	}

	result := &AskResult{
		Strategy: graph.StrategyAuto,
		Header:   "Auto search: " + question,
	}
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.Entry.ID] = true
		result.Items = append(result.Items, AskItem{
			Entry:   r.Entry,
			Context: fmt.Sprintf("search match (score: %.4f)", r.Score),
		})
	}

expand:
	for _, r := range results {
		neighbors, err := s.Store.Neighbors(ctx, r.Entry.ID, nil, "both", graph.AutoNeighborCap)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if seen[n.NodeID] || !models.EntryIDPattern.MatchString(n.NodeID) {
				continue
			}
			entry, err := s.Store.GetEntry(ctx, n.NodeID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if !entry.IsActive {
				continue
			}
			seen[n.NodeID] = true
			context := fmt.Sprintf("linked from %s via %s", r.Entry.ID, n.EdgeType)
			if n.Direction == "incoming" {
				context = fmt.Sprintf("links to %s via %s", r.Entry.ID, n.EdgeType)
			}
			result.Items = append(result.Items, AskItem{Entry: entry, Context: context})
			if len(result.Items) >= limit {
				break expand
			}
		}
	}

	if len(result.Items) == 0 {
		result.Message = "No results found."
	}
	return result, nil
}

// askDecisionTrace finds decision entries matching the question and
// walks each one's supersedes chain.
func (s *Service) askDecisionTrace(ctx context.Context, question, scope string, limit int) (*AskResult, error) {
	matches, err := s.Store.FTSSearch(ctx, question, store.FTSFilters{EntryType: string(models.TypeDecision)}, limit)
	if err != nil {
		return nil, err
	}

	seedIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		seedIDs = append(seedIDs, m.EntryID)
	}
	if len(seedIDs) == 0 && scope != "" {
		ids, err := s.Queries.EntriesForScope(ctx, scope)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			entry, err := s.Store.GetEntry(ctx, id)
			if err != nil || entry.EntryType != models.TypeDecision {
				continue
			}
			seedIDs = append(seedIDs, id)
			if len(seedIDs) >= limit {
				break
			}
		}
	}

	result := &AskResult{
		Strategy: graph.StrategyDecisionTrace,
		Header:   "Decision trace: " + question,
	}
	if len(seedIDs) == 0 {
		result.Message = "No decision entries found matching the query."
		return result, nil
	}

	inChain := map[string]bool{}
trace:
	for _, id := range seedIDs {
		if inChain[id] {
			continue
		}
		chain, err := s.Queries.SupersedesChain(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, item := range chain {
			inChain[item.EntryID] = true
		}
		for _, item := range chain {
			entry, err := s.Store.GetEntry(ctx, item.EntryID)
			if err != nil {
				continue
			}
			result.Items = append(result.Items, AskItem{Entry: entry, Context: item.Label})
			if len(result.Items) >= limit {
				break trace
			}
		}
	}

	if len(result.Items) == 0 {
		result.Message = "No decision entries found matching the query."
	}
	return result, nil
}

// askTimeline lists a scope's entries chronologically.
func (s *Service) askTimeline(ctx context.Context, scope string, limit int) (*AskResult, error) {
	result := &AskResult{Strategy: graph.StrategyTimeline, Header: "Timeline: " + scope}
	if scope == "" {
		result.Message = "Timeline strategy requires a scope (e.g. project:X, tag:Y, decision)."
		return result, nil
	}

	ids, err := s.Queries.EntriesForScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	for _, id := range ids {
		entry, err := s.Store.GetEntry(ctx, id)
		if err != nil || !entry.IsActive {
			continue
		}
		result.Items = append(result.Items, AskItem{
			Entry:   entry,
			Context: "created " + entry.CreatedAt.Format("2006-01-02"),
		})
	}

	if len(result.Items) == 0 {
		result.Message = "No active entries found for scope: " + scope
	}
	return result, nil
}

// askRelated walks breadth-first (depth 2) from the starting node.
func (s *Service) askRelated(ctx context.Context, scope, target string, limit int) (*AskResult, error) {
	start := target
	if start == "" {
		start = scope
	}
	result := &AskResult{Strategy: graph.StrategyRelated, Header: "Related to: " + start}
	if start == "" {
		result.Message = "Related strategy requires a starting entry ID or node ID like tag:python."
		return result, nil
	}

	hits, err := s.Queries.BFSEntries(ctx, start, graph.RelatedMaxDepth, limit)
	if err != nil {
		return nil, err
	}
	for _, hit := range hits {
		entry, err := s.Store.GetEntry(ctx, hit.EntryID)
		if err != nil || !entry.IsActive {
			continue
		}
		context := "directly connected"
		if hit.Depth > 1 {
			var intermediates []string
			for _, node := range hit.Path[1 : len(hit.Path)-1] {
				if !models.EntryIDPattern.MatchString(node) {
					intermediates = append(intermediates, node)
				}
			}
			if len(intermediates) > 0 {
				context = "connected via " + strings.Join(intermediates, ", ")
			} else {
				context = fmt.Sprintf("connected (depth %d)", hit.Depth)
			}
		}
		result.Items = append(result.Items, AskItem{Entry: entry, Context: context})
	}

	if len(result.Items) == 0 {
		result.Message = "No related entries found from: " + start
	}
	return result, nil
}

// askConnection finds the shortest path between two nodes.
func (s *Service) askConnection(ctx context.Context, scope, target string) (*AskResult, error) {
	result := &AskResult{Strategy: graph.StrategyConnection}
	if scope == "" || target == "" {
		result.Message = "Connection strategy requires both scope and target parameters."
		return result, nil
	}
	result.Header = fmt.Sprintf("Connection: %s -> %s", scope, target)

	path, err := s.Queries.FindPath(ctx, scope, target, graph.ConnectionMaxDepth)
	if err != nil {
		return nil, err
	}
	if path == nil {
		result.Message = fmt.Sprintf("No connection found between %s and %s (max depth: %d).", scope, target, graph.ConnectionMaxDepth)
		return result, nil
	}
	result.Path = path

	// Load the entries along the path for context.
	seen := map[string]bool{}
	for _, step := range path {
		for _, node := range []string{step.Source, step.Target} {
			if seen[node] || !models.EntryIDPattern.MatchString(node) {
				continue
			}
			seen[node] = true
			entry, err := s.Store.GetEntry(ctx, node)
			if err != nil || !entry.IsActive {
				continue
			}
			result.Items = append(result.Items, AskItem{Entry: entry, Context: "on connection path"})
		}
	}
	return result, nil
}
