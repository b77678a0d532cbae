package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/noustack/nous/internal/llm"
	"github.com/noustack/nous/internal/store"
)

// Strategy names accepted by kb_ask and the planner.
const (
	StrategyAuto          = "auto"
	StrategyDecisionTrace = "decision_trace"
	StrategyTimeline      = "timeline"
	StrategyRelated       = "related"
	StrategyConnection    = "connection"
)

// ValidStrategies is the closed strategy set.
var ValidStrategies = map[string]bool{
	StrategyAuto:          true,
	StrategyDecisionTrace: true,
	StrategyTimeline:      true,
	StrategyRelated:       true,
	StrategyConnection:    true,
}

const plannerSystemPrompt = `You are a knowledge graph query planner. Given a natural language question and a graph vocabulary, choose the best query strategy and resolve entity references.

Available strategies:
- auto: Hybrid search + graph expansion. Best for general questions or when unsure.
- decision_trace: Follow supersedes chains for decision history. Use when the question asks about WHY something was decided or how a decision evolved.
- timeline: Chronological entries for a scope. Use when the question asks about history, progression, or "what happened" in a specific area.
- related: BFS from a starting node. Use when the question asks "what relates to X" or "what else uses X".
- connection: Find paths between two nodes. Use when the question asks how two things are connected.

Node ID formats:
- tag:X, project:X, person:X, tool:X, concept:X, technology:X
- kb-XXXXX (entry IDs)

Output a single JSON object:
{
  "strategy": "auto|decision_trace|timeline|related|connection",
  "scope": "resolved node ID or null",
  "target": "second node ID (connection only) or null",
  "search_query": "refined search terms or null",
  "reasoning": "brief explanation of your choice"
}

Rules:
- Choose ONE strategy. When in doubt, use "auto".
- Resolve mentions to exact node IDs from the vocabulary provided.
- For "related" and "timeline", scope is required.
- For "connection", both scope and target are required.
- If you can't resolve a mention to a known node, use "auto" instead.`

// QueryPlan is a structured graph query produced from a question.
type QueryPlan struct {
	Strategy    string `json:"strategy"`
	Scope       string `json:"scope,omitempty"`
	Target      string `json:"target,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// Planner translates natural-language questions into query plans using
// the query LLM plus the current graph vocabulary and stats.
type Planner struct {
	Store   *store.Store
	Queries *Queries
	LLM     llm.Provider
}

// Plan generates a plan for a question. Returns nil on any failure -
// the caller falls back to the auto strategy with the raw query.
func (p *Planner) Plan(ctx context.Context, question string) *QueryPlan {
	if p.LLM == nil || !p.LLM.IsAvailable(ctx) {
		return nil
	}

	prompt, err := p.buildContext(ctx, question)
	if err != nil {
		slog.Warn("planner context build failed", "error", err)
		return nil
	}
	raw := p.LLM.Generate(ctx, prompt, plannerSystemPrompt)
	if raw == "" {
		return nil
	}
	return parsePlan(raw)
}

// buildContext assembles graph stats, the vocabulary and the question.
func (p *Planner) buildContext(ctx context.Context, question string) (string, error) {
	var b strings.Builder

	stats, err := p.Store.CollectStats(ctx)
	if err != nil {
		return "", err
	}
	nodes, _ := json.Marshal(stats.NodesByType)
	edges, _ := json.Marshal(stats.EdgesByType)
	b.WriteString("Graph stats:\n")
	fmt.Fprintf(&b, "  Nodes by type: %s\n", nodes)
	fmt.Fprintf(&b, "  Edges by type: %s\n", edges)
	fmt.Fprintf(&b, "  Active entries: %d\n", stats.ActiveEntries)

	vocab, err := p.Queries.Vocabulary(ctx, 200)
	if err != nil {
		return "", err
	}
	if len(vocab) > 0 {
		b.WriteString("\nGraph vocabulary (available node names by type):\n")
		types := make([]string, 0, len(vocab))
		for t := range vocab {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "  %s: %s\n", t, strings.Join(vocab[t], ", "))
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s", question)
	return b.String(), nil
}

// parsePlan extracts and validates the planner's JSON object. Unknown
// strategies degrade to auto.
func parsePlan(raw string) *QueryPlan {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	obj := jsonObjectRe.FindString(raw)
	if obj == "" {
		slog.Warn("no JSON object found in planner response")
		return nil
	}

	var plan QueryPlan
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		slog.Warn("malformed JSON in planner response", "error", err)
		return nil
	}
	if !ValidStrategies[plan.Strategy] {
		slog.Warn("invalid strategy from planner, falling back to auto", "strategy", plan.Strategy)
		plan.Strategy = StrategyAuto
	}
	return &plan
}
