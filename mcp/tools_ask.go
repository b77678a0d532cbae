package mcp

import (
	"context"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/internal/confidence"
	"github.com/noustack/nous/internal/graph"
	"github.com/noustack/nous/internal/knowledge"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/types"
)

const (
	defaultAskLimit = 20
	maxAskLimit     = 50
)

// askHandler dispatches a question to a graph traversal strategy.
func (s *Server) askHandler() mcpsdk.ToolHandlerFor[types.AskParams, types.AskResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.AskParams]) (*mcpsdk.CallToolResultFor[types.AskResponse], error) {
		args := params.Arguments
		if strings.TrimSpace(args.Question) == "" {
			return nil, types.NewMCPError("MISSING_QUESTION", "A question is required", nil)
		}
		strategy := args.Strategy
		if strategy == "" {
			strategy = graph.StrategyAuto
		}
		limit := clampLimit(args.Limit, defaultAskLimit, maxAskLimit)

		result, err := s.Service.Ask(ctx, args.Question, strategy, args.Scope, args.Target, limit)
		if err != nil {
			if store.IsValidation(err) {
				return nil, types.NewMCPError("INVALID_STRATEGY", err.Error(), map[string]interface{}{
					"valid_values": []string{
						graph.StrategyAuto, graph.StrategyDecisionTrace, graph.StrategyTimeline,
						graph.StrategyRelated, graph.StrategyConnection,
					},
				})
			}
			return nil, types.NewMCPError("ASK_FAILED", err.Error(), nil)
		}

		text := formatAskResult(result)
		now := time.Now().UTC()
		summaries := make([]types.EntrySummary, 0, len(result.Items))
		for _, item := range result.Items {
			eff := confidence.EffectiveForEntry(item.Entry, now)
			summaries = append(summaries, entrySummary(item.Entry, eff, "", ""))
		}

		return &mcpsdk.CallToolResultFor[types.AskResponse]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			StructuredContent: types.AskResponse{Strategy: result.Strategy, Results: summaries},
		}, nil
	}
}

// formatAskResult renders the strategy outcome, including the planner's
// reroute note and the connection path when present.
func formatAskResult(result *knowledge.AskResult) string {
	var b strings.Builder

	if result.Plan != nil && result.Plan.Strategy != graph.StrategyAuto {
		b.WriteString("[Planned: " + result.Plan.Strategy + "]")
		if result.Plan.Reasoning != "" {
			b.WriteString(" " + result.Plan.Reasoning)
		}
		b.WriteString("\n\n")
	}

	if result.Message != "" && len(result.Items) == 0 {
		b.WriteString(result.Message)
		return b.String()
	}

	if len(result.Path) > 0 {
		b.WriteString("Connection path:\n")
		for _, step := range result.Path {
			b.WriteString("  " + step.Source + " -[" + step.EdgeType + "]-> " + step.Target + "\n")
		}
		b.WriteString("\n")
	}

	formatted := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		formatted = append(formatted, formatEntryFull(item.Entry, item.Context))
	}
	b.WriteString(formatResultList(formatted, result.Header, "", nil))
	return b.String()
}
