package mcp

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noustack/nous/types"
)

const synthesisSystemPrompt = `You are a knowledge base assistant. Given a question and a set of retrieved knowledge entries, synthesize a clear, concise answer.

Rules:
- Answer ONLY from the provided entries. Do not use outside knowledge.
- Cite entry IDs in [kb-XXXXX] format when referencing specific entries.
- If entries contain conflicting information, note the conflict and cite both.
- If no entries are relevant to the question, say so clearly.
- Be concise. Prefer bullet points for multi-part answers.
- Do not repeat the question back.`

// summarizeHandler retrieves entries via the auto strategy and asks the
// query LLM to synthesize an answer, degrading to raw results.
func (s *Server) summarizeHandler() mcpsdk.ToolHandlerFor[types.SummarizeParams, types.SummarizeResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[types.SummarizeParams]) (*mcpsdk.CallToolResultFor[types.SummarizeResponse], error) {
		args := params.Arguments
		if strings.TrimSpace(args.Question) == "" {
			return nil, types.NewMCPError("MISSING_QUESTION", "A question is required", nil)
		}
		limit := clampLimit(args.Limit, defaultAskLimit, maxAskLimit)

		result, err := s.Service.Ask(ctx, args.Question, "auto", args.Scope, "", limit)
		if err != nil {
			return nil, types.NewMCPError("SUMMARIZE_FAILED", err.Error(), nil)
		}
		if len(result.Items) == 0 {
			return summarizeResult("No entries found matching your question."), nil
		}
		raw := formatAskResult(result)

		if s.Service.QueryLLM != nil && s.Service.QueryLLM.IsAvailable(ctx) {
			prompt := "Question: " + args.Question + "\n\nRetrieved entries:\n" + raw
			if answer := s.Service.QueryLLM.Generate(ctx, prompt, synthesisSystemPrompt); answer != "" {
				return summarizeResult(answer), nil
			}
			return summarizeResult("(LLM synthesis failed - showing raw results)\n\n" + raw), nil
		}
		return summarizeResult("(LLM unavailable - showing raw results)\n\n" + raw), nil
	}
}

func summarizeResult(answer string) *mcpsdk.CallToolResultFor[types.SummarizeResponse] {
	return &mcpsdk.CallToolResultFor[types.SummarizeResponse]{
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: answer}},
		StructuredContent: types.SummarizeResponse{Answer: answer},
	}
}
