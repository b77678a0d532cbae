package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/noustack/nous/internal/llm"
	"github.com/noustack/nous/models"
)

// maxContentChars truncates file content before it reaches the LLM.
const maxContentChars = 100_000

// MaxEntriesPerFile caps how many entries one file may yield.
const MaxEntriesPerFile = 10

var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".rb": true, ".go": true, ".rs": true, ".java": true, ".kt": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true, ".cs": true,
	".swift": true, ".sh": true, ".bash": true, ".zsh": true, ".fish": true,
	".sql": true, ".r": true, ".lua": true, ".pl": true, ".ex": true,
	".exs": true, ".scala": true, ".clj": true, ".hs": true, ".erl": true,
	".elm": true, ".dart": true, ".zig": true,
}

var proseExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true, ".rst": true,
	".org": true, ".adoc": true, ".tex": true, ".html": true,
}

// allowedBareNames are extension-less files worth ingesting.
var allowedBareNames = map[string]bool{
	"README": true, "CHANGELOG": true, "LICENSE": true, "NOTES": true,
	"Makefile": true, "Dockerfile": true,
}

var (
	fenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)
)

const summarizeSystem = `You are a knowledge base assistant. Given a file's path and content, write a 2-3 sentence summary describing what knowledge this file contains and why it might be useful to recall later.

Be specific and factual. Focus on WHAT the file teaches, not how it's formatted. Return ONLY the summary text, no JSON, no markdown formatting.`

const summarizeCodeSupplement = `

This is a SOURCE CODE file. The reader has full access to the code via IDE tools, so focus the summary on what the code DOES at a high level and any notable design decisions.`

const extractSystem = `You are a knowledge extraction system. Given a file, extract discrete knowledge entries suitable for a personal knowledge base.

Return ONLY a JSON array. Each object has:
- "short_title": brief identifier (3-8 words)
- "long_title": descriptive title (1 sentence)
- "knowledge_details": the actual knowledge content (detailed, self-contained)
- "entry_type": one of: factual_reference, decision, pattern_convention, lesson_learned
- "tags": list of lowercase tag strings (2-5 tags)

Rules:
- Extract 1-10 entries per file. Only extract genuinely useful knowledge.
- Each entry must be SELF-CONTAINED - understandable without the source file.
- Skip boilerplate, TODOs, and trivial content.
- Return [] if the file has no extractable knowledge.`

const extractCodeSupplement = `

This is a SOURCE CODE file. The reader can already see what every function does. Focus on COMMENTS and ANNOTATIONS left by the developer: workaround comments, decision rationale, external system gotchas, non-obvious thresholds. Return [] if there is nothing worth preserving beyond what the code itself communicates.`

const extractProseSupplement = `

This is a NOTES or DOCUMENTATION file. Focus on the author's original insights, conclusions, and non-obvious reasoning. Skip background definitions and generic best-practice advice. Fewer high-quality entries are better than many shallow ones.`

// IsAllowedFile reports whether a file's extension (or bare name) is
// eligible for ingestion.
func IsAllowedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if codeExtensions[ext] || proseExtensions[ext] {
		return true
	}
	if ext == ".json" || ext == ".yaml" || ext == ".yml" || ext == ".toml" || ext == ".ini" || ext == ".cfg" || ext == ".conf" {
		return true
	}
	return ext == "" && allowedBareNames[filepath.Base(path)]
}

func isCodeFile(path string) bool {
	return codeExtensions[strings.ToLower(filepath.Ext(path))]
}

func isProseFile(path string) bool {
	return proseExtensions[strings.ToLower(filepath.Ext(path))]
}

// ExtractedEntry is one knowledge entry proposed by the extraction LLM.
type ExtractedEntry struct {
	ShortTitle string   `json:"short_title"`
	LongTitle  string   `json:"long_title"`
	Details    string   `json:"knowledge_details"`
	EntryType  string   `json:"entry_type"`
	Tags       []string `json:"tags"`
}

// SummarizeFile asks the LLM for a short summary of the file. Returns
// "" when the LLM is unavailable.
func SummarizeFile(ctx context.Context, provider llm.Provider, path, content string) string {
	if provider == nil || !provider.IsAvailable(ctx) {
		return ""
	}
	system := summarizeSystem
	if isCodeFile(path) {
		system += summarizeCodeSupplement
	}
	prompt := "File: " + path + "\n\nContent:\n" + truncate(content, maxContentChars)
	return strings.TrimSpace(provider.Generate(ctx, prompt, system))
}

// ExtractEntries asks the LLM for structured knowledge entries from the
// file. Invalid items are discarded; failures yield an empty slice.
func ExtractEntries(ctx context.Context, provider llm.Provider, path, content string) []ExtractedEntry {
	if provider == nil || !provider.IsAvailable(ctx) {
		return nil
	}
	system := extractSystem
	switch {
	case isCodeFile(path):
		system += extractCodeSupplement
	case isProseFile(path):
		system += extractProseSupplement
	}
	prompt := "File: " + path + "\n\nContent:\n" + truncate(content, maxContentChars)
	raw := provider.Generate(ctx, prompt, system)
	if raw == "" {
		return nil
	}
	return parseEntries(raw)
}

func parseEntries(raw string) []ExtractedEntry {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	arr := jsonArrayRe.FindString(raw)
	if arr == "" {
		slog.Warn("no JSON array found in extraction response")
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		slog.Warn("malformed JSON in extraction response", "error", err)
		return nil
	}

	var out []ExtractedEntry
	for _, item := range items {
		var e ExtractedEntry
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		if e.ShortTitle == "" || e.LongTitle == "" || e.Details == "" {
			continue
		}
		if !models.ValidEntryType(e.EntryType) {
			continue
		}
		out = append(out, e)
		if len(out) >= MaxEntriesPerFile {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
