package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/noustack/nous/internal/llm"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

// MaxRelationships caps how many entity relationships one entry yields.
const MaxRelationships = 8

// maxBatchContent truncates entry bodies in batch prompts.
const maxBatchContent = 500

var validEntityTypes = map[string]bool{
	"person":     true,
	"tool":       true,
	"concept":    true,
	"technology": true,
}

var (
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

const enrichSystemPrompt = `You are a knowledge graph builder. Given a knowledge entry, extract entities and their relationships to this entry.

Return ONLY a JSON array. Each object has:
- "entity": entity name (lowercase, hyphens for spaces)
- "entity_type": one of: person, tool, concept, technology
- "relationship": how the entry relates to the entity

Good entities are SPECIFIC enough to connect related entries:
- "thread-safety", "connection-pooling", "dependency-injection" (good concepts)
- "error", "problem", "pattern" (too vague - avoid these)
- "postgresql", "redis", "sqlite" (good tools/technologies)

Good relationships describe HOW, not just that a link exists:
- uses, depends_on, implements, solves, replaces, configures, learned_from, caused_by

Rules:
- Extract 2-6 entities. Return [] if the entry is too generic.
- Skip tags and project references (already captured separately).
- entity_type MUST be one of: person, tool, concept, technology.`

const enrichBatchSystemPrompt = `You are a knowledge graph builder. Given multiple knowledge entries, extract entities and their relationships for EACH entry.

Return ONLY a JSON object keyed by entry ID. Each value is an array of relationship objects with:
- "entity": entity name (lowercase, hyphens for spaces)
- "entity_type": one of: person, tool, concept, technology
- "relationship": how the entry relates to the entity

Rules:
- Extract 2-6 entities per entry. Use [] for entries that are too generic.
- Skip tags and project references (already captured separately).
- entity_type MUST be one of: person, tool, concept, technology.`

// Relationship is one validated extraction result.
type Relationship struct {
	Entity       string `json:"entity"`
	EntityType   string `json:"entity_type"`
	Relationship string `json:"relationship"`
}

// Enricher layers LLM-extracted entity edges on top of the
// deterministic graph. Extracted entity names are resolved against the
// existing vocabulary with fuzzy matching so "concept:asyncio" reuses
// an existing "technology:asyncio" node instead of splitting it.
type Enricher struct {
	Store *store.Store
	LLM   llm.Provider

	// MatchThreshold is the minimum similarity ratio for reusing an
	// existing node (0.85 unless configured otherwise).
	MatchThreshold float64
}

// vocabCache holds the graph vocabulary for one enrichment call.
// It is loaded once per call and is not shared across calls.
type vocabCache struct {
	// name (without type prefix) -> full node id
	names map[string]string
}

// EnrichEntry extracts relationships for one entry and writes them as
// LLM-marked edges, replacing the previous LLM layer. Returns the
// number of edges added. Failures degrade to zero edges, never errors
// that would fail the surrounding store operation.
func (e *Enricher) EnrichEntry(ctx context.Context, entry *models.KnowledgeEntry) (int, error) {
	if e.LLM == nil || !e.LLM.IsAvailable(ctx) {
		return 0, nil
	}

	raw := e.LLM.Generate(ctx, buildEntryPrompt(entry), enrichSystemPrompt)
	if raw == "" {
		return 0, nil
	}
	rels := ParseRelationships(raw)

	vocab, err := e.loadVocabulary(ctx)
	if err != nil {
		return 0, err
	}
	return e.applyRelationships(ctx, entry, rels, vocab)
}

// EnrichBatch enriches several entries with one LLM call, parsing a
// JSON object keyed by entry id. On parse failure it falls back to
// per-entry enrichment.
func (e *Enricher) EnrichBatch(ctx context.Context, entries []*models.KnowledgeEntry) (int, error) {
	if len(entries) == 0 || e.LLM == nil || !e.LLM.IsAvailable(ctx) {
		return 0, nil
	}

	raw := e.LLM.Generate(ctx, buildBatchPrompt(entries), enrichBatchSystemPrompt)
	if raw == "" {
		return 0, nil
	}

	ids := make([]string, len(entries))
	for i, en := range entries {
		ids[i] = en.ID
	}
	batch := parseBatchRelationships(raw, ids)
	if batch == nil {
		slog.Warn("batch parse failed, falling back to per-entry enrichment")
		total := 0
		for _, entry := range entries {
			n, err := e.EnrichEntry(ctx, entry)
			if err != nil {
				slog.Warn("fallback enrich failed", "entry", entry.ID, "error", err)
				continue
			}
			total += n
		}
		return total, nil
	}

	vocab, err := e.loadVocabulary(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, entry := range entries {
		n, err := e.applyRelationships(ctx, entry, batch[entry.ID], vocab)
		if err != nil {
			slog.Warn("batch apply failed", "entry", entry.ID, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

// applyRelationships replaces the entry's LLM edge layer with rels.
// Deterministic edges are preserved.
func (e *Enricher) applyRelationships(ctx context.Context, entry *models.KnowledgeEntry, rels []Relationship, vocab *vocabCache) (int, error) {
	props := map[string]any{
		"short_title": entry.ShortTitle,
		"entry_type":  string(entry.EntryType),
	}
	if err := e.Store.EnsureNode(ctx, entry.ID, models.NodeEntry, props); err != nil {
		return 0, err
	}
	if err := e.Store.ClearLLMEdges(ctx, entry.ID); err != nil {
		return 0, err
	}

	added := 0
	for _, rel := range rels {
		nodeID := e.resolveEntity(vocab, rel)
		nodeType := nodeTypeOf(nodeID, rel.EntityType)
		if err := e.Store.EnsureNode(ctx, nodeID, nodeType, nil); err != nil {
			return added, err
		}
		ok, err := e.Store.InsertEdge(ctx, entry.ID, nodeID, rel.Relationship,
			map[string]any{"source": models.EdgeSourceLLM})
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// resolveEntity maps an extracted entity to a node id, reusing any
// existing node whose name is similar enough - across types, so a
// "concept" that already exists as a "technology" is not duplicated.
// New names register in the cache for later items of the same call.
func (e *Enricher) resolveEntity(vocab *vocabCache, rel Relationship) string {
	name := strings.ToLower(strings.TrimSpace(rel.Entity))
	threshold := e.MatchThreshold
	if threshold <= 0 {
		threshold = 0.85
	}

	bestID := ""
	bestScore := 0.0
	for existing, nodeID := range vocab.names {
		score := SimilarityRatio(name, existing)
		if score > bestScore {
			bestScore, bestID = score, nodeID
		}
	}
	if bestScore >= threshold {
		return bestID
	}

	nodeID := rel.EntityType + ":" + name
	vocab.names[name] = nodeID
	return nodeID
}

func (e *Enricher) loadVocabulary(ctx context.Context) (*vocabCache, error) {
	nodes, err := e.Store.GraphVocabulary(ctx, 200)
	if err != nil {
		return nil, err
	}
	cache := &vocabCache{names: make(map[string]string, len(nodes))}
	for _, n := range nodes {
		name := strings.TrimPrefix(n.NodeID, n.NodeType+":")
		if _, taken := cache.names[name]; !taken {
			cache.names[name] = n.NodeID
		}
	}
	return cache, nil
}

// nodeTypeOf recovers the node type from a resolved node id, falling
// back to the extracted entity type.
func nodeTypeOf(nodeID, fallback string) string {
	if i := strings.Index(nodeID, ":"); i > 0 {
		return nodeID[:i]
	}
	return fallback
}

func buildEntryPrompt(entry *models.KnowledgeEntry) string {
	parts := []string{
		"Title: " + entry.ShortTitle,
		"Full title: " + entry.LongTitle,
		"Type: " + string(entry.EntryType),
	}
	if len(entry.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(entry.Tags, ", "))
	}
	if entry.ProjectRef != "" {
		parts = append(parts, "Project: "+entry.ProjectRef)
	}
	parts = append(parts, "\nContent:\n"+entry.Details)
	return strings.Join(parts, "\n")
}

func buildBatchPrompt(entries []*models.KnowledgeEntry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		content := entry.Details
		if len(content) > maxBatchContent {
			content = content[:maxBatchContent]
		}
		parts = append(parts, fmt.Sprintf("[%s] %s (%s): %s", entry.ID, entry.ShortTitle, entry.EntryType, content))
	}
	return strings.Join(parts, "\n\n")
}

// ParseRelationships defensively parses an LLM response: strip code
// fences, locate the outermost JSON array, validate each item's shape
// and entity type, and cap the count.
func ParseRelationships(raw string) []Relationship {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	arr := jsonArrayRe.FindString(raw)
	if arr == "" {
		slog.Warn("no JSON array found in LLM response")
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		slog.Warn("malformed JSON in LLM response", "error", err)
		return nil
	}

	var out []Relationship
	for _, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		entity, _ := fields["entity"].(string)
		entityType, _ := fields["entity_type"].(string)
		relationship, _ := fields["relationship"].(string)
		if entity == "" || relationship == "" || !validEntityTypes[entityType] {
			continue
		}
		out = append(out, Relationship{Entity: entity, EntityType: entityType, Relationship: relationship})
		if len(out) >= MaxRelationships {
			break
		}
	}
	return out
}

// parseBatchRelationships parses the batch response object. Returns nil
// when the object cannot be parsed at all, which triggers the per-entry
// fallback.
func parseBatchRelationships(raw string, entryIDs []string) map[string][]Relationship {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	obj := jsonObjectRe.FindString(raw)
	if obj == "" {
		slog.Warn("no JSON object found in batch LLM response")
		return nil
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &data); err != nil {
		slog.Warn("malformed JSON in batch LLM response", "error", err)
		return nil
	}

	valid := make(map[string]bool, len(entryIDs))
	for _, id := range entryIDs {
		valid[id] = true
	}

	out := make(map[string][]Relationship)
	for id, rels := range data {
		if !valid[id] {
			continue
		}
		out[id] = ParseRelationships(string(rels))
	}
	return out
}
