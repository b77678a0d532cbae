// Package graph implements the two-tier knowledge graph: deterministic
// edges derived from entry fields, LLM-extracted entity edges layered on
// top, and the traversal queries and planner that consume them.
package graph

import (
	"context"
	"regexp"
	"strings"

	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

var kbIDRe = regexp.MustCompile(`kb-\d{5}`)

// Builder derives deterministic nodes and edges from entry data. It
// runs on every create and update.
type Builder struct {
	Store *store.Store
}

// BuildForEntry rebuilds the deterministic edges of an entry. The model
// is delete-and-rebuild: outgoing edges that do not carry source=llm
// are dropped (LLM edges belong to the enricher), then every edge is
// re-derived from tags, project_ref, hints and text references.
func (b *Builder) BuildForEntry(ctx context.Context, entry *models.KnowledgeEntry) error {
	if err := b.Store.ClearDeterministicEdges(ctx, entry.ID); err != nil {
		return err
	}

	// 1. Entry node carries the title and type for traversal output.
	props := map[string]any{
		"short_title": entry.ShortTitle,
		"entry_type":  string(entry.EntryType),
	}
	if err := b.Store.UpsertNode(ctx, entry.ID, models.NodeEntry, props); err != nil {
		return err
	}

	// 2. Tags
	for _, tag := range entry.Tags {
		nodeID := "tag:" + tag
		if err := b.link(ctx, entry.ID, nodeID, models.NodeTag, models.EdgeHasTag); err != nil {
			return err
		}
	}

	// 3. Project
	if entry.ProjectRef != "" {
		nodeID := "project:" + entry.ProjectRef
		if err := b.link(ctx, entry.ID, nodeID, models.NodeProject, models.EdgeInProject); err != nil {
			return err
		}
	}

	// 4. Supersedes hints
	for _, target := range hintStrings(entry.Hints["supersedes"]) {
		if err := b.linkEntry(ctx, entry.ID, target, models.EdgeSupersedes); err != nil {
			return err
		}
	}

	// 5. Superseded_by is stored on the old entry; the edge points the
	// other way: superseder -> this entry.
	if entry.SupersededBy != "" {
		if err := b.Store.EnsureNode(ctx, entry.SupersededBy, models.NodeEntry, nil); err != nil {
			return err
		}
		if _, err := b.Store.InsertEdge(ctx, entry.SupersededBy, entry.ID, models.EdgeSupersedes, nil); err != nil {
			return err
		}
	}

	// 6. Text references: every distinct kb-XXXXX token in the body.
	seen := map[string]bool{}
	for _, ref := range kbIDRe.FindAllString(entry.Details, -1) {
		if ref == entry.ID || seen[ref] {
			continue
		}
		seen[ref] = true
		if err := b.linkEntry(ctx, entry.ID, ref, models.EdgeReferences); err != nil {
			return err
		}
	}

	// 7. Related entities: strings or {id/target, edge_type/type} maps.
	for _, rel := range hintList(entry.Hints["related_entities"]) {
		switch v := rel.(type) {
		case string:
			if v == "" {
				continue
			}
			if err := b.linkEntry(ctx, entry.ID, v, models.EdgeRelatedTo); err != nil {
				return err
			}
		case map[string]any:
			target, _ := v["id"].(string)
			if target == "" {
				target, _ = v["target"].(string)
			}
			if target == "" {
				continue
			}
			edgeType, _ := v["edge_type"].(string)
			if edgeType == "" {
				edgeType, _ = v["type"].(string)
			}
			if edgeType == "" {
				edgeType = models.EdgeRelatedTo
			}
			if err := b.linkEntry(ctx, entry.ID, target, edgeType); err != nil {
				return err
			}
		}
	}

	// 8. People
	for _, person := range hintStrings(entry.Hints["person"]) {
		nodeID := "person:" + strings.ToLower(person)
		if err := b.link(ctx, entry.ID, nodeID, models.NodePerson, models.EdgeMentionsPerson); err != nil {
			return err
		}
	}

	// 9. Tools
	for _, tool := range hintStrings(entry.Hints["tool"]) {
		nodeID := "tool:" + strings.ToLower(tool)
		if err := b.link(ctx, entry.ID, nodeID, models.NodeTool, models.EdgeUsesTool); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) link(ctx context.Context, source, nodeID, nodeType, edgeType string) error {
	if err := b.Store.EnsureNode(ctx, nodeID, nodeType, nil); err != nil {
		return err
	}
	_, err := b.Store.InsertEdge(ctx, source, nodeID, edgeType, nil)
	return err
}

func (b *Builder) linkEntry(ctx context.Context, source, target, edgeType string) error {
	if err := b.Store.EnsureNode(ctx, target, models.NodeEntry, nil); err != nil {
		return err
	}
	_, err := b.Store.InsertEdge(ctx, source, target, edgeType, nil)
	return err
}

// hintList coerces a hint value to a list: nil -> empty, scalar -> one
// element.
func hintList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// hintStrings keeps only the non-empty strings of a hint list.
func hintStrings(v any) []string {
	var out []string
	for _, item := range hintList(v) {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
