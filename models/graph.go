package models

import "time"

// Node types for non-entry graph nodes. Entry nodes use node_type "entry"
// and share the entry's kb-XXXXX id; the rest are prefixed ids such as
// tag:python, project:nous, person:ada, tool:sqlite, concept:async-io,
// technology:wasm and note:docs/setup.md.
const (
	NodeEntry      = "entry"
	NodeTag        = "tag"
	NodeProject    = "project"
	NodePerson     = "person"
	NodeTool       = "tool"
	NodeConcept    = "concept"
	NodeTechnology = "technology"
	NodeNote       = "note"
)

// Deterministic edge types owned by the graph builder.
const (
	EdgeHasTag         = "has_tag"
	EdgeInProject      = "in_project"
	EdgeSupersedes     = "supersedes"
	EdgeReferences     = "references"
	EdgeRelatedTo      = "related_to"
	EdgeMentionsPerson = "mentions_person"
	EdgeUsesTool       = "uses_tool"
	EdgeExtractedFrom  = "extracted_from"
)

// EdgeSourceLLM marks edges owned by the enricher in edge properties.
const EdgeSourceLLM = "llm"

// GraphNode is one row of the graph arena.
type GraphNode struct {
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// GraphEdge is a typed, directed connection between two nodes.
// (source, target, edge_type) is unique; duplicate inserts are no-ops.
type GraphEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	EdgeType   string         `json:"edge_type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// IsLLM reports whether the edge was produced by the enricher.
func (e *GraphEdge) IsLLM() bool {
	src, _ := e.Properties["source"].(string)
	return src == EdgeSourceLLM
}

// Neighbor is one hop from a node: the adjacent node id, the edge type,
// and whether the edge points away from ("outgoing") or into ("incoming")
// the queried node.
type Neighbor struct {
	NodeID    string
	EdgeType  string
	Direction string
}

// PathStep is one (source, edge_type, target) triple of a graph path.
type PathStep struct {
	Source   string `json:"source"`
	EdgeType string `json:"edge_type"`
	Target   string `json:"target"`
}

// BFSHit is an entry reached by breadth-first traversal.
type BFSHit struct {
	EntryID string
	Depth   int
	Path    []string
}
