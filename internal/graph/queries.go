package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

// Traversal depth bounds. The graph is cyclic - supersedes can chain
// and related_to can loop - so every walk carries a visited set.
const (
	RelatedMaxDepth    = 2
	ConnectionMaxDepth = 4
	bfsResultLimit     = 20
	neighborFanOut     = 50
)

// AutoNeighborCap bounds the one-hop expansion per search hit in the
// auto strategy. A soft budget, not a correctness bound.
const AutoNeighborCap = 10

// Queries bundles the read-side graph traversals.
type Queries struct {
	Store *store.Store
}

// Neighbors returns up to limit adjacent nodes in both directions.
func (q *Queries) Neighbors(ctx context.Context, nodeID string, limit int) ([]models.Neighbor, error) {
	if limit <= 0 {
		limit = neighborFanOut
	}
	return q.Store.Neighbors(ctx, nodeID, nil, "both", limit)
}

// BFSEntries walks breadth-first from startNode up to maxDepth,
// collecting reached entry nodes (never the start itself). Node rows
// are fetched lazily; the visited set bounds cyclic graphs.
func (q *Queries) BFSEntries(ctx context.Context, startNode string, maxDepth, limit int) ([]models.BFSHit, error) {
	if limit <= 0 {
		limit = bfsResultLimit
	}

	type queueItem struct {
		node  string
		depth int
		path  []string
	}

	visited := map[string]bool{startNode: true}
	queue := []queueItem{{node: startNode, depth: 0, path: []string{startNode}}}
	var results []models.BFSHit

	for len(queue) > 0 && len(results) < limit {
		item := queue[0]
		queue = queue[1:]

		if item.depth > 0 && models.EntryIDPattern.MatchString(item.node) {
			results = append(results, models.BFSHit{EntryID: item.node, Depth: item.depth, Path: item.path})
			if len(results) >= limit {
				break
			}
		}

		if item.depth >= maxDepth {
			continue
		}

		neighbors, err := q.Store.Neighbors(ctx, item.node, nil, "both", neighborFanOut)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n.NodeID] {
				continue
			}
			visited[n.NodeID] = true
			path := append(append([]string{}, item.path...), n.NodeID)
			queue = append(queue, queueItem{node: n.NodeID, depth: item.depth + 1, path: path})
		}
	}
	return results, nil
}

// FindPath finds the shortest path between two nodes via BFS, bounded
// by maxDepth. Shortest is by first visit, not edge weight. Returns nil
// when no path exists within the bound; an empty slice when a == b.
func (q *Queries) FindPath(ctx context.Context, source, target string, maxDepth int) ([]models.PathStep, error) {
	if source == target {
		return []models.PathStep{}, nil
	}

	type queueItem struct {
		node string
		path []models.PathStep
	}

	visited := map[string]bool{source: true}
	queue := []queueItem{{node: source}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if len(item.path) >= maxDepth {
			continue
		}

		neighbors, err := q.Store.Neighbors(ctx, item.node, nil, "both", neighborFanOut)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n.NodeID] {
				continue
			}
			visited[n.NodeID] = true

			var step models.PathStep
			if n.Direction == "outgoing" {
				step = models.PathStep{Source: item.node, EdgeType: n.EdgeType, Target: n.NodeID}
			} else {
				step = models.PathStep{Source: n.NodeID, EdgeType: n.EdgeType, Target: item.node}
			}
			path := append(append([]models.PathStep{}, item.path...), step)

			if n.NodeID == target {
				return path, nil
			}
			queue = append(queue, queueItem{node: n.NodeID, path: path})
		}
	}
	return nil, nil
}

// ChainItem is one entry of a supersedes chain with its position label.
type ChainItem struct {
	EntryID string
	Label   string
}

// SupersedesChain walks supersedes edges both backward and forward from
// entryID, dedupes, and orders the chain chronologically by created_at.
// Items are labelled "original", "supersedes kb-XXXXX" or "current".
func (q *Queries) SupersedesChain(ctx context.Context, entryID string) ([]ChainItem, error) {
	inChain := map[string]bool{entryID: true}
	chain := []string{entryID}

	// Backward: what does this chain's tail supersede?
	current := entryID
	for {
		targets, err := q.Store.EdgeTargets(ctx, current, models.EdgeSupersedes)
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 || inChain[targets[0]] {
			break
		}
		current = targets[0]
		inChain[current] = true
		chain = append([]string{current}, chain...)
	}

	// Forward: what supersedes this chain's head?
	current = entryID
	for {
		sources, err := q.Store.EdgeSources(ctx, current, models.EdgeSupersedes)
		if err != nil {
			return nil, err
		}
		if len(sources) == 0 || inChain[sources[0]] {
			break
		}
		current = sources[0]
		inChain[current] = true
		chain = append(chain, current)
	}

	// Order chronologically by created_at where the entries exist.
	entries, err := q.Store.GetEntries(ctx, chain, true)
	if err != nil {
		return nil, err
	}
	known := make(map[string]*models.KnowledgeEntry, len(entries))
	for _, e := range entries {
		known[e.ID] = e
	}
	sort.SliceStable(chain, func(i, j int) bool {
		a, okA := known[chain[i]]
		b, okB := known[chain[j]]
		if !okA || !okB {
			return i < j
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	items := make([]ChainItem, len(chain))
	for i, id := range chain {
		label := "current"
		switch {
		case len(chain) == 1:
			label = "current"
		case i == 0:
			label = "original"
		case i < len(chain)-1:
			label = "supersedes " + chain[i-1]
		default:
			label = "current (supersedes " + chain[i-1] + ")"
		}
		items[i] = ChainItem{EntryID: id, Label: label}
	}
	return items, nil
}

// EntriesForScope resolves a scope string to entry ids, dispatching on
// the prefix: project/tag/person/tool, a literal entry id, or an entry
// type name. Results are ordered by created_at ascending.
func (q *Queries) EntriesForScope(ctx context.Context, scope string) ([]string, error) {
	scopeType, value := parseScope(scope)

	switch scopeType {
	case "entry":
		return []string{value}, nil

	case "entry_type":
		return q.entryIDsWhere(ctx,
			"SELECT id FROM knowledge_entries WHERE entry_type = ? AND is_active = 1 ORDER BY created_at", value)

	case "project":
		return q.entryIDsWhere(ctx,
			"SELECT id FROM knowledge_entries WHERE project_ref = ? AND is_active = 1 ORDER BY created_at", value)

	case "tag":
		return q.entriesViaEdges(ctx, "tag:"+value, models.EdgeHasTag)
	case "person":
		return q.entriesViaEdges(ctx, "person:"+value, models.EdgeMentionsPerson)
	case "tool":
		return q.entriesViaEdges(ctx, "tool:"+value, models.EdgeUsesTool)
	default:
		// Generic node - any entry connected to it.
		return q.entriesViaEdges(ctx, value, "")
	}
}

func (q *Queries) entryIDsWhere(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.Store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) entriesViaEdges(ctx context.Context, nodeID, edgeType string) ([]string, error) {
	sources, err := q.Store.EdgeSources(ctx, nodeID, edgeType)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, s := range sources {
		if models.EntryIDPattern.MatchString(s) {
			ids = append(ids, s)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Keep only active entries, ordered chronologically.
	entries, err := q.Store.GetEntries(ctx, ids, false)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out, nil
}

// Vocabulary returns non-entry node names grouped by type, each list
// ordered by connection count descending, with type prefixes stripped.
func (q *Queries) Vocabulary(ctx context.Context, maxNodes int) (map[string][]string, error) {
	nodes, err := q.Store.GraphVocabulary(ctx, maxNodes)
	if err != nil {
		return nil, err
	}
	vocab := make(map[string][]string)
	for _, n := range nodes {
		name := strings.TrimPrefix(n.NodeID, n.NodeType+":")
		vocab[n.NodeType] = append(vocab[n.NodeType], name)
	}
	return vocab, nil
}

// parseScope splits a scope string into (kind, value).
func parseScope(scope string) (string, string) {
	if models.EntryIDPattern.MatchString(scope) {
		return "entry", scope
	}
	for _, prefix := range []string{"project:", "tag:", "person:", "tool:"} {
		if strings.HasPrefix(scope, prefix) {
			return strings.TrimSuffix(prefix, ":"), scope[len(prefix):]
		}
	}
	if models.ValidEntryType(scope) {
		return "entry_type", scope
	}
	return "node", scope
}
