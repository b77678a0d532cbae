package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noustack/nous/models"
)

// UpsertNode inserts a graph node or refreshes its properties when it
// already exists.
func (s *Store) UpsertNode(ctx context.Context, nodeID, nodeType string, properties map[string]any) error {
	props, err := marshalHints(properties)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graph_nodes (node_id, node_type, properties, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET properties = excluded.properties`,
		nodeID, nodeType, props, formatTime(time.Now()))
	return err
}

// EnsureNode inserts a node only if it does not exist yet, leaving the
// properties of an existing node untouched.
func (s *Store) EnsureNode(ctx context.Context, nodeID, nodeType string, properties map[string]any) error {
	props, err := marshalHints(properties)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graph_nodes (node_id, node_type, properties, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(node_id) DO NOTHING`,
		nodeID, nodeType, props, formatTime(time.Now()))
	return err
}

// GetNode fetches one node, or nil when absent.
func (s *Store) GetNode(ctx context.Context, nodeID string) (*models.GraphNode, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT node_id, node_type, properties, created_at FROM graph_nodes WHERE node_id = ?", nodeID)
	var (
		n              models.GraphNode
		props, created string
	)
	err := row.Scan(&n.NodeID, &n.NodeType, &props, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(props), &n.Properties); err != nil {
		n.Properties = map[string]any{}
	}
	n.CreatedAt = parseTime(created)
	return &n, nil
}

// InsertEdge adds a typed edge, silently ignoring duplicates of
// (source, target, edge_type). Returns true when a row was added.
func (s *Store) InsertEdge(ctx context.Context, source, target, edgeType string, properties map[string]any) (bool, error) {
	props, err := marshalHints(properties)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO graph_edges (source, target, edge_type, properties, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		source, target, edgeType, props, formatTime(time.Now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearDeterministicEdges deletes the outgoing edges of source that were
// NOT produced by the enricher, leaving LLM edges untouched.
func (s *Store) ClearDeterministicEdges(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM graph_edges
		 WHERE source = ?
		 AND COALESCE(json_extract(properties, '$.source'), '') != 'llm'`, source)
	return err
}

// ClearLLMEdges deletes only the enricher-owned outgoing edges of source.
func (s *Store) ClearLLMEdges(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM graph_edges
		 WHERE source = ? AND json_extract(properties, '$.source') = 'llm'`, source)
	return err
}

// ClearOutgoingEdges deletes every outgoing edge of source.
func (s *Store) ClearOutgoingEdges(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM graph_edges WHERE source = ?", source)
	return err
}

// OutgoingLLMEdges lists the enricher-owned edges leaving an entry node.
func (s *Store) OutgoingLLMEdges(ctx context.Context, entryID string) ([]*models.GraphEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, target, edge_type, properties, created_at
		 FROM graph_edges
		 WHERE source = ? AND json_extract(properties, '$.source') = 'llm'
		 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

// Neighbors returns up to limit adjacent nodes in both directions,
// outgoing first - the bounded fan-out primitive for traversals.
func (s *Store) Neighbors(ctx context.Context, nodeID string, edgeTypes []string, direction string, limit int) ([]models.Neighbor, error) {
	var out []models.Neighbor

	if direction == "both" || direction == "outgoing" {
		ns, err := s.neighborsOneWay(ctx, nodeID, edgeTypes, "outgoing", limit)
		if err != nil {
			return nil, err
		}
		out = append(out, ns...)
	}
	if direction == "both" || direction == "incoming" {
		remaining := limit - len(out)
		if remaining <= 0 {
			return out, nil
		}
		ns, err := s.neighborsOneWay(ctx, nodeID, edgeTypes, "incoming", remaining)
		if err != nil {
			return nil, err
		}
		out = append(out, ns...)
	}
	return out, nil
}

func (s *Store) neighborsOneWay(ctx context.Context, nodeID string, edgeTypes []string, direction string, limit int) ([]models.Neighbor, error) {
	var sqlStr string
	if direction == "outgoing" {
		sqlStr = "SELECT target, edge_type FROM graph_edges WHERE source = ?"
	} else {
		sqlStr = "SELECT source, edge_type FROM graph_edges WHERE target = ?"
	}
	args := []any{nodeID}
	if len(edgeTypes) > 0 {
		sqlStr += " AND edge_type IN (" + placeholders(len(edgeTypes)) + ")"
		for _, t := range edgeTypes {
			args = append(args, t)
		}
	}
	sqlStr += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, err)
	}
	defer rows.Close()

	var out []models.Neighbor
	for rows.Next() {
		n := models.Neighbor{Direction: direction}
		if err := rows.Scan(&n.NodeID, &n.EdgeType); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// EdgeSources lists the source node ids of edges pointing at target,
// optionally restricted to one edge type.
func (s *Store) EdgeSources(ctx context.Context, target, edgeType string) ([]string, error) {
	sqlStr := "SELECT source FROM graph_edges WHERE target = ?"
	args := []any{target}
	if edgeType != "" {
		sqlStr += " AND edge_type = ?"
		args = append(args, edgeType)
	}
	sqlStr += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// EdgeTargets lists the target node ids of edges leaving source,
// optionally restricted to one edge type.
func (s *Store) EdgeTargets(ctx context.Context, source, edgeType string) ([]string, error) {
	sqlStr := "SELECT target FROM graph_edges WHERE source = ?"
	args := []any{source}
	if edgeType != "" {
		sqlStr += " AND edge_type = ?"
		args = append(args, edgeType)
	}
	sqlStr += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// VocabularyNode pairs a non-entry node with its degree.
type VocabularyNode struct {
	NodeID   string
	NodeType string
	Degree   int
}

// GraphVocabulary lists non-entry nodes ordered by degree descending,
// capped at maxNodes. Consumed by the planner and the enricher.
func (s *Store) GraphVocabulary(ctx context.Context, maxNodes int) ([]VocabularyNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.node_id, n.node_type,
		        (SELECT COUNT(*) FROM graph_edges WHERE source = n.node_id OR target = n.node_id) AS degree
		 FROM graph_nodes n
		 WHERE n.node_type != 'entry'
		 ORDER BY degree DESC, n.node_id
		 LIMIT ?`, maxNodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VocabularyNode
	for rows.Next() {
		var v VocabularyNode
		if err := rows.Scan(&v.NodeID, &v.NodeType, &v.Degree); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]*models.GraphEdge, error) {
	var edges []*models.GraphEdge
	for rows.Next() {
		var (
			e              models.GraphEdge
			props, created string
		)
		if err := rows.Scan(&e.Source, &e.Target, &e.EdgeType, &props, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			e.Properties = map[string]any{}
		}
		e.CreatedAt = parseTime(created)
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ",?"
	}
	return out
}
