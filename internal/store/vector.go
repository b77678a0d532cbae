package store

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
)

// VectorMatch is one KNN candidate, lower distance = closer.
type VectorMatch struct {
	EntryID  string
	Distance float64
}

// VectorStore upserts the embedding for an entry. vec0 has no conflict
// clause, so upsert is delete-then-insert.
func (s *Store) VectorStore(ctx context.Context, entryID string, embedding []float32) error {
	if len(embedding) != s.dim {
		return fmt.Errorf("embedding for %s has dimension %d, store expects %d", entryID, len(embedding), s.dim)
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM knowledge_vec WHERE entry_id = ?", entryID); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO knowledge_vec (entry_id, embedding) VALUES (?, ?)", entryID, blob)
		return err
	})
}

// VectorSearch returns the k nearest entries to the query embedding,
// sorted ascending by distance.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]VectorMatch, error) {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, distance
		 FROM knowledge_vec
		 WHERE embedding MATCH ? AND k = ?
		 ORDER BY distance`, blob, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.EntryID, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// VectorDelete removes the embedding row for an entry.
func (s *Store) VectorDelete(ctx context.Context, entryID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_vec WHERE entry_id = ?", entryID)
	return err
}

// VectorCount returns the number of stored embeddings.
func (s *Store) VectorCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_vec").Scan(&n)
	return n, err
}
