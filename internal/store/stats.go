package store

import "context"

// Stats summarises the store for kb_maintain and the query planner.
type Stats struct {
	ActiveEntries    int
	InactiveEntries  int
	EntriesByType    map[string]int
	VersionCount     int
	EmbeddingCount   int
	NodesByType      map[string]int
	EdgesByType      map[string]int
	IngestedFiles    int
}

// CollectStats gathers row counts by type across all tables.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		EntriesByType: map[string]int{},
		NodesByType:   map[string]int{},
		EdgesByType:   map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM knowledge_entries WHERE is_active = 1").Scan(&st.ActiveEntries); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM knowledge_entries WHERE is_active = 0").Scan(&st.InactiveEntries); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entry_versions").Scan(&st.VersionCount); err != nil {
		return nil, err
	}
	var err error
	if st.EmbeddingCount, err = s.VectorCount(ctx); err != nil {
		return nil, err
	}
	if st.IngestedFiles, err = s.CountIngestedFiles(ctx); err != nil {
		return nil, err
	}

	if err := s.countByType(ctx,
		"SELECT entry_type, COUNT(*) FROM knowledge_entries WHERE is_active = 1 GROUP BY entry_type",
		st.EntriesByType); err != nil {
		return nil, err
	}
	if err := s.countByType(ctx,
		"SELECT node_type, COUNT(*) FROM graph_nodes GROUP BY node_type",
		st.NodesByType); err != nil {
		return nil, err
	}
	if err := s.countByType(ctx,
		"SELECT edge_type, COUNT(*) FROM graph_edges GROUP BY edge_type",
		st.EdgesByType); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) countByType(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		into[k] = n
	}
	return rows.Err()
}
