package store

import (
	"context"
	"fmt"
	"strings"
)

// FTSMatch is one BM25-ranked candidate. Scores are negative; more
// negative means a stronger match.
type FTSMatch struct {
	EntryID string
	Score   float64
}

// FTSFilters narrows a lexical search.
type FTSFilters struct {
	ProjectRef string
	EntryType  string
	Tags       []string
}

// FTSSearch runs a BM25 match over the FTS5 index. The raw query is
// tokenised on whitespace and every token quoted, so operator characters
// like ":", "-" and "(" cannot break the match expression. Results are
// ordered ascending by score with entry id as the deterministic
// tie-break.
func (s *Store) FTSSearch(ctx context.Context, query string, filters FTSFilters, limit int) ([]FTSMatch, error) {
	match := sanitizeFTSQuery(query)
	if match == "" {
		return nil, nil
	}

	sqlStr := `SELECT e.id, bm25(knowledge_fts) AS score
		FROM knowledge_fts
		JOIN knowledge_entries e ON e.rowid = knowledge_fts.rowid
		WHERE knowledge_fts MATCH ?
		AND e.is_active = 1`
	args := []any{match}

	if filters.ProjectRef != "" {
		sqlStr += " AND e.project_ref = ?"
		args = append(args, filters.ProjectRef)
	}
	if filters.EntryType != "" {
		sqlStr += " AND e.entry_type = ?"
		args = append(args, filters.EntryType)
	}
	for _, tag := range filters.Tags {
		// Boundary-padded substring match: "foo" matches "foo bar" but
		// not "foobar".
		sqlStr += " AND (' ' || e.tags || ' ') LIKE ?"
		args = append(args, "% "+tag+" %")
	}

	sqlStr += " ORDER BY score, e.id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var matches []FTSMatch
	for rows.Next() {
		var m FTSMatch
		if err := rows.Scan(&m.EntryID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// sanitizeFTSQuery wraps each whitespace-delimited token in double
// quotes (implicit AND), neutralising FTS5 operators in user input.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}
