package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/noustack/nous/models"
)

// UpsertIngestedFile records (or refreshes) the registry row for one
// ingested file, keyed by path.
func (s *Store) UpsertIngestedFile(ctx context.Context, f *models.IngestedFile) error {
	entryIDs, err := json.Marshal(f.EntryIDs)
	if err != nil {
		return err
	}
	redactions, err := json.Marshal(f.Redactions)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if f.IngestedAt.IsZero() {
		f.IngestedAt = now
	}
	f.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingested_files
		 (path, content_hash, note_node_id, entry_ids, summary, file_size,
		  file_extension, project_ref, redactions, ingested_at, updated_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   content_hash = excluded.content_hash,
		   note_node_id = excluded.note_node_id,
		   entry_ids = excluded.entry_ids,
		   summary = excluded.summary,
		   file_size = excluded.file_size,
		   file_extension = excluded.file_extension,
		   project_ref = excluded.project_ref,
		   redactions = excluded.redactions,
		   updated_at = excluded.updated_at,
		   is_active = excluded.is_active`,
		f.Path, f.ContentHash, f.NoteNodeID, string(entryIDs), f.Summary, f.FileSize,
		f.Extension, nullable(f.ProjectRef), string(redactions),
		formatTime(f.IngestedAt), formatTime(f.UpdatedAt), boolToInt(f.IsActive))
	return err
}

// GetIngestedFile looks up the registry row for a path, or nil.
func (s *Store) GetIngestedFile(ctx context.Context, path string) (*models.IngestedFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, content_hash, note_node_id, entry_ids, summary, file_size,
		        file_extension, COALESCE(project_ref, ''), redactions, ingested_at, updated_at, is_active
		 FROM ingested_files WHERE path = ?`, path)

	var (
		f                              models.IngestedFile
		entryIDs, redactions           string
		ingested, updated              string
		active                         int
	)
	err := row.Scan(&f.ID, &f.Path, &f.ContentHash, &f.NoteNodeID, &entryIDs, &f.Summary,
		&f.FileSize, &f.Extension, &f.ProjectRef, &redactions, &ingested, &updated, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(entryIDs), &f.EntryIDs)
	_ = json.Unmarshal([]byte(redactions), &f.Redactions)
	f.IngestedAt = parseTime(ingested)
	f.UpdatedAt = parseTime(updated)
	f.IsActive = active != 0
	return &f, nil
}

// CountIngestedFiles returns the number of active registry rows.
func (s *Store) CountIngestedFiles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingested_files WHERE is_active = 1").Scan(&n)
	return n, err
}
