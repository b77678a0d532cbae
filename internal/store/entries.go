package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noustack/nous/models"
)

// EntryFields carries the caller-supplied fields for a new entry.
type EntryFields struct {
	ShortTitle      string
	LongTitle       string
	Details         string
	EntryType       models.EntryType
	ProjectRef      string
	SourceContext   string
	ConfidenceLevel float64
	Tags            []string
	Hints           map[string]any
}

// EntryPatch carries the mutable fields of an update. Nil pointers mean
// "leave unchanged"; Hints are merged over the existing map.
type EntryPatch struct {
	Details         *string
	ConfidenceLevel *float64
	Tags            []string
	Hints           map[string]any
}

// AllocateEntryID reads and increments the id sequence inside tx,
// returning the zero-padded kb-XXXXX form.
func AllocateEntryID(tx *sql.Tx) (string, error) {
	var next int64
	if err := tx.QueryRow("SELECT next_id FROM entry_id_seq").Scan(&next); err != nil {
		return "", fmt.Errorf("read id sequence: %w", err)
	}
	if _, err := tx.Exec("UPDATE entry_id_seq SET next_id = ?", next+1); err != nil {
		return "", fmt.Errorf("advance id sequence: %w", err)
	}
	return fmt.Sprintf("kb-%05d", next), nil
}

// CreateEntry allocates an id, inserts the entry and writes version 1,
// all in one transaction.
func (s *Store) CreateEntry(ctx context.Context, f EntryFields) (*models.KnowledgeEntry, error) {
	if err := validateFields(f); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &models.KnowledgeEntry{
		ProjectRef:      f.ProjectRef,
		ShortTitle:      f.ShortTitle,
		LongTitle:       f.LongTitle,
		Details:         f.Details,
		EntryType:       f.EntryType,
		SourceContext:   f.SourceContext,
		ConfidenceLevel: f.ConfidenceLevel,
		Tags:            f.Tags,
		Hints:           f.Hints,
		CreatedAt:       now,
		UpdatedAt:       now,
		IsActive:        true,
		Version:         1,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := AllocateEntryID(tx)
		if err != nil {
			return err
		}
		entry.ID = id

		if err := models.ValidateStruct(entry); err != nil {
			return &ValidationError{Field: "entry", Reason: err.Error()}
		}
		if err := insertEntry(tx, entry); err != nil {
			return err
		}
		return insertVersion(tx, &models.EntryVersion{
			EntryID:         id,
			VersionNumber:   1,
			Details:         entry.Details,
			ChangeReason:    models.InitialChangeReason,
			ConfidenceLevel: entry.ConfidenceLevel,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateEntry bumps the version, writes a version row snapshotting the
// post-write state, and clears has_embedding when the body changed.
// Returns ErrNotFound for unknown or inactive ids.
func (s *Store) UpdateEntry(ctx context.Context, id string, patch EntryPatch, changeReason string) (*models.KnowledgeEntry, error) {
	if patch.ConfidenceLevel != nil && (*patch.ConfidenceLevel < 0 || *patch.ConfidenceLevel > 1) {
		return nil, &ValidationError{Field: "confidence_level", Reason: "must be within [0, 1]"}
	}
	if err := validateTags(patch.Tags); err != nil {
		return nil, err
	}

	var updated *models.KnowledgeEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getEntryTx(tx, id)
		if err != nil {
			return err
		}
		if !existing.IsActive {
			return fmt.Errorf("entry %s is inactive: %w", id, ErrNotFound)
		}

		now := time.Now().UTC()
		next := *existing
		next.Version = existing.Version + 1
		next.UpdatedAt = now

		if patch.Details != nil && *patch.Details != existing.Details {
			next.Details = *patch.Details
			next.HasEmbedding = false
		}
		if patch.ConfidenceLevel != nil {
			next.ConfidenceLevel = *patch.ConfidenceLevel
		}
		if patch.Tags != nil {
			next.Tags = patch.Tags
		}
		if len(patch.Hints) > 0 {
			merged := make(map[string]any, len(existing.Hints)+len(patch.Hints))
			for k, v := range existing.Hints {
				merged[k] = v
			}
			for k, v := range patch.Hints {
				merged[k] = v
			}
			next.Hints = merged
		}

		if err := updateEntryRow(tx, &next); err != nil {
			return err
		}
		if err := insertVersion(tx, &models.EntryVersion{
			EntryID:         id,
			VersionNumber:   next.Version,
			Details:         next.Details,
			ChangeReason:    changeReason,
			ConfidenceLevel: next.ConfidenceLevel,
			CreatedAt:       now,
		}); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetEntry fetches a single entry by id, active or not.
func (s *Store) GetEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	row := s.db.QueryRowContext(ctx, selectEntrySQL+" WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return entry, err
}

// GetEntries fetches entries by id, skipping inactive ones unless
// includeInactive is set. The result order mirrors the input ids.
func (s *Store) GetEntries(ctx context.Context, ids []string, includeInactive bool) ([]*models.KnowledgeEntry, error) {
	out := make([]*models.KnowledgeEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !entry.IsActive && !includeInactive {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// TouchAccessed batch-sets last_accessed on explicit retrieval. Search
// must never call this; only kb_get does.
func (s *Store) TouchAccessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec("UPDATE knowledge_entries SET last_accessed = ? WHERE id = ?", now, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetEmbeddingFlag records whether the entry currently has a vector row.
func (s *Store) SetEmbeddingFlag(ctx context.Context, id string, has bool) error {
	_, err := s.db.ExecContext(ctx, "UPDATE knowledge_entries SET has_embedding = ? WHERE id = ?", boolToInt(has), id)
	return err
}

// EntriesWithoutEmbeddings lists active entry ids still awaiting a vector.
func (s *Store) EntriesWithoutEmbeddings(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM knowledge_entries WHERE has_embedding = 0 AND is_active = 1 ORDER BY id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ActiveEntryIDs lists every active entry id in creation order.
func (s *Store) ActiveEntryIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM knowledge_entries WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// DeactivateEntry soft-deletes an entry. The row stays for history but
// disappears from search and retrieval.
func (s *Store) DeactivateEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	return s.setActive(ctx, id, false)
}

// ReactivateEntry reverses a soft delete.
func (s *Store) ReactivateEntry(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	return s.setActive(ctx, id, true)
}

func (s *Store) setActive(ctx context.Context, id string, active bool) (*models.KnowledgeEntry, error) {
	var entry *models.KnowledgeEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := getEntryTx(tx, id)
		if err != nil {
			return err
		}
		e.IsActive = active
		e.UpdatedAt = time.Now().UTC()
		if err := updateEntryRow(tx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PurgeInactive hard-deletes entries deactivated before the cutoff,
// together with their versions, vectors and graph rows. Returns the ids
// removed.
func (s *Store) PurgeInactive(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM knowledge_entries WHERE is_active = 0 AND updated_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	ids, err := scanIDs(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec("DELETE FROM knowledge_vec WHERE entry_id = ?", id); err != nil {
				return fmt.Errorf("purge vector %s: %w", id, err)
			}
			if _, err := tx.Exec("DELETE FROM graph_edges WHERE source = ? OR target = ?", id, id); err != nil {
				return fmt.Errorf("purge edges %s: %w", id, err)
			}
			if _, err := tx.Exec("DELETE FROM graph_nodes WHERE node_id = ?", id); err != nil {
				return fmt.Errorf("purge node %s: %w", id, err)
			}
			if _, err := tx.Exec("DELETE FROM entry_versions WHERE entry_id = ?", id); err != nil {
				return fmt.Errorf("purge versions %s: %w", id, err)
			}
			if _, err := tx.Exec("DELETE FROM knowledge_entries WHERE id = ?", id); err != nil {
				return fmt.Errorf("purge entry %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// EntryVersions returns the version history, oldest first.
func (s *Store) EntryVersions(ctx context.Context, id string) ([]*models.EntryVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, version_number, knowledge_details, COALESCE(change_reason, ''), confidence_level, created_at
		 FROM entry_versions WHERE entry_id = ? ORDER BY version_number`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.EntryVersion
	for rows.Next() {
		var v models.EntryVersion
		var created string
		if err := rows.Scan(&v.EntryID, &v.VersionNumber, &v.Details, &v.ChangeReason, &v.ConfidenceLevel, &created); err != nil {
			return nil, err
		}
		v.CreatedAt = parseTime(created)
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// -- row helpers --

const selectEntrySQL = `SELECT id, COALESCE(project_ref, ''), short_title, long_title,
	knowledge_details, entry_type, COALESCE(source_context, ''), confidence_level,
	tags, hints, created_at, updated_at, last_accessed, COALESCE(superseded_by, ''),
	is_active, has_embedding, version
	FROM knowledge_entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.KnowledgeEntry, error) {
	var (
		e                            models.KnowledgeEntry
		tags, hints, created, updated string
		lastAccessed                 sql.NullString
		active, hasEmbedding         int
	)
	err := row.Scan(&e.ID, &e.ProjectRef, &e.ShortTitle, &e.LongTitle, &e.Details,
		&e.EntryType, &e.SourceContext, &e.ConfidenceLevel, &tags, &hints,
		&created, &updated, &lastAccessed, &e.SupersededBy, &active, &hasEmbedding, &e.Version)
	if err != nil {
		return nil, err
	}
	e.Tags = splitTags(tags)
	if err := json.Unmarshal([]byte(hints), &e.Hints); err != nil {
		e.Hints = map[string]any{}
	}
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	if lastAccessed.Valid && lastAccessed.String != "" {
		t := parseTime(lastAccessed.String)
		e.LastAccessed = &t
	}
	e.IsActive = active != 0
	e.HasEmbedding = hasEmbedding != 0
	return &e, nil
}

func getEntryTx(tx *sql.Tx, id string) (*models.KnowledgeEntry, error) {
	entry, err := scanEntry(tx.QueryRow(selectEntrySQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return entry, err
}

func insertEntry(tx *sql.Tx, e *models.KnowledgeEntry) error {
	hints, err := marshalHints(e.Hints)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO knowledge_entries
		(id, project_ref, short_title, long_title, knowledge_details, entry_type,
		 source_context, confidence_level, tags, hints, created_at, updated_at,
		 last_accessed, superseded_by, is_active, has_embedding, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullable(e.ProjectRef), e.ShortTitle, e.LongTitle, e.Details, string(e.EntryType),
		nullable(e.SourceContext), e.ConfidenceLevel, joinTags(e.Tags), hints,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		nullableTime(e.LastAccessed), nullable(e.SupersededBy),
		boolToInt(e.IsActive), boolToInt(e.HasEmbedding), e.Version)
	return err
}

func updateEntryRow(tx *sql.Tx, e *models.KnowledgeEntry) error {
	hints, err := marshalHints(e.Hints)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE knowledge_entries SET
		project_ref=?, short_title=?, long_title=?, knowledge_details=?, entry_type=?,
		source_context=?, confidence_level=?, tags=?, hints=?, updated_at=?,
		superseded_by=?, is_active=?, has_embedding=?, version=?
		WHERE id=?`,
		nullable(e.ProjectRef), e.ShortTitle, e.LongTitle, e.Details, string(e.EntryType),
		nullable(e.SourceContext), e.ConfidenceLevel, joinTags(e.Tags), hints,
		formatTime(e.UpdatedAt), nullable(e.SupersededBy),
		boolToInt(e.IsActive), boolToInt(e.HasEmbedding), e.Version, e.ID)
	return err
}

func insertVersion(tx *sql.Tx, v *models.EntryVersion) error {
	_, err := tx.Exec(`INSERT INTO entry_versions
		(entry_id, version_number, knowledge_details, change_reason, confidence_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.EntryID, v.VersionNumber, v.Details, nullable(v.ChangeReason),
		v.ConfidenceLevel, formatTime(v.CreatedAt))
	return err
}

func validateFields(f EntryFields) error {
	if !models.ValidEntryType(string(f.EntryType)) {
		return &ValidationError{Field: "entry_type", Reason: fmt.Sprintf("unknown type %q", f.EntryType)}
	}
	if f.ConfidenceLevel < 0 || f.ConfidenceLevel > 1 {
		return &ValidationError{Field: "confidence_level", Reason: "must be within [0, 1]"}
	}
	if f.ShortTitle == "" || f.LongTitle == "" || f.Details == "" {
		return &ValidationError{Field: "entry", Reason: "short_title, long_title and knowledge_details are required"}
	}
	return validateTags(f.Tags)
}

func validateTags(tags []string) error {
	for _, t := range tags {
		if strings.ContainsAny(t, " \t\n") {
			return &ValidationError{Field: "tags", Reason: fmt.Sprintf("tag %q contains whitespace", t)}
		}
	}
	return nil
}

// Tags are stored as one space-joined string so FTS5 indexes them
// directly and the boundary-padded LIKE filter stays cheap.
func joinTags(tags []string) string   { return strings.Join(tags, " ") }
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Fields(raw)
}

func marshalHints(h map[string]any) (string, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("marshal hints: %w", err)
	}
	return string(b), nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanIDs(rows *sql.Rows) ([]string, error) {
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
