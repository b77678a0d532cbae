package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS knowledge_entries (
	id TEXT PRIMARY KEY,
	project_ref TEXT,
	short_title TEXT NOT NULL,
	long_title TEXT NOT NULL,
	knowledge_details TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	source_context TEXT,
	confidence_level REAL NOT NULL DEFAULT 0.9,
	tags TEXT NOT NULL DEFAULT '',
	hints TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_accessed TEXT,
	superseded_by TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	has_embedding INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_entries_project ON knowledge_entries(project_ref);
CREATE INDEX IF NOT EXISTS idx_entries_type ON knowledge_entries(entry_type);
CREATE INDEX IF NOT EXISTS idx_entries_active ON knowledge_entries(is_active);

CREATE TABLE IF NOT EXISTS entry_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id TEXT NOT NULL REFERENCES knowledge_entries(id),
	version_number INTEGER NOT NULL,
	knowledge_details TEXT NOT NULL,
	change_reason TEXT,
	confidence_level REAL NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(entry_id, version_number)
);

CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
	short_title,
	long_title,
	knowledge_details,
	tags,
	content='knowledge_entries',
	content_rowid='rowid',
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS knowledge_fts_ai AFTER INSERT ON knowledge_entries BEGIN
	INSERT INTO knowledge_fts(rowid, short_title, long_title, knowledge_details, tags)
	VALUES (new.rowid, new.short_title, new.long_title, new.knowledge_details, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS knowledge_fts_ad AFTER DELETE ON knowledge_entries BEGIN
	INSERT INTO knowledge_fts(knowledge_fts, rowid, short_title, long_title, knowledge_details, tags)
	VALUES ('delete', old.rowid, old.short_title, old.long_title, old.knowledge_details, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS knowledge_fts_au AFTER UPDATE ON knowledge_entries BEGIN
	INSERT INTO knowledge_fts(knowledge_fts, rowid, short_title, long_title, knowledge_details, tags)
	VALUES ('delete', old.rowid, old.short_title, old.long_title, old.knowledge_details, old.tags);
	INSERT INTO knowledge_fts(rowid, short_title, long_title, knowledge_details, tags)
	VALUES (new.rowid, new.short_title, new.long_title, new.knowledge_details, new.tags);
END;

CREATE TABLE IF NOT EXISTS entry_id_seq (
	next_id INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS graph_nodes (
	node_id TEXT PRIMARY KEY,
	node_type TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_type ON graph_nodes(node_type);

CREATE TABLE IF NOT EXISTS graph_edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL REFERENCES graph_nodes(node_id),
	target TEXT NOT NULL REFERENCES graph_nodes(node_id),
	edge_type TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	UNIQUE(source, target, edge_type)
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON graph_edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON graph_edges(target);
CREATE INDEX IF NOT EXISTS idx_edges_type ON graph_edges(edge_type);

CREATE TABLE IF NOT EXISTS ingested_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	content_hash TEXT NOT NULL,
	note_node_id TEXT NOT NULL,
	entry_ids TEXT NOT NULL DEFAULT '[]',
	summary TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	file_extension TEXT NOT NULL,
	project_ref TEXT,
	redactions TEXT NOT NULL DEFAULT '[]',
	ingested_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);
`

const schemaVersion = 1

func (s *Store) applySchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return err
	}

	vecSQL := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_vec USING vec0(
	entry_id TEXT PRIMARY KEY,
	embedding FLOAT[%d] distance_metric=cosine
)`, s.dim)
	if _, err := s.db.Exec(vecSQL); err != nil {
		return fmt.Errorf("create vec table: %w", err)
	}

	// Seed the id sequence exactly once.
	if _, err := s.db.Exec(
		"INSERT INTO entry_id_seq (next_id) SELECT 1 WHERE NOT EXISTS (SELECT 1 FROM entry_id_seq)",
	); err != nil {
		return err
	}

	var v int
	switch err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&v); {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		return err
	default:
		return err
	}
}
