package models

import "time"

// IngestedFile records one file absorbed by the ingestion pipeline,
// keyed by its path. Content changes are detected via sha256.
type IngestedFile struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	NoteNodeID  string    `json:"note_node_id"`
	EntryIDs    []string  `json:"entry_ids"`
	Summary     string    `json:"summary"`
	FileSize    int64     `json:"file_size"`
	Extension   string    `json:"file_extension"`
	ProjectRef  string    `json:"project_ref,omitempty"`
	Redactions  []string  `json:"redactions,omitempty"`
	IngestedAt  time.Time `json:"ingested_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsActive    bool      `json:"is_active"`
}
