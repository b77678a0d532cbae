package models

import "time"

// InitialChangeReason is recorded on version 1 of every entry.
const InitialChangeReason = "Initial creation"

// EntryVersion is a snapshot of an entry's state after a write.
// Version 1 captures the state at creation; version N captures the
// state the Nth write produced.
type EntryVersion struct {
	EntryID         string    `json:"entry_id" validate:"required"`
	VersionNumber   int       `json:"version_number" validate:"gte=1"`
	Details         string    `json:"knowledge_details"`
	ChangeReason    string    `json:"change_reason,omitempty"`
	ConfidenceLevel float64   `json:"confidence_level" validate:"gte=0,lte=1"`
	CreatedAt       time.Time `json:"created_at"`
}
