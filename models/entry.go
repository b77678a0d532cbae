package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EntryType classifies a knowledge entry and governs its decay half-life.
type EntryType string

const (
	TypeFactualReference  EntryType = "factual_reference"
	TypeDecision          EntryType = "decision"
	TypePatternConvention EntryType = "pattern_convention"
	TypeLessonLearned     EntryType = "lesson_learned"
)

// EntryTypes lists every valid entry type.
var EntryTypes = []EntryType{
	TypeFactualReference,
	TypeDecision,
	TypePatternConvention,
	TypeLessonLearned,
}

// ValidEntryType reports whether s names a known entry type.
func ValidEntryType(s string) bool {
	for _, t := range EntryTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// EntryIDPattern matches well-formed entry IDs (kb-00042).
var EntryIDPattern = regexp.MustCompile(`^kb-\d{5}$`)

// KnowledgeEntry is the atomic unit of stored knowledge.
type KnowledgeEntry struct {
	ID              string         `json:"id" validate:"required"`
	ProjectRef      string         `json:"project_ref,omitempty"`
	ShortTitle      string         `json:"short_title" validate:"required"`
	LongTitle       string         `json:"long_title" validate:"required"`
	Details         string         `json:"knowledge_details" validate:"required"`
	EntryType       EntryType      `json:"entry_type" validate:"required,oneof=factual_reference decision pattern_convention lesson_learned"`
	SourceContext   string         `json:"source_context,omitempty"`
	ConfidenceLevel float64        `json:"confidence_level" validate:"gte=0,lte=1"`
	Tags            []string       `json:"tags,omitempty" validate:"dive,excludesall=0x20"`
	Hints           map[string]any `json:"hints,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	LastAccessed    *time.Time     `json:"last_accessed,omitempty"`
	SupersededBy    string         `json:"superseded_by,omitempty"`
	IsActive        bool           `json:"is_active"`
	HasEmbedding    bool           `json:"has_embedding"`
	Version         int            `json:"version"`
}

// EmbeddingText is the text fed to the embedding model.
func (e *KnowledgeEntry) EmbeddingText() string {
	return e.ShortTitle + " " + e.LongTitle + " " + e.Details
}

// DecayAnchor is the timestamp confidence decay is measured from:
// the most recent of updated_at and last_accessed.
func (e *KnowledgeEntry) DecayAnchor() time.Time {
	anchor := e.UpdatedAt
	if anchor.IsZero() {
		anchor = e.CreatedAt
	}
	if e.LastAccessed != nil && e.LastAccessed.After(anchor) {
		anchor = *e.LastAccessed
	}
	return anchor
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
