package types

// MCP tool parameter and response types for the knowledge base tools.

// EntryInput is one entry dict for kb_store_batch.
type EntryInput struct {
	ShortTitle      string         `json:"short_title" mcp:"Brief identifier for the entry (required)"`
	LongTitle       string         `json:"long_title" mcp:"Descriptive title (required)"`
	Details         string         `json:"knowledge_details" mcp:"Full content of the knowledge entry (required)"`
	EntryType       string         `json:"entry_type,omitempty" mcp:"factual_reference, decision, pattern_convention, lesson_learned"`
	ProjectRef      string         `json:"project_ref,omitempty" mcp:"Project tag/category for filtering"`
	SourceContext   string         `json:"source_context,omitempty" mcp:"Where this knowledge came from"`
	ConfidenceLevel *float64       `json:"confidence_level,omitempty" mcp:"Initial confidence score (0.0-1.0), default 0.9"`
	Tags            []string       `json:"tags,omitempty" mcp:"Freeform tags for categorization"`
	Hints           map[string]any `json:"hints,omitempty" mcp:"Structured hints for graph building (supersedes, related_entities, person, tool)"`
}

// StoreParams for kb_store: create, update or deactivate an entry.
type StoreParams struct {
	ShortTitle        string         `json:"short_title,omitempty" mcp:"Brief identifier for the entry"`
	LongTitle         string         `json:"long_title,omitempty" mcp:"Descriptive title"`
	Details           string         `json:"knowledge_details,omitempty" mcp:"Full content of the knowledge entry"`
	EntryType         string         `json:"entry_type,omitempty" mcp:"factual_reference, decision, pattern_convention, lesson_learned"`
	ProjectRef        string         `json:"project_ref,omitempty" mcp:"Project tag/category for filtering"`
	SourceContext     string         `json:"source_context,omitempty" mcp:"Where this knowledge came from"`
	ConfidenceLevel   *float64       `json:"confidence_level,omitempty" mcp:"Initial confidence (0.0-1.0). Decays over time by entry_type half-life: factual_reference 90d, decision 1y, pattern_convention 2y, lesson_learned 5y. Default 0.9"`
	Tags              []string       `json:"tags,omitempty" mcp:"Freeform tags for categorization"`
	Hints             map[string]any `json:"hints,omitempty" mcp:"Structured hints for graph building (supersedes, related_entities, person, tool)"`
	UpdateEntryID     string         `json:"update_entry_id,omitempty" mcp:"ID of existing entry to update (e.g. kb-00042)"`
	DeactivateEntryID string         `json:"deactivate_entry_id,omitempty" mcp:"ID of entry to deactivate (soft-delete, reversible via kb_maintain)"`
	ChangeReason      string         `json:"change_reason,omitempty" mcp:"Reason for update or deactivation"`
}

// StoreBatchParams for kb_store_batch.
type StoreBatchParams struct {
	Entries []EntryInput `json:"entries" mcp:"Entries to create (max 10)"`
}

// SearchParams for kb_search.
type SearchParams struct {
	Query        string   `json:"query" mcp:"Search query, natural language or keywords (required)"`
	ProjectRef   string   `json:"project_ref,omitempty" mcp:"Filter to a specific project"`
	EntryType    string   `json:"entry_type,omitempty" mcp:"Filter by entry type"`
	Tags         []string `json:"tags,omitempty" mcp:"Filter by tags (all must match)"`
	Limit        int      `json:"limit,omitempty" mcp:"Maximum results to return (1-50, default 10)"`
	IncludeStale bool     `json:"include_stale,omitempty" mcp:"Include entries with very low confidence"`
}

// GetParams for kb_get.
type GetParams struct {
	EntryIDs []string `json:"entry_ids" mcp:"Entry IDs to retrieve in full (max 20)"`
}

// AskParams for kb_ask.
type AskParams struct {
	Question string `json:"question" mcp:"Natural language question or keywords (required)"`
	Strategy string `json:"strategy,omitempty" mcp:"Query strategy: auto, decision_trace, timeline, related, connection"`
	Scope    string `json:"scope,omitempty" mcp:"Filter: project:X, tag:Y, entry ID, or node ID"`
	Target   string `json:"target,omitempty" mcp:"Second node for the connection strategy"`
	Limit    int    `json:"limit,omitempty" mcp:"Max results (1-50, default 20)"`
}

// SummarizeParams for kb_summarize.
type SummarizeParams struct {
	Question string `json:"question" mcp:"Natural language question (required)"`
	Scope    string `json:"scope,omitempty" mcp:"Optional filter (project:X, tag:Y, ...)"`
	Limit    int    `json:"limit,omitempty" mcp:"Max entries to retrieve (1-50, default 20)"`
}

// IngestParams for kb_ingest.
type IngestParams struct {
	Path       string `json:"path" mcp:"File or directory to ingest (required)"`
	ProjectRef string `json:"project_ref,omitempty" mcp:"Project to attribute extracted entries to"`
	Recursive  bool   `json:"recursive,omitempty" mcp:"Recurse into subdirectories"`
	DryRun     bool   `json:"dry_run,omitempty" mcp:"Preview extraction without storing anything"`
}

// MaintainParams for kb_maintain.
type MaintainParams struct {
	Action       string `json:"action" mcp:"stats, deactivate, reactivate, rebuild_embeddings, rebuild_graph, purge_inactive, vacuum, entry_versions"`
	EntryID      string `json:"entry_id,omitempty" mcp:"Entry ID for deactivate/reactivate/entry_versions"`
	Force        bool   `json:"force,omitempty" mcp:"Re-embed entries that already have embeddings"`
	DaysInactive int    `json:"days_inactive,omitempty" mcp:"Purge entries inactive for at least this many days (default 30)"`
	Confirm      bool   `json:"confirm,omitempty" mcp:"Required for purge_inactive"`
}

// EntrySummary is the compact entry representation in structured output.
type EntrySummary struct {
	ID                  string   `json:"id"`
	ShortTitle          string   `json:"short_title"`
	LongTitle           string   `json:"long_title,omitempty"`
	EntryType           string   `json:"entry_type"`
	ProjectRef          string   `json:"project_ref,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	Version             int      `json:"version"`
	EffectiveConfidence float64  `json:"effective_confidence"`
	StalenessWarning    string   `json:"staleness_warning,omitempty"`
	MatchSource         string   `json:"match_source,omitempty"`
}

// StoreResponse for kb_store and kb_store_batch.
type StoreResponse struct {
	Entries []EntrySummary `json:"entries"`
	Action  string         `json:"action"`
}

// SearchResponse for kb_search.
type SearchResponse struct {
	Results []EntrySummary `json:"results"`
	Hints   []string       `json:"hints,omitempty"`
	Note    string         `json:"note,omitempty"`
}

// GetResponse for kb_get.
type GetResponse struct {
	Entries []EntrySummary `json:"entries"`
	Missing []string       `json:"missing,omitempty"`
}

// AskResponse for kb_ask.
type AskResponse struct {
	Strategy string         `json:"strategy"`
	Results  []EntrySummary `json:"results"`
}

// SummarizeResponse for kb_summarize.
type SummarizeResponse struct {
	Answer string `json:"answer"`
}

// MaintainResponse for kb_maintain.
type MaintainResponse struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// IngestResponse for kb_ingest.
type IngestResponse struct {
	TotalFiles     int `json:"total_files"`
	Ingested       int `json:"ingested"`
	Skipped        int `json:"skipped"`
	Flagged        int `json:"flagged"`
	Errors         int `json:"errors"`
	Unchanged      int `json:"unchanged"`
	EntriesCreated int `json:"entries_created"`
}
