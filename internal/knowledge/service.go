// Package knowledge wires the core subsystems into the store/update
// pipeline and the ask strategies consumed by the MCP tools.
package knowledge

import (
	"context"
	"log/slog"

	"github.com/noustack/nous/internal/graph"
	"github.com/noustack/nous/internal/llm"
	"github.com/noustack/nous/internal/search"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

// Service bundles the retrieval core. All fields except Store may be
// nil; a nil dependency disables its feature and the pipeline degrades.
type Service struct {
	Store    *store.Store
	Embedder *search.Embedder
	Builder  *graph.Builder
	Enricher *graph.Enricher
	Ranker   *search.Ranker
	Queries  *graph.Queries
	Planner  *graph.Planner
	QueryLLM llm.Provider
}

// NewService assembles a service around an open store.
func NewService(s *store.Store, embedder *search.Embedder, extractionLLM, queryLLM llm.Provider, matchThreshold float64) *Service {
	svc := &Service{
		Store:    s,
		Embedder: embedder,
		Builder:  &graph.Builder{Store: s},
		Ranker:   &search.Ranker{Store: s, Embedder: embedder},
		Queries:  &graph.Queries{Store: s},
		QueryLLM: queryLLM,
	}
	if extractionLLM != nil {
		svc.Enricher = &graph.Enricher{Store: s, LLM: extractionLLM, MatchThreshold: matchThreshold}
	}
	if queryLLM != nil {
		svc.Planner = &graph.Planner{Store: s, Queries: svc.Queries, LLM: queryLLM}
	}
	return svc
}

// CreateEntry runs the full store pipeline: entry commit, embedding,
// deterministic graph, LLM enrichment. Only the commit can fail the
// operation; later steps log and continue, and each subsequent step
// still runs after a failure.
func (s *Service) CreateEntry(ctx context.Context, fields store.EntryFields) (*models.KnowledgeEntry, error) {
	entry, err := s.Store.CreateEntry(ctx, fields)
	if err != nil {
		return nil, err
	}
	s.postCommit(ctx, entry, true)
	return s.refresh(ctx, entry)
}

// UpdateEntry runs the same pipeline for an update.
func (s *Service) UpdateEntry(ctx context.Context, id string, patch store.EntryPatch, reason string) (*models.KnowledgeEntry, error) {
	entry, err := s.Store.UpdateEntry(ctx, id, patch, reason)
	if err != nil {
		return nil, err
	}
	s.postCommit(ctx, entry, true)
	return s.refresh(ctx, entry)
}

// CreateBatch stores several entries, then enriches them with a single
// batched LLM call.
func (s *Service) CreateBatch(ctx context.Context, fieldsList []store.EntryFields) ([]*models.KnowledgeEntry, error) {
	created := make([]*models.KnowledgeEntry, 0, len(fieldsList))
	for _, fields := range fieldsList {
		entry, err := s.Store.CreateEntry(ctx, fields)
		if err != nil {
			return created, err
		}
		s.postCommit(ctx, entry, false)
		created = append(created, entry)
	}

	if s.Enricher != nil && len(created) > 0 {
		if _, err := s.Enricher.EnrichBatch(ctx, created); err != nil {
			slog.Warn("batch enrichment failed", "error", err)
		}
	}

	out := make([]*models.KnowledgeEntry, 0, len(created))
	for _, entry := range created {
		refreshed, err := s.refresh(ctx, entry)
		if err != nil {
			return out, err
		}
		out = append(out, refreshed)
	}
	return out, nil
}

// postCommit runs the embed, graph-build and (optionally) enrich steps.
// Failures are logged and swallowed: the entry is already durably
// stored and searchable via FTS.
func (s *Service) postCommit(ctx context.Context, entry *models.KnowledgeEntry, enrich bool) {
	s.EmbedEntry(ctx, entry)

	if err := s.Builder.BuildForEntry(ctx, entry); err != nil {
		slog.Warn("graph build failed", "entry", entry.ID, "error", err)
	}

	if enrich && s.Enricher != nil {
		if _, err := s.Enricher.EnrichEntry(ctx, entry); err != nil {
			slog.Warn("graph enrichment failed", "entry", entry.ID, "error", err)
		}
	}
}

// EmbedEntry generates and stores the entry's vector when the embedder
// is up, flipping has_embedding on success.
func (s *Service) EmbedEntry(ctx context.Context, entry *models.KnowledgeEntry) {
	if s.Embedder == nil {
		return
	}
	vec := s.Embedder.Embed(ctx, entry.EmbeddingText())
	if vec == nil {
		return
	}
	if err := s.Store.VectorStore(ctx, entry.ID, vec); err != nil {
		slog.Warn("vector write failed", "entry", entry.ID, "error", err)
		return
	}
	if err := s.Store.SetEmbeddingFlag(ctx, entry.ID, true); err != nil {
		slog.Warn("embedding flag update failed", "entry", entry.ID, "error", err)
	}
}

// Deactivate soft-deletes an entry and removes its outgoing edges so it
// drops out of traversals.
func (s *Service) Deactivate(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	entry, err := s.Store.DeactivateEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Store.ClearOutgoingEdges(ctx, id); err != nil {
		slog.Warn("edge cleanup failed on deactivate", "entry", id, "error", err)
	}
	return entry, nil
}

// Reactivate reverses a soft delete and rebuilds the entry's index and
// graph presence.
func (s *Service) Reactivate(ctx context.Context, id string) (*models.KnowledgeEntry, error) {
	entry, err := s.Store.ReactivateEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.postCommit(ctx, entry, true)
	return s.refresh(ctx, entry)
}

// Search runs the hybrid ranker and, for sparse result sets, collects
// graph hints.
func (s *Service) Search(ctx context.Context, q models.SearchQuery) ([]*models.SearchResult, []string, error) {
	results, err := s.Ranker.Search(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	var hints []string
	if len(results) < search.SparseThreshold {
		hints, err = search.CollectGraphHints(ctx, s.Store, results)
		if err != nil {
			slog.Warn("graph hint collection failed", "error", err)
			hints = nil
		}
	}
	return results, hints, nil
}

func (s *Service) refresh(ctx context.Context, entry *models.KnowledgeEntry) (*models.KnowledgeEntry, error) {
	refreshed, err := s.Store.GetEntry(ctx, entry.ID)
	if err != nil {
		return entry, nil
	}
	return refreshed, nil
}
