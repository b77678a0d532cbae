package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/noustack/nous/internal/confidence"
	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

// RRFK is the reciprocal rank fusion constant, the standard value from
// the literature.
const RRFK = 60

// OverFetchFactor is how many times the requested limit each candidate
// list is asked for before fusion.
const OverFetchFactor = 3

// Ranker fuses FTS and vector candidates, applies confidence decay and
// filters stale entries. Search never touches last_accessed.
type Ranker struct {
	Store    *store.Store
	Embedder *Embedder
}

// rankedList assigns zero-based ranks; input order is the rank order.
type rankedList []string

// RRFScores fuses any number of ranked candidate lists into per-entry
// scores: each list contributes 1/(K + rank + 1) for every entry it
// contains. The result is permutation-invariant in the list order.
func RRFScores(lists ...rankedList) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / float64(RRFK+rank+1)
		}
	}
	return scores
}

// Search executes a hybrid search: over-fetched FTS and (when the
// embedder is up) vector candidates fused via RRF, ranked entries
// loaded, decayed, and filtered.
func (r *Ranker) Search(ctx context.Context, q models.SearchQuery) ([]*models.SearchResult, error) {
	fetchLimit := q.Limit * OverFetchFactor

	ftsMatches, err := r.Store.FTSSearch(ctx, q.Query, store.FTSFilters{
		ProjectRef: q.ProjectRef,
		EntryType:  string(q.EntryType),
		Tags:       q.Tags,
	}, fetchLimit)
	if err != nil {
		slog.Warn("fts search failed", "query", q.Query, "error", err)
		ftsMatches = nil
	}

	var vecMatches []store.VectorMatch
	if r.Embedder != nil {
		if vec := r.Embedder.Embed(ctx, q.Query); vec != nil {
			vecMatches, err = r.Store.VectorSearch(ctx, vec, fetchLimit)
			if err != nil {
				slog.Warn("vector search failed", "error", err)
				vecMatches = nil
			}
		}
	}

	ftsList := make(rankedList, 0, len(ftsMatches))
	for _, m := range ftsMatches {
		ftsList = append(ftsList, m.EntryID)
	}
	vecList := make(rankedList, 0, len(vecMatches))
	for _, m := range vecMatches {
		vecList = append(vecList, m.EntryID)
	}

	scores := RRFScores(ftsList, vecList)

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j] // deterministic tie-break
	})
	if len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}

	matchSource := models.MatchSourceFTS
	if len(vecMatches) > 0 {
		matchSource = models.MatchSourceHybrid
	}

	now := time.Now().UTC()
	results := make([]*models.SearchResult, 0, len(ids))
	for _, id := range ids {
		entry, err := r.Store.GetEntry(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !entry.IsActive {
			continue
		}

		eff := confidence.EffectiveForEntry(entry, now)
		if !q.IncludeStale && eff < confidence.FilterThreshold {
			continue
		}

		results = append(results, &models.SearchResult{
			Entry:               entry,
			Score:               scores[id],
			EffectiveConfidence: eff,
			StalenessWarning:    confidence.StalenessWarning(eff, entry.EntryType),
			MatchSource:         matchSource,
		})
	}
	return results, nil
}
