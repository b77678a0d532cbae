package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/noustack/nous/internal/store"
	"github.com/noustack/nous/models"
)

const (
	// SparseThreshold activates hint collection when a result set has
	// fewer hits than this.
	SparseThreshold = 3
	// MaxHints caps the number of hints attached to a sparse result set.
	MaxHints = 3
	// hintFanOut bounds the neighbour lookup per result and per
	// intermediate node.
	hintFanOut = 10
)

// CollectGraphHints gathers graph-connected entries as "See also" hints
// for a sparse result set. For each result it walks one hop; non-entry
// intermediates (tags, concepts, ...) get a second hop to find entries
// connected through them. Entries already in the result set are never
// suggested, and only active entries qualify.
func CollectGraphHints(ctx context.Context, s *store.Store, results []*models.SearchResult) ([]string, error) {
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.Entry.ID] = true
	}

	var hints []string
	for _, r := range results {
		neighbors, err := s.Neighbors(ctx, r.Entry.ID, nil, "both", hintFanOut)
		if err != nil {
			return hints, err
		}
		for _, n := range neighbors {
			if !models.EntryIDPattern.MatchString(n.NodeID) {
				// Intermediate node - look one more hop for entries
				// connected through it.
				secondHop, err := s.Neighbors(ctx, n.NodeID, nil, "both", hintFanOut)
				if err != nil {
					return hints, err
				}
				for _, m := range secondHop {
					if seen[m.NodeID] || !models.EntryIDPattern.MatchString(m.NodeID) {
						continue
					}
					entry, ok, err := activeEntry(ctx, s, m.NodeID)
					if err != nil {
						return hints, err
					}
					if !ok {
						continue
					}
					seen[m.NodeID] = true
					hints = append(hints, formatHint(entry, n.NodeID))
					if len(hints) >= MaxHints {
						return hints, nil
					}
				}
			} else {
				if seen[n.NodeID] {
					continue
				}
				entry, ok, err := activeEntry(ctx, s, n.NodeID)
				if err != nil {
					return hints, err
				}
				if !ok {
					continue
				}
				seen[n.NodeID] = true
				hints = append(hints, formatHint(entry, fmt.Sprintf("%s from %s", n.EdgeType, r.Entry.ID)))
				if len(hints) >= MaxHints {
					return hints, nil
				}
			}
		}
	}
	return hints, nil
}

func activeEntry(ctx context.Context, s *store.Store, id string) (*models.KnowledgeEntry, bool, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !entry.IsActive {
		return nil, false, nil
	}
	return entry, true, nil
}

func formatHint(entry *models.KnowledgeEntry, via string) string {
	return fmt.Sprintf("See also: [%s] %s (via %s)", entry.ID, entry.LongTitle, via)
}
