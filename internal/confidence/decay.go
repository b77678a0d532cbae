// Package confidence implements type-sensitive exponential confidence
// decay: effective = base * 2^(-age_days / half_life(type)).
package confidence

import (
	"fmt"
	"math"
	"time"

	"github.com/noustack/nous/models"
)

// Half-life in days per entry type.
var HalfLives = map[models.EntryType]float64{
	models.TypeFactualReference:  90,   // facts go stale fast
	models.TypeDecision:          365,  // decisions persist but context shifts
	models.TypePatternConvention: 730,  // conventions are durable
	models.TypeLessonLearned:     1825, // hard-won lessons stick
}

const (
	// StalenessThreshold attaches a warning below this value.
	StalenessThreshold = 0.5
	// FilterThreshold excludes search results below this value unless
	// include_stale is requested.
	FilterThreshold = 0.3
)

// Effective computes confidence after time-based decay. The anchor is
// the entry's most recent touch (max of updated_at and last_accessed);
// retrieval and editing both reset the clock.
func Effective(base float64, entryType models.EntryType, anchor, now time.Time) float64 {
	ageDays := now.Sub(anchor).Hours() / 24
	if ageDays <= 0 {
		return base
	}
	halfLife, ok := HalfLives[entryType]
	if !ok {
		return base
	}
	eff := base * math.Pow(2, -ageDays/halfLife)
	return math.Round(eff*10000) / 10000
}

// EffectiveForEntry applies Effective to an entry's own anchor.
func EffectiveForEntry(e *models.KnowledgeEntry, now time.Time) float64 {
	return Effective(e.ConfidenceLevel, e.EntryType, e.DecayAnchor(), now)
}

// StalenessWarning returns a warning string when effective confidence
// has decayed below the staleness threshold, else "".
func StalenessWarning(effective float64, entryType models.EntryType) string {
	if effective >= StalenessThreshold {
		return ""
	}
	return fmt.Sprintf("Stale %s entry (confidence: %.0f%%). Consider verifying this information is still current.",
		entryType, effective*100)
}
