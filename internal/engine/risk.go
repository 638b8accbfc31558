package engine

import (
	"fmt"

	"github.com/surebot/surebot/internal/domain"
)

// sourcePenalty is the confidence discount applied per additional distinct
// source involved in an opportunity. More legs means more chances for one
// book to void or reprice before all bets land.
const sourcePenalty = 0.1

// Scorer derives a 0-1 confidence score for acting on an opportunity from
// per-source reliability weights. The table is injected at construction;
// sources absent from it are an error, never a silent default.
type Scorer struct {
	reliability map[string]float64
}

// NewScorer builds a Scorer from a source -> reliability table. Every weight
// must lie in [0,1].
func NewScorer(reliability map[string]float64) (*Scorer, error) {
	if len(reliability) == 0 {
		return nil, fmt.Errorf("risk: empty reliability table")
	}
	table := make(map[string]float64, len(reliability))
	for source, w := range reliability {
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("risk: reliability for %q is %.4f, must be in [0,1]", source, w)
		}
		table[source] = w
	}
	return &Scorer{reliability: table}, nil
}

// Score computes the mean reliability of the involved sources discounted by
// 10% per additional distinct source. The sources slice carries one entry
// per outcome, so a source backing two legs counts twice in the mean but
// once in the discount. The discount is floored at zero: an opportunity
// spread over too many books scores 0 and fails the confidence gate rather
// than going negative.
func (s *Scorer) Score(sources []string) (float64, error) {
	if len(sources) == 0 {
		return 0, fmt.Errorf("risk: no sources to score")
	}

	distinct := make(map[string]bool, len(sources))
	var sum float64
	for _, source := range sources {
		w, ok := s.reliability[source]
		if !ok {
			return 0, fmt.Errorf("risk: %w: %q", domain.ErrUnknownSource, source)
		}
		sum += w
		distinct[source] = true
	}
	avg := sum / float64(len(sources))

	factor := 1 - sourcePenalty*float64(len(distinct)-1)
	if factor < 0 {
		factor = 0
	}
	return avg * factor, nil
}

// Known reports whether every source is present in the reliability table.
func (s *Scorer) Known(sources []string) bool {
	for _, source := range sources {
		if _, ok := s.reliability[source]; !ok {
			return false
		}
	}
	return true
}
