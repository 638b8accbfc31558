// Package engine implements the arbitrage detection core: odds-matrix
// construction, best-price selection, inverse-odds scanning, risk scoring,
// and opportunity validation. Everything here is pure CPU-bound arithmetic;
// the only shared state is the processed-market set.
package engine

import (
	"sort"

	"github.com/surebot/surebot/internal/domain"
)

// OddsMatrix maps outcome -> source -> decimal odds for one event market.
// It is built fresh per detection pass and never persisted.
type OddsMatrix map[string]map[string]float64

// BestPrice is the maximum odds seen for one outcome and the source that
// offered it.
type BestPrice struct {
	Odds   float64
	Source string
}

// BestPriceSet maps outcome -> best price. Outcomes with zero quotes are
// absent rather than zero-valued.
type BestPriceSet map[string]BestPrice

// BuildOddsMatrix folds per-source quote groups into an outcome-keyed odds
// matrix. An outcome no source quoted is simply absent; that is not an error.
func BuildOddsMatrix(groups []domain.QuoteGroup) OddsMatrix {
	matrix := make(OddsMatrix)
	for _, g := range groups {
		for _, oo := range g.Odds {
			row, ok := matrix[oo.Outcome]
			if !ok {
				row = make(map[string]float64)
				matrix[oo.Outcome] = row
			}
			row[g.Source] = oo.Odds
		}
	}
	return matrix
}

// BestPrices selects the maximum odds per outcome. Ties are broken by the
// lexicographically smallest source id so selection is deterministic
// regardless of map iteration order.
func (m OddsMatrix) BestPrices() BestPriceSet {
	best := make(BestPriceSet, len(m))
	for outcome, row := range m {
		if len(row) == 0 {
			continue
		}
		sources := make([]string, 0, len(row))
		for source := range row {
			sources = append(sources, source)
		}
		sort.Strings(sources)

		var pick BestPrice
		for _, source := range sources {
			if odds := row[source]; odds > pick.Odds {
				pick = BestPrice{Odds: odds, Source: source}
			}
		}
		best[outcome] = pick
	}
	return best
}

// InverseSum returns the sum of reciprocal best odds across all outcomes.
// A sum strictly below 1 indicates an arbitrage.
func (s BestPriceSet) InverseSum() float64 {
	var sum float64
	for _, bp := range s {
		sum += 1 / bp.Odds
	}
	return sum
}

// Outcomes returns the outcome labels in sorted order.
func (s BestPriceSet) Outcomes() []string {
	outcomes := make([]string, 0, len(s))
	for outcome := range s {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	return outcomes
}

// Sources returns the distinct sources offering a best price, sorted.
func (s BestPriceSet) Sources() []string {
	seen := make(map[string]bool, len(s))
	for _, bp := range s {
		seen[bp.Source] = true
	}
	sources := make([]string, 0, len(seen))
	for source := range seen {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}
