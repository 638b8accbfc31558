package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OddsFormat enumerates the price formats collectors may encounter upstream.
type OddsFormat string

const (
	OddsDecimal    OddsFormat = "decimal"
	OddsFractional OddsFormat = "fractional"
	OddsAmerican   OddsFormat = "american"
)

// ToDecimal converts a raw odds string in the given format to decimal odds.
// Fractional odds are written "num/den" (e.g. "5/2" -> 3.5); American odds
// are signed integers (+150 -> 2.5, -200 -> 1.5).
func ToDecimal(raw string, format OddsFormat) (float64, error) {
	raw = strings.TrimSpace(raw)
	switch format {
	case OddsDecimal:
		odds, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("odds: parse decimal %q: %w", raw, err)
		}
		return odds, nil

	case OddsFractional:
		num, den, ok := strings.Cut(raw, "/")
		if !ok {
			return 0, fmt.Errorf("odds: fractional %q: missing '/'", raw)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("odds: parse fractional numerator %q: %w", raw, err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("odds: parse fractional denominator %q: %w", raw, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("odds: fractional %q: zero denominator", raw)
		}
		return 1 + n/d, nil

	case OddsAmerican:
		v, err := strconv.ParseFloat(strings.TrimPrefix(raw, "+"), 64)
		if err != nil {
			return 0, fmt.Errorf("odds: parse american %q: %w", raw, err)
		}
		if v == 0 {
			return 0, fmt.Errorf("odds: american %q: zero line", raw)
		}
		if v > 0 {
			return 1 + v/100, nil
		}
		return 1 + 100/-v, nil

	default:
		return 0, fmt.Errorf("odds: unsupported format %q", format)
	}
}

// ImpliedProbability returns the market's estimate of an outcome's
// likelihood, the reciprocal of its decimal odds.
func ImpliedProbability(odds float64) float64 {
	return 1 / odds
}

// ConsensusProbability averages the implied probabilities quoted for the
// same outcome across books, a cheap estimate of the true probability.
func ConsensusProbability(odds []float64) float64 {
	if len(odds) == 0 {
		return 0
	}
	var sum float64
	for _, o := range odds {
		sum += 1 / o
	}
	return sum / float64(len(odds))
}

// Fresh reports whether every timestamp is within maxAge of now. Opportunities
// built from stale quotes are likely gone by the time anyone acts on them.
func Fresh(now time.Time, timestamps []time.Time, maxAge time.Duration) bool {
	for _, ts := range timestamps {
		if now.Sub(ts) > maxAge {
			return false
		}
	}
	return true
}

// EqualProfitStakes splits total across outcomes so each bet returns the
// same payout: unit = total / Σ(1/odds), stake = unit / odds. The resulting
// stakes sum to total and guarantee identical profit whichever outcome wins.
func EqualProfitStakes(odds map[string]float64, total float64) map[string]float64 {
	var invSum float64
	for _, o := range odds {
		invSum += 1 / o
	}
	stakes := make(map[string]float64, len(odds))
	if invSum == 0 {
		return stakes
	}
	unit := total / invSum
	for outcome, o := range odds {
		stakes[outcome] = unit / o
	}
	return stakes
}
