package domain

import (
	"fmt"
	"time"
)

// BetLeg is a single bet to place at one source to realize an opportunity.
type BetLeg struct {
	Outcome string  `json:"outcome"`
	Odds    float64 `json:"odds"`
	Stake   float64 `json:"stake"`
	Source  string  `json:"source"`
}

// Opportunity is a detected arbitrage: a set of best prices across sources
// whose reciprocal odds sum below 1, together with the equal-profit bet legs
// that realize the guaranteed profit. It is the hand-off contract to the
// persistence and presentation layers.
type Opportunity struct {
	ID          string             `json:"id"`
	EventID     string             `json:"event_id"`
	EventName   string             `json:"event_name"`
	MarketID    string             `json:"market_id"`
	MarketType  string             `json:"market_type"`
	Odds        map[string]float64 `json:"odds"`  // outcome -> best decimal odds
	Books       map[string]string  `json:"books"` // outcome -> source offering those odds
	Bets        []BetLeg           `json:"bets"`
	TotalStake  float64            `json:"total_stake"`
	ProfitPct   float64            `json:"profit_pct"`
	RiskScore   float64            `json:"risk_score"` // 0-1 confidence
	Sources     []string           `json:"sources"`    // distinct sources involved
	DetectedAt  time.Time          `json:"detected_at"`
	SettledAt   *time.Time         `json:"settled_at,omitempty"`
}

// Validate checks the structural invariants: every outcome has both odds and
// a source attribution, the risk score is in [0,1], and the profit percentage
// is consistent with the implied probability.
func (o Opportunity) Validate() error {
	if len(o.Odds) == 0 {
		return fmt.Errorf("opportunity %s: no outcomes", o.ID)
	}
	if len(o.Odds) != len(o.Books) {
		return fmt.Errorf("opportunity %s: odds cover %d outcomes but books cover %d", o.ID, len(o.Odds), len(o.Books))
	}
	for outcome := range o.Odds {
		if _, ok := o.Books[outcome]; !ok {
			return fmt.Errorf("opportunity %s: outcome %q has odds but no book", o.ID, outcome)
		}
	}
	if o.RiskScore < 0 || o.RiskScore > 1 {
		return fmt.Errorf("opportunity %s: risk score %.4f outside [0,1]", o.ID, o.RiskScore)
	}
	if o.ProfitPct > 0 && !o.IsArbitrage() {
		return fmt.Errorf("opportunity %s: positive profit %.4f%% but implied probability >= 1", o.ID, o.ProfitPct)
	}
	return nil
}

// ImpliedProbability returns the sum of reciprocal odds across all outcomes.
// Values below 1 indicate a guaranteed-profit price set.
func (o Opportunity) ImpliedProbability() float64 {
	var sum float64
	for _, odds := range o.Odds {
		sum += 1 / odds
	}
	return sum
}

// IsArbitrage reports whether the price set guarantees profit regardless of
// outcome.
func (o Opportunity) IsArbitrage() bool {
	return o.ImpliedProbability() < 1
}
