package allocator

import "math"

// singleBetCap bounds any single Kelly-sized bet to a tenth of bankroll.
// Full Kelly on a strong edge recommends stakes no book would take and no
// sane bankroll should risk.
const singleBetCap = 0.1

// KellyStake sizes a single bet from the Kelly criterion: the edge over the
// offered odds, scaled by fraction and capped at 10% of bankroll. Returns 0
// when the estimated probability gives no edge.
func KellyStake(prob, odds, bankroll, fraction float64) float64 {
	if prob <= 0 || prob >= 1 || odds <= 1 || bankroll <= 0 || fraction <= 0 {
		return 0
	}
	b := odds - 1
	kelly := (b*prob - (1 - prob)) / b
	if kelly <= 0 {
		return 0
	}
	stake := bankroll * kelly * fraction
	if cap := bankroll * singleBetCap; stake > cap {
		stake = cap
	}
	return stake
}

// StakeAdjustment is one change needed to move a live position from its
// current stake to the newly recommended one.
type StakeAdjustment struct {
	Outcome string  `json:"outcome"`
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Delta   float64 `json:"delta"`
}

// Adjustments diffs current stakes against target stakes and returns the
// changes whose magnitude clears minChange. Tiny rebalances cost more in
// fees and limit attention than they recover.
func Adjustments(current, target map[string]float64, minChange float64) []StakeAdjustment {
	outcomes := make(map[string]bool, len(current)+len(target))
	for outcome := range current {
		outcomes[outcome] = true
	}
	for outcome := range target {
		outcomes[outcome] = true
	}

	var out []StakeAdjustment
	for outcome := range outcomes {
		from := current[outcome]
		to := target[outcome]
		delta := to - from
		if math.Abs(delta) < minChange {
			continue
		}
		out = append(out, StakeAdjustment{Outcome: outcome, From: from, To: to, Delta: delta})
	}
	return out
}
