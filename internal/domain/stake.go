package domain

import "time"

// StakePlan is the allocator's output for one accepted opportunity: the
// per-outcome stakes to place, sized so every funded outcome returns at
// least the configured minimum profit rate.
type StakePlan struct {
	ID            string             `json:"id"`
	OpportunityID string             `json:"opportunity_id"`
	Stakes        map[string]float64 `json:"stakes"` // outcome -> stake, >= 0
	TotalStake    float64            `json:"total_stake"`
	MinProfitRate float64            `json:"min_profit_rate"` // worst-case rate across funded outcomes
	CreatedAt     time.Time          `json:"created_at"`
}

// FundedOutcomes returns the outcomes carrying a positive stake.
func (p StakePlan) FundedOutcomes() []string {
	outcomes := make([]string, 0, len(p.Stakes))
	for outcome, stake := range p.Stakes {
		if stake > 0 {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes
}
