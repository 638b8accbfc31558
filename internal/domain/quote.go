package domain

import "time"

// Quote is one source's price for one outcome of one market at one instant.
// Quotes are immutable once recorded; a newer quote from the same source
// supersedes an older one rather than mutating it.
type Quote struct {
	EventID   string    `json:"event_id"`
	MarketID  string    `json:"market_id"`
	Outcome   string    `json:"outcome"`
	Odds      float64   `json:"odds"` // decimal odds, > 1.0
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// OutcomeOdds is a single (outcome, decimal odds) pair inside a QuoteGroup.
type OutcomeOdds struct {
	Outcome string  `json:"outcome"`
	Odds    float64 `json:"odds"`
}

// QuoteGroup is one source's full set of prices for one event market, as
// delivered by a collector. Collectors are responsible for normalizing odds
// to decimal format before publishing.
type QuoteGroup struct {
	Source     string        `json:"source"`
	EventID    string        `json:"event_id"`
	EventName  string        `json:"event_name"`
	MarketID   string        `json:"market_id"`
	MarketType string        `json:"market_type,omitempty"`
	Odds       []OutcomeOdds `json:"odds"`
	Timestamp  time.Time     `json:"timestamp"`
}

// DefaultMarketType is assumed when a collector omits the market type.
const DefaultMarketType = "match_odds"

// MarketKey returns the event+market identity used for grouping and
// de-duplication.
func (g QuoteGroup) MarketKey() string {
	return g.EventID + ":" + g.MarketID
}
