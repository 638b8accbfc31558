package domain

import (
	"fmt"
	"time"
)

// BookPosition is a book's current tradable state as seen by the allocator.
// The engine only reads snapshots; positions are mutated upstream as bets are
// placed or limits move.
type BookPosition struct {
	Book               string    `json:"book"`
	AvailableLiquidity float64   `json:"available_liquidity"`
	CurrentExposure    float64   `json:"current_exposure"`
	MaxBetSize         float64   `json:"max_bet_size"`
	MinBetSize         float64   `json:"min_bet_size"`
	ReliabilityScore   float64   `json:"reliability_score"` // 0-1
	RecentLimitChanges int       `json:"recent_limit_changes"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Validate checks the structural invariants of a book position.
func (p BookPosition) Validate() error {
	if p.Book == "" {
		return fmt.Errorf("book position: empty book identifier")
	}
	if p.ReliabilityScore < 0 || p.ReliabilityScore > 1 {
		return fmt.Errorf("book position %s: reliability score %.4f outside [0,1]", p.Book, p.ReliabilityScore)
	}
	if p.AvailableLiquidity < 0 {
		return fmt.Errorf("book position %s: negative available liquidity %.2f", p.Book, p.AvailableLiquidity)
	}
	if p.CurrentExposure < 0 {
		return fmt.Errorf("book position %s: negative current exposure %.2f", p.Book, p.CurrentExposure)
	}
	if p.MaxBetSize < p.MinBetSize {
		return fmt.Errorf("book position %s: max bet size %.2f below min bet size %.2f", p.Book, p.MaxBetSize, p.MinBetSize)
	}
	return nil
}

// OpenPosition is one open stake held at a book, used to derive the book's
// worst-case liability.
type OpenPosition struct {
	ID       string    `json:"id"`
	Book     string    `json:"book"`
	MarketID string    `json:"market_id"`
	Outcome  string    `json:"outcome"`
	Stake    float64   `json:"stake"`
	Odds     float64   `json:"odds"`
	PlacedAt time.Time `json:"placed_at"`
}
