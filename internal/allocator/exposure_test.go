package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surebot/surebot/internal/domain"
)

func TestLiability(t *testing.T) {
	require.Equal(t, 0.0, Liability(nil))

	positions := []domain.OpenPosition{
		{Book: "bet365", Outcome: "home", Stake: 100, Odds: 2.1},
		{Book: "bet365", Outcome: "away", Stake: 95, Odds: 2.2},
	}

	// Largest payout is 100*2.1=210; 195 already staked covers most of it.
	require.InDelta(t, 210-195, Liability(positions), 1e-9)
}

func TestLiabilityFullyCovered(t *testing.T) {
	positions := []domain.OpenPosition{
		{Book: "betfair", Outcome: "home", Stake: 100, Odds: 1.5},
		{Book: "betfair", Outcome: "away", Stake: 100, Odds: 1.6},
	}

	// Stakes exceed any single payout; no money is at risk.
	require.LessOrEqual(t, Liability(positions), 0.0)
}

func TestLiabilityByBook(t *testing.T) {
	positions := []domain.OpenPosition{
		{Book: "bet365", Outcome: "home", Stake: 100, Odds: 2.1},
		{Book: "bet365", Outcome: "away", Stake: 95, Odds: 2.2},
		{Book: "pinnacle", Outcome: "home", Stake: 50, Odds: 3.0},
	}

	byBook := LiabilityByBook(positions)
	require.Len(t, byBook, 2)
	require.InDelta(t, 15, byBook["bet365"], 1e-9)
	require.InDelta(t, 100, byBook["pinnacle"], 1e-9)
}
