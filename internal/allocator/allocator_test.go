package allocator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/surebot/surebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig() Config {
	return Config{
		Bankroll:         10000,
		MaxExposureRatio: 0.25,
		KellyFraction:    0.5,
		MinReliability:   0.7,
		MinProfitRate:    0.002,
		BalancePenalty:   0.5,
	}
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:         "opp-1",
		EventID:    "ev1",
		MarketID:   "mk1",
		Odds:       map[string]float64{"home": 2.1, "away": 2.2},
		Books:      map[string]string{"home": "bet365", "away": "pinnacle"},
		Bets: []domain.BetLeg{
			{Outcome: "home", Odds: 2.1, Source: "bet365"},
			{Outcome: "away", Odds: 2.2, Source: "pinnacle"},
		},
		ProfitPct:  7.44,
		RiskScore:  0.83,
		DetectedAt: time.Now(),
	}
}

func testPositions() map[string]domain.BookPosition {
	return map[string]domain.BookPosition{
		"bet365": {
			Book:               "bet365",
			AvailableLiquidity: 5000,
			MaxBetSize:         2000,
			MinBetSize:         10,
			ReliabilityScore:   0.9,
		},
		"pinnacle": {
			Book:               "pinnacle",
			AvailableLiquidity: 5000,
			MaxBetSize:         2000,
			MinBetSize:         10,
			ReliabilityScore:   0.95,
		},
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, defaultConfig().Validate())

	bad := Config{Bankroll: -1, MaxExposureRatio: 2, KellyFraction: 0, MinReliability: 1.5, MinProfitRate: -1, BalancePenalty: 2}
	err := bad.Validate()
	require.Error(t, err)
	// Every broken field is reported, not just the first.
	require.Contains(t, err.Error(), "bankroll")
	require.Contains(t, err.Error(), "exposure ratio")
	require.Contains(t, err.Error(), "kelly fraction")
	require.Contains(t, err.Error(), "min reliability")
	require.Contains(t, err.Error(), "profit rate")
	require.Contains(t, err.Error(), "balance penalty")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{}, testLogger())
	require.Error(t, err)
}

func TestAllocateEqualProfitWithinBudget(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	plan, err := a.Allocate(context.Background(), testOpportunity(), testPositions())
	require.NoError(t, err)

	// Budget is bankroll * exposure ratio * kelly fraction.
	require.InDelta(t, 10000*0.25*0.5, plan.TotalStake, 1e-6)
	require.Equal(t, "opp-1", plan.OpportunityID)
	require.NotEmpty(t, plan.ID)

	// Unconstrained sizing keeps the equal-profit property.
	payoutHome := plan.Stakes["home"] * 2.1
	payoutAway := plan.Stakes["away"] * 2.2
	require.InDelta(t, payoutHome, payoutAway, 1e-6)
	require.InDelta(t, payoutHome/plan.TotalStake-1, plan.MinProfitRate, 1e-6)
	require.Greater(t, plan.MinProfitRate, 0.002)
}

func TestAllocateUnknownBook(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	delete(positions, "pinnacle")

	_, err = a.Allocate(context.Background(), testOpportunity(), positions)
	require.ErrorIs(t, err, domain.ErrUnknownBook)
}

func TestAllocateUnreliableBook(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["bet365"]
	pos.ReliabilityScore = 0.5
	positions["bet365"] = pos

	_, err = a.Allocate(context.Background(), testOpportunity(), positions)
	require.ErrorIs(t, err, domain.ErrUnreliableBook)
}

func TestAllocateBalancesExposedBooks(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	baseline, err := a.Allocate(context.Background(), testOpportunity(), testPositions())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["bet365"]
	pos.CurrentExposure = 500 // every open liability in the system sits here
	positions["bet365"] = pos

	plan, err := a.Allocate(context.Background(), testOpportunity(), positions)
	require.NoError(t, err)

	// bet365 holds 100% of system-wide exposure, so at penalty 0.5 its leg
	// is halved before the re-solve spreads the smaller total back out. The
	// absolute exposure does not matter, only its share of the total.
	require.InDelta(t, baseline.TotalStake-baseline.Stakes["home"]*0.5, plan.TotalStake, 1e-6)
	require.InDelta(t, plan.Stakes["home"]*2.1, plan.Stakes["away"]*2.2, 1e-6)
}

func TestAllocateRestoresEqualProfitAfterBalancing(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["bet365"]
	pos.CurrentExposure = 300
	positions["bet365"] = pos
	pos = positions["pinnacle"]
	pos.CurrentExposure = 100
	positions["pinnacle"] = pos

	// Uneven haircuts (37.5% and 12.5%) skew the payouts far enough that
	// the raw balanced stakes would lose on the home outcome; the re-solve
	// spreads the reduced total back to an equal-profit split.
	plan, err := a.Allocate(context.Background(), testOpportunity(), positions)
	require.NoError(t, err)
	require.InDelta(t, plan.Stakes["home"]*2.1, plan.Stakes["away"]*2.2, 1e-6)
	require.Greater(t, plan.MinProfitRate, 0.002)
}

func TestAllocateTightBookCapFailsProfitFloor(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["bet365"]
	pos.MaxBetSize = 600
	positions["bet365"] = pos
	pos = positions["pinnacle"]
	pos.MaxBetSize = 200
	positions["pinnacle"] = pos

	// Both legs capped well below the equal-profit split; no redistribution
	// inside the caps keeps the worst outcome above the floor.
	_, err = a.Allocate(context.Background(), testOpportunity(), positions)
	require.ErrorIs(t, err, domain.ErrBelowMinProfit)
}

func TestAllocateClampsToBookLimits(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["bet365"]
	pos.MaxBetSize = 600 // below the unconstrained home stake
	positions["bet365"] = pos

	plan, err := a.Allocate(context.Background(), testOpportunity(), positions)
	require.NoError(t, err)
	require.InDelta(t, 600, plan.Stakes["home"], 1e-6)
	require.GreaterOrEqual(t, plan.MinProfitRate, 0.002)
}

func TestAllocateZeroLiquidityDropsLeg(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["bet365"]
	pos.AvailableLiquidity = 0
	positions["bet365"] = pos

	// The home leg is zeroed and the away leg stands alone; the profit
	// check only judges funded outcomes.
	plan, err := a.Allocate(context.Background(), testOpportunity(), positions)
	require.NoError(t, err)
	require.Zero(t, plan.Stakes["home"])
	require.Greater(t, plan.Stakes["away"], 0.0)
	require.InDelta(t, 2.2-1, plan.MinProfitRate, 1e-6)
}

func TestAllocateMinBetZeroesOneLeg(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["pinnacle"]
	pos.MinBetSize = 1000 // above the unconstrained away stake
	positions["pinnacle"] = pos

	plan, err := a.Allocate(context.Background(), testOpportunity(), positions)
	require.NoError(t, err)
	require.Zero(t, plan.Stakes["away"])
	require.InDelta(t, 2.1-1, plan.MinProfitRate, 1e-6)
}

func TestAllocateAllLegsBelowMinimumBet(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	for book, pos := range positions {
		pos.MinBetSize = 5000
		pos.MaxBetSize = 8000
		positions[book] = pos
	}

	_, err = a.Allocate(context.Background(), testOpportunity(), positions)
	require.ErrorIs(t, err, domain.ErrNoViableStake)
}

func TestAllocateInconsistentBetLimits(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["pinnacle"]
	pos.MinBetSize = 2000
	pos.MaxBetSize = 2000
	positions["pinnacle"] = pos

	_, err = a.Allocate(context.Background(), testOpportunity(), positions)
	require.ErrorIs(t, err, domain.ErrInvalidBook)
}

func TestAllocateZeroMaxBetRejected(t *testing.T) {
	a, err := New(defaultConfig(), testLogger())
	require.NoError(t, err)

	positions := testPositions()
	pos := positions["pinnacle"]
	pos.MaxBetSize = 0
	positions["pinnacle"] = pos

	// A zero maximum is not an unlimited book; it cannot clear its own
	// minimum and fails the limit consistency check.
	_, err = a.Allocate(context.Background(), testOpportunity(), positions)
	require.ErrorIs(t, err, domain.ErrInvalidBook)
}
