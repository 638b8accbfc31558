package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surebot/surebot/internal/domain"
)

func TestOptimizeUnconstrained(t *testing.T) {
	odds := map[string]float64{"home": 2.1, "away": 2.2}

	stakes, err := Optimize(odds, 100, nil, nil)
	require.NoError(t, err)

	var total float64
	for _, s := range stakes {
		total += s
	}
	require.InDelta(t, 100, total, 1e-2)
	require.InDelta(t, stakes["home"]*2.1, stakes["away"]*2.2, 1e-2)
}

func TestOptimizeMinimumBinds(t *testing.T) {
	odds := map[string]float64{"home": 2.1, "away": 2.2}
	// Unconstrained home stake is ~51.16; force it up to 53.
	minStake := map[string]float64{"home": 53}

	stakes, err := Optimize(odds, 100, minStake, nil)
	require.NoError(t, err)
	require.InDelta(t, 53, stakes["home"], 1e-6)
	require.InDelta(t, 47, stakes["away"], 1e-6)
}

func TestOptimizeMaximumBinds(t *testing.T) {
	odds := map[string]float64{"home": 2.1, "away": 2.2}
	maxStake := map[string]float64{"home": 49}

	stakes, err := Optimize(odds, 100, nil, maxStake)
	require.NoError(t, err)
	require.InDelta(t, 49, stakes["home"], 1e-6)
	require.InDelta(t, 51, stakes["away"], 1e-6)
}

func TestOptimizeThreeOutcomes(t *testing.T) {
	odds := map[string]float64{"home": 3.0, "draw": 3.6, "away": 3.2}
	minStake := map[string]float64{"draw": 32}

	stakes, err := Optimize(odds, 100, minStake, nil)
	require.NoError(t, err)

	var total float64
	for _, s := range stakes {
		total += s
	}
	require.InDelta(t, 100, total, 1e-6)
	require.GreaterOrEqual(t, stakes["draw"], 32.0)
	// The unpinned outcomes keep the equal-profit property among themselves.
	require.InDelta(t, stakes["home"]*3.0, stakes["away"]*3.2, 1e-6)
}

func TestOptimizeMinStakeBreaksProfitFloor(t *testing.T) {
	odds := map[string]float64{"home": 2.0, "away": 2.0}
	// Pinning home at 80 leaves away paying out 40 on a 100 outlay; a split
	// that loses 60% when away wins is no arbitrage.
	minStake := map[string]float64{"home": 80}

	_, err := Optimize(odds, 100, minStake, nil)
	require.ErrorIs(t, err, domain.ErrBelowMinProfit)
}

func TestOptimizeInfeasibleMinimums(t *testing.T) {
	odds := map[string]float64{"home": 2.1, "away": 2.2}
	// Minimums alone exceed the total: no feasible split exists.
	minStake := map[string]float64{"home": 60, "away": 50}

	_, err := Optimize(odds, 100, minStake, nil)
	require.ErrorIs(t, err, domain.ErrInfeasibleBounds)
}

func TestOptimizeInfeasibleMaximums(t *testing.T) {
	odds := map[string]float64{"home": 2.1, "away": 2.2}
	// Maximums cap the total below what must be allocated.
	maxStake := map[string]float64{"home": 30, "away": 30}

	_, err := Optimize(odds, 100, nil, maxStake)
	require.ErrorIs(t, err, domain.ErrInfeasibleBounds)
}

func TestOptimizeRejectsBadInput(t *testing.T) {
	_, err := Optimize(nil, 100, nil, nil)
	require.Error(t, err)

	_, err = Optimize(map[string]float64{"home": 2.0}, 0, nil, nil)
	require.Error(t, err)
}

func TestValidateStakes(t *testing.T) {
	odds := map[string]float64{"home": 2.0, "away": 2.0}

	require.NoError(t, ValidateStakes(odds, map[string]float64{"home": 50, "away": 50}, 100, nil, nil))

	err := ValidateStakes(odds, map[string]float64{"home": 50}, 100, nil, nil)
	require.ErrorIs(t, err, domain.ErrInfeasibleBounds)

	err = ValidateStakes(odds, map[string]float64{"home": 40, "away": 50}, 100, nil, nil)
	require.ErrorIs(t, err, domain.ErrInfeasibleBounds)

	err = ValidateStakes(odds, map[string]float64{"home": 50, "away": 50}, 100,
		map[string]float64{"home": 60}, nil)
	require.ErrorIs(t, err, domain.ErrInfeasibleBounds)
}
