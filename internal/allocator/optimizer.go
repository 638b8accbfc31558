package allocator

import (
	"fmt"
	"math"

	"github.com/surebot/surebot/internal/domain"
	"github.com/surebot/surebot/internal/engine"
)

// maxOptimizerIterations bounds the clamp-and-resolve loop. Each iteration
// pins at least one stake to a bound, so the loop converges in at most one
// pass per outcome; the cap is a backstop against pathological bounds.
const maxOptimizerIterations = 50

// stakeTolerance is the absolute slack allowed when checking that stakes
// hit their total and bounds.
const stakeTolerance = 1e-6

// optimizerProfitFloor is the worst-case profit rate a solved split must
// keep. The allocator applies its own configured floor on top of this one.
const optimizerProfitFloor = 0.002

// Optimize splits total across outcomes as close to the equal-profit split
// as the per-outcome bounds allow. It seeds with the unconstrained
// equal-profit stakes, pins every stake that violates its bound, and
// re-solves the remaining outcomes against the remaining budget until the
// split is feasible. Returns ErrInfeasibleBounds when no split exists, for
// example when the minimum stakes alone exceed the total, and
// ErrBelowMinProfit when the bounds force a split whose worst outcome loses
// money.
func Optimize(odds map[string]float64, total float64, minStake, maxStake map[string]float64) (map[string]float64, error) {
	if len(odds) == 0 {
		return nil, fmt.Errorf("optimizer: no outcomes")
	}
	if total <= 0 {
		return nil, fmt.Errorf("optimizer: total %.2f must be positive", total)
	}

	var minSum float64
	for outcome := range odds {
		minSum += minStake[outcome]
	}
	if minSum > total+stakeTolerance {
		return nil, fmt.Errorf("optimizer: %w: minimum stakes sum to %.2f against total %.2f",
			domain.ErrInfeasibleBounds, minSum, total)
	}

	pinned := make(map[string]float64)
	free := make(map[string]float64, len(odds))
	for outcome, o := range odds {
		free[outcome] = o
	}

	for iter := 0; iter < maxOptimizerIterations; iter++ {
		remaining := total
		for _, stake := range pinned {
			remaining -= stake
		}
		if remaining < -stakeTolerance {
			return nil, fmt.Errorf("optimizer: %w: pinned stakes exceed total", domain.ErrInfeasibleBounds)
		}
		if len(free) == 0 {
			if math.Abs(remaining) > stakeTolerance {
				return nil, fmt.Errorf("optimizer: %w: %.2f unallocatable after pinning all outcomes",
					domain.ErrInfeasibleBounds, remaining)
			}
			break
		}

		stakes := engine.EqualProfitStakes(free, remaining)

		violated := false
		for outcome, stake := range stakes {
			if lo := minStake[outcome]; stake < lo-stakeTolerance {
				pinned[outcome] = lo
				delete(free, outcome)
				violated = true
			} else if hi, ok := maxStake[outcome]; ok && hi > 0 && stake > hi+stakeTolerance {
				pinned[outcome] = hi
				delete(free, outcome)
				violated = true
			}
		}
		if !violated {
			for outcome, stake := range stakes {
				pinned[outcome] = stake
			}
			break
		}
	}

	if err := ValidateStakes(odds, pinned, total, minStake, maxStake); err != nil {
		return nil, err
	}
	if rate := worstProfitRate(odds, pinned, total); rate < optimizerProfitFloor {
		return nil, fmt.Errorf("optimizer: %w: worst-case rate %.4f, floor %.4f",
			domain.ErrBelowMinProfit, rate, optimizerProfitFloor)
	}
	return pinned, nil
}

// worstProfitRate is the lowest profit rate across funded outcomes. Legs
// staked at zero leave their outcome uncovered and are not counted.
func worstProfitRate(odds, stakes map[string]float64, total float64) float64 {
	worst := math.Inf(1)
	for outcome, stake := range stakes {
		if stake <= 0 {
			continue
		}
		rate := (stake*odds[outcome] - total) / total
		if rate < worst {
			worst = rate
		}
	}
	return worst
}

// ValidateStakes checks that stakes cover every outcome, sum to total, and
// respect the per-outcome bounds, all within tolerance.
func ValidateStakes(odds, stakes map[string]float64, total float64, minStake, maxStake map[string]float64) error {
	var sum float64
	for outcome := range odds {
		stake, ok := stakes[outcome]
		if !ok {
			return fmt.Errorf("optimizer: %w: outcome %q has no stake", domain.ErrInfeasibleBounds, outcome)
		}
		if lo := minStake[outcome]; stake < lo-stakeTolerance {
			return fmt.Errorf("optimizer: %w: outcome %q stake %.4f below minimum %.4f",
				domain.ErrInfeasibleBounds, outcome, stake, lo)
		}
		if hi, hok := maxStake[outcome]; hok && hi > 0 && stake > hi+stakeTolerance {
			return fmt.Errorf("optimizer: %w: outcome %q stake %.4f above maximum %.4f",
				domain.ErrInfeasibleBounds, outcome, stake, hi)
		}
		sum += stake
	}
	if math.Abs(sum-total) > stakeTolerance {
		return fmt.Errorf("optimizer: %w: stakes sum to %.4f against total %.4f",
			domain.ErrInfeasibleBounds, sum, total)
	}
	return nil
}
