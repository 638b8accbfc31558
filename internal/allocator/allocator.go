// Package allocator sizes the stakes for accepted opportunities. Detection
// decides whether an arbitrage exists; this package decides how much money
// to commit to it, bounded by bankroll exposure limits, per-book betting
// limits, and a worst-case profit floor.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/surebot/surebot/internal/domain"
	"github.com/surebot/surebot/internal/engine"
)

// Config holds the stake-sizing parameters. Invalid configuration is fatal
// at construction time; Allocate itself never sees a bad Config.
type Config struct {
	// Bankroll is the total capital available for staking.
	Bankroll float64
	// MaxExposureRatio bounds the share of bankroll at risk at once.
	MaxExposureRatio float64
	// KellyFraction scales the Kelly-derived budget; 1.0 is full Kelly.
	KellyFraction float64
	// MinReliability rejects legs routed to books scoring below it.
	MinReliability float64
	// MinProfitRate is the worst-case profit floor a sized plan must keep.
	MinProfitRate float64
	// BalancePenalty scales how strongly existing book exposure shrinks new
	// stakes at that book.
	BalancePenalty float64
}

// Validate reports every structurally invalid field, not just the first.
func (c Config) Validate() error {
	var errs []error
	if c.Bankroll <= 0 {
		errs = append(errs, fmt.Errorf("allocator config: bankroll %.2f must be positive", c.Bankroll))
	}
	if c.MaxExposureRatio <= 0 || c.MaxExposureRatio > 1 {
		errs = append(errs, fmt.Errorf("allocator config: max exposure ratio %.4f outside (0,1]", c.MaxExposureRatio))
	}
	if c.KellyFraction <= 0 || c.KellyFraction > 1 {
		errs = append(errs, fmt.Errorf("allocator config: kelly fraction %.4f outside (0,1]", c.KellyFraction))
	}
	if c.MinReliability < 0 || c.MinReliability > 1 {
		errs = append(errs, fmt.Errorf("allocator config: min reliability %.4f outside [0,1]", c.MinReliability))
	}
	if c.MinProfitRate < 0 {
		errs = append(errs, fmt.Errorf("allocator config: min profit rate %.4f must not be negative", c.MinProfitRate))
	}
	if c.BalancePenalty < 0 || c.BalancePenalty > 1 {
		errs = append(errs, fmt.Errorf("allocator config: balance penalty %.4f outside [0,1]", c.BalancePenalty))
	}
	return errors.Join(errs...)
}

// Allocator turns validated opportunities into stake plans.
type Allocator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Allocator. Config must pass Validate.
func New(cfg Config, logger *slog.Logger) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "allocator")),
	}, nil
}

// Allocate sizes the stakes for one opportunity against the current book
// position snapshot. The pipeline is: reliability screen, Kelly-derived
// fair-share sizing, exposure balancing, per-book constraint clamping, a
// bound-constrained re-solve of the surviving legs, and a final worst-case
// profit check. A rejection returns one of the sentinel allocation errors;
// callers can branch on them with errors.Is.
func (a *Allocator) Allocate(ctx context.Context, opp domain.Opportunity, positions map[string]domain.BookPosition) (domain.StakePlan, error) {
	if err := a.validateBooks(opp, positions); err != nil {
		return domain.StakePlan{}, err
	}

	stakes := a.kellyStakes(opp)
	a.balancePositions(opp, positions, stakes)
	a.applyConstraints(opp, positions, stakes)
	a.rebalanceStakes(ctx, opp, positions, stakes)

	plan, err := a.buildPlan(opp, stakes)
	if err != nil {
		a.logger.DebugContext(ctx, "allocator: plan rejected",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
		return domain.StakePlan{}, err
	}

	a.logger.InfoContext(ctx, "allocator: plan sized",
		slog.String("opp_id", opp.ID),
		slog.Float64("total_stake", plan.TotalStake),
		slog.Float64("min_profit_rate", plan.MinProfitRate),
	)
	return plan, nil
}

// validateBooks rejects the opportunity if any leg's book is missing from
// the snapshot, scores below the reliability floor, or carries inconsistent
// bet-size limits.
func (a *Allocator) validateBooks(opp domain.Opportunity, positions map[string]domain.BookPosition) error {
	for _, bet := range opp.Bets {
		pos, ok := positions[bet.Source]
		if !ok {
			return fmt.Errorf("allocator: %w: %q", domain.ErrUnknownBook, bet.Source)
		}
		if pos.ReliabilityScore < a.cfg.MinReliability {
			return fmt.Errorf("allocator: %w: %q scored %.2f, floor %.2f",
				domain.ErrUnreliableBook, bet.Source, pos.ReliabilityScore, a.cfg.MinReliability)
		}
		if pos.MaxBetSize <= pos.MinBetSize {
			return fmt.Errorf("allocator: %w: %q max bet %.2f, min bet %.2f",
				domain.ErrInvalidBook, bet.Source, pos.MaxBetSize, pos.MinBetSize)
		}
	}
	return nil
}

// kellyStakes splits the Kelly-derived budget across outcomes by implied
// probability, which is exactly the equal-profit split of that budget.
func (a *Allocator) kellyStakes(opp domain.Opportunity) map[string]float64 {
	budget := a.cfg.Bankroll * a.cfg.MaxExposureRatio * a.cfg.KellyFraction
	return engine.EqualProfitStakes(opp.Odds, budget)
}

// balancePositions shrinks each leg in proportion to its book's share of the
// exposure held across all books in the snapshot, so new stakes drift toward
// the least-loaded books. With no exposure anywhere the stakes pass through
// untouched.
func (a *Allocator) balancePositions(opp domain.Opportunity, positions map[string]domain.BookPosition, stakes map[string]float64) {
	var totalExposure float64
	for _, pos := range positions {
		totalExposure += pos.CurrentExposure
	}
	if totalExposure <= 0 {
		return
	}
	for _, bet := range opp.Bets {
		pos := positions[bet.Source]
		ratio := pos.CurrentExposure / totalExposure
		stakes[bet.Outcome] *= 1 - ratio*a.cfg.BalancePenalty
	}
}

// applyConstraints clamps each leg to what its book can actually take: the
// book's liquidity, its maximum bet size, and the global exposure cap. Legs
// falling below the book's minimum bet size are zeroed rather than padded
// up, padding would silently grow risk.
func (a *Allocator) applyConstraints(opp domain.Opportunity, positions map[string]domain.BookPosition, stakes map[string]float64) {
	for _, bet := range opp.Bets {
		pos := positions[bet.Source]
		stake := stakes[bet.Outcome]

		if maxAllowed := a.maxAllowedStake(pos); stake > maxAllowed {
			stake = maxAllowed
		}
		if stake < pos.MinBetSize {
			stake = 0
		}
		stakes[bet.Outcome] = stake
	}
}

// maxAllowedStake is the hard per-leg ceiling: the book's liquidity, its
// maximum bet size, and the global exposure cap.
func (a *Allocator) maxAllowedStake(pos domain.BookPosition) float64 {
	maxAllowed := pos.AvailableLiquidity
	if pos.MaxBetSize < maxAllowed {
		maxAllowed = pos.MaxBetSize
	}
	if limit := a.cfg.Bankroll * a.cfg.MaxExposureRatio; limit < maxAllowed {
		maxAllowed = limit
	}
	return maxAllowed
}

// rebalanceStakes re-solves the funded legs as a bound-constrained
// equal-profit split. Per-leg clamping skews payouts, so the clamped total
// is redistributed inside each book's real limits. An infeasible re-solve
// leaves the clamped stakes in place for the final profit check to judge.
func (a *Allocator) rebalanceStakes(ctx context.Context, opp domain.Opportunity, positions map[string]domain.BookPosition, stakes map[string]float64) {
	odds := make(map[string]float64)
	minStake := make(map[string]float64)
	maxStake := make(map[string]float64)
	var total float64
	for _, bet := range opp.Bets {
		stake := stakes[bet.Outcome]
		if stake <= 0 {
			continue
		}
		pos := positions[bet.Source]
		odds[bet.Outcome] = bet.Odds
		minStake[bet.Outcome] = pos.MinBetSize
		maxStake[bet.Outcome] = a.maxAllowedStake(pos)
		total += stake
	}
	if len(odds) < 2 {
		return
	}

	solved, err := Optimize(odds, total, minStake, maxStake)
	if err != nil {
		a.logger.DebugContext(ctx, "allocator: rebalance infeasible",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	for outcome, stake := range solved {
		stakes[outcome] = stake
	}
}

// buildPlan re-validates profit after sizing. Bounds and clamps can break
// the equal-profit property, so the plan's worst funded outcome must still
// clear the profit floor. Zeroed legs do not count; a plan may stand on
// fewer outcomes than the screen covered.
func (a *Allocator) buildPlan(opp domain.Opportunity, stakes map[string]float64) (domain.StakePlan, error) {
	var total float64
	for _, stake := range stakes {
		total += stake
	}
	if total <= 0 {
		return domain.StakePlan{}, fmt.Errorf("allocator: %w", domain.ErrNoViableStake)
	}

	worst := worstProfitRate(opp.Odds, stakes, total)
	if worst < a.cfg.MinProfitRate {
		return domain.StakePlan{}, fmt.Errorf("allocator: %w: worst-case rate %.4f, floor %.4f",
			domain.ErrBelowMinProfit, worst, a.cfg.MinProfitRate)
	}

	return domain.StakePlan{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		Stakes:        stakes,
		TotalStake:    total,
		MinProfitRate: worst,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
