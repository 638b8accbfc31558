package engine

import (
	"context"
	"log/slog"

	"github.com/surebot/surebot/internal/domain"
)

// Rejection reasons returned by Validator.Validate.
const (
	RejectProfitBelowMinimum    = "profit_below_minimum"
	RejectRiskScoreBelowFloor   = "risk_score_below_floor"
	RejectInsufficientLiquidity = "insufficient_liquidity"
)

// ValidatorConfig holds the validation gates applied to candidate
// opportunities before any stake is sized.
type ValidatorConfig struct {
	// MinProfitPct is the minimum total profit percentage.
	MinProfitPct float64
	// MinRiskScore is the confidence floor; opportunities scoring below it
	// are rejected regardless of profit.
	MinRiskScore float64
	// MinLiquidityRatio scales each leg's stake to the liquidity the source
	// must be able to absorb.
	MinLiquidityRatio float64
	// MaxStake caps assumed liquidity at non-exchange sources.
	MaxStake float64
	// ExchangeSources lists exchange-style sources assumed to always carry
	// sufficient liquidity.
	ExchangeSources []string
}

// Validator applies the gate sequence to candidate opportunities. Each gate
// is a hard reject; the first failure wins.
type Validator struct {
	cfg      ValidatorConfig
	exchange map[string]bool
	logger   *slog.Logger
}

// NewValidator creates a Validator with the given gates.
func NewValidator(cfg ValidatorConfig, logger *slog.Logger) *Validator {
	exchange := make(map[string]bool, len(cfg.ExchangeSources))
	for _, source := range cfg.ExchangeSources {
		exchange[source] = true
	}
	return &Validator{
		cfg:      cfg,
		exchange: exchange,
		logger:   logger.With(slog.String("component", "validator")),
	}
}

// Validate runs the gates in order and returns false plus the reason for the
// first failed gate. It never panics on malformed candidates; structural
// validity is the scanner's responsibility.
func (v *Validator) Validate(ctx context.Context, opp domain.Opportunity) (bool, string) {
	if opp.ProfitPct < v.cfg.MinProfitPct {
		v.logger.DebugContext(ctx, "validator: profit below minimum",
			slog.String("opp_id", opp.ID),
			slog.Float64("profit_pct", opp.ProfitPct),
			slog.Float64("min_profit_pct", v.cfg.MinProfitPct),
		)
		return false, RejectProfitBelowMinimum
	}

	if opp.RiskScore < v.cfg.MinRiskScore {
		v.logger.DebugContext(ctx, "validator: risk score below floor",
			slog.String("opp_id", opp.ID),
			slog.Float64("risk_score", opp.RiskScore),
			slog.Float64("floor", v.cfg.MinRiskScore),
		)
		return false, RejectRiskScoreBelowFloor
	}

	for _, bet := range opp.Bets {
		required := bet.Stake * v.cfg.MinLiquidityRatio
		if !v.hasLiquidity(bet.Source, required) {
			v.logger.DebugContext(ctx, "validator: insufficient liquidity",
				slog.String("opp_id", opp.ID),
				slog.String("source", bet.Source),
				slog.Float64("required", required),
			)
			return false, RejectInsufficientLiquidity
		}
	}

	return true, ""
}

// hasLiquidity assumes exchange-style sources can always absorb the stake;
// every other source is capped by the global stake ceiling.
func (v *Validator) hasLiquidity(source string, required float64) bool {
	if v.exchange[source] {
		return true
	}
	return required <= v.cfg.MaxStake
}
