package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surebot/surebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:        "opp-1",
		ProfitPct: 7.44,
		RiskScore: 0.81,
		Bets: []domain.BetLeg{
			{Outcome: "home", Odds: 2.1, Stake: 511.63, Source: "bet365"},
			{Outcome: "away", Odds: 2.2, Stake: 488.37, Source: "pinnacle"},
		},
	}
}

func TestValidatorGates(t *testing.T) {
	cfg := ValidatorConfig{
		MinProfitPct:      1.0,
		MinRiskScore:      0.70,
		MinLiquidityRatio: 2.0,
		MaxStake:          1000,
	}
	v := NewValidator(cfg, testLogger())
	ctx := context.Background()

	tests := []struct {
		name       string
		mutate     func(*domain.Opportunity)
		wantOK     bool
		wantReason string
	}{
		{
			name:   "passes all gates",
			mutate: func(*domain.Opportunity) {},
			wantOK: true,
		},
		{
			name:       "profit below minimum",
			mutate:     func(o *domain.Opportunity) { o.ProfitPct = 0.5 },
			wantReason: RejectProfitBelowMinimum,
		},
		{
			name:       "risk score below floor",
			mutate:     func(o *domain.Opportunity) { o.RiskScore = 0.69 },
			wantReason: RejectRiskScoreBelowFloor,
		},
		{
			name: "liquidity exceeded",
			mutate: func(o *domain.Opportunity) {
				// 600 * ratio 2.0 exceeds the 1000 ceiling.
				o.Bets[0].Stake = 600
			},
			wantReason: RejectInsufficientLiquidity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := validOpportunity()
			tt.mutate(&opp)

			ok, reason := v.Validate(ctx, opp)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestValidatorProfitGateRunsFirst(t *testing.T) {
	v := NewValidator(ValidatorConfig{
		MinProfitPct:      1.0,
		MinRiskScore:      0.70,
		MinLiquidityRatio: 2.0,
		MaxStake:          1000,
	}, testLogger())

	opp := validOpportunity()
	opp.ProfitPct = 0.1
	opp.RiskScore = 0.1

	_, reason := v.Validate(context.Background(), opp)
	require.Equal(t, RejectProfitBelowMinimum, reason)
}

func TestValidatorExchangeBypassesLiquidity(t *testing.T) {
	cfg := ValidatorConfig{
		MinProfitPct:      1.0,
		MinRiskScore:      0.70,
		MinLiquidityRatio: 2.0,
		MaxStake:          1000,
		ExchangeSources:   []string{"betfair"},
	}
	v := NewValidator(cfg, testLogger())

	opp := validOpportunity()
	opp.Bets[0].Source = "betfair"
	opp.Bets[0].Stake = 5000 // far past the ceiling, irrelevant for an exchange

	ok, reason := v.Validate(context.Background(), opp)
	require.True(t, ok)
	require.Empty(t, reason)
}

func TestValidatorExactBoundaries(t *testing.T) {
	cfg := ValidatorConfig{
		MinProfitPct:      1.0,
		MinRiskScore:      0.70,
		MinLiquidityRatio: 2.0,
		MaxStake:          1000,
	}
	v := NewValidator(cfg, testLogger())

	opp := validOpportunity()
	opp.ProfitPct = 1.0
	opp.RiskScore = 0.70
	opp.Bets[0].Stake = 500 // 500 * 2.0 == MaxStake exactly
	opp.Bets[1].Stake = 500

	ok, _ := v.Validate(context.Background(), opp)
	require.True(t, ok)
}
