package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/surebot/surebot/internal/domain"
)

// ScannerConfig holds the tunable parameters for opportunity detection.
type ScannerConfig struct {
	// MinProfitPct is the minimum total profit percentage for a candidate.
	MinProfitPct float64
	// MaxTotalStake is the stake ceiling the candidate bet legs are sized
	// against (final sizing is the allocator's job).
	MaxTotalStake float64
	// MaxQuoteAge rejects markets whose quotes are older than this.
	// Zero disables the freshness check.
	MaxQuoteAge time.Duration
	// FreshnessWindow is how long a scanned market stays de-duplicated.
	FreshnessWindow time.Duration
}

// Validate reports structurally invalid configuration. Invalid config is
// fatal at construction time, unlike per-market failures which are local.
func (c ScannerConfig) Validate() error {
	if c.MinProfitPct < 0 {
		return fmt.Errorf("scanner config: min profit pct %.4f must not be negative", c.MinProfitPct)
	}
	if c.MaxTotalStake <= 0 {
		return fmt.Errorf("scanner config: max total stake %.2f must be positive", c.MaxTotalStake)
	}
	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("scanner config: freshness window must be positive")
	}
	return nil
}

// Scanner detects arbitrage opportunities in normalized quote groups. One
// Scanner may serve concurrent detection passes; the processed-market set is
// the only shared state.
type Scanner struct {
	cfg       ScannerConfig
	scorer    *Scorer
	validator *Validator
	processed *ProcessedSet
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanner creates a Scanner. The scorer and validator are required; config
// must pass Validate.
func NewScanner(cfg ScannerConfig, scorer *Scorer, validator *Validator, logger *slog.Logger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, fmt.Errorf("scanner: nil scorer")
	}
	if validator == nil {
		return nil, fmt.Errorf("scanner: nil validator")
	}
	return &Scanner{
		cfg:       cfg,
		scorer:    scorer,
		validator: validator,
		processed: NewProcessedSet(cfg.FreshnessWindow),
		logger:    logger.With(slog.String("component", "scanner")),
		now:       time.Now,
	}, nil
}

// Detect analyzes quote groups covering one or more event markets and
// returns every opportunity that survives validation. Failures are local to
// their market: malformed input skips that market and scanning continues.
func (s *Scanner) Detect(ctx context.Context, groups []domain.QuoteGroup) []domain.Opportunity {
	byMarket, order := groupByMarket(groups)

	var opps []domain.Opportunity
	for _, key := range order {
		opp, err := s.scanMarket(ctx, byMarket[key])
		if err != nil {
			s.logger.WarnContext(ctx, "scanner: skipping market",
				slog.String("market", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if opp != nil {
			opps = append(opps, *opp)
		}
	}
	return opps
}

// Cleanup expires aged entries from the processed-market set.
func (s *Scanner) Cleanup() {
	s.processed.Cleanup()
}

// scanMarket runs the detection pipeline for a single event market. A nil
// opportunity with nil error means no arbitrage (the common case); an error
// means the market's input was unusable.
func (s *Scanner) scanMarket(ctx context.Context, groups []domain.QuoteGroup) (*domain.Opportunity, error) {
	key := groups[0].MarketKey()
	if s.processed.Seen(key) {
		return nil, nil
	}

	if s.cfg.MaxQuoteAge > 0 {
		timestamps := make([]time.Time, 0, len(groups))
		for _, g := range groups {
			timestamps = append(timestamps, g.Timestamp)
		}
		if !Fresh(s.now(), timestamps, s.cfg.MaxQuoteAge) {
			return nil, domain.ErrStaleQuotes
		}
	}

	for _, g := range groups {
		for _, oo := range g.Odds {
			if oo.Odds <= 1.0 {
				return nil, fmt.Errorf("%w: %s quoted %q at %.4f", domain.ErrMalformedQuote, g.Source, oo.Outcome, oo.Odds)
			}
		}
	}

	matrix := BuildOddsMatrix(groups)
	best := matrix.BestPrices()
	if len(best) < 2 {
		// A one-outcome market cannot arbitrage; skip without error.
		return nil, nil
	}

	invSum := best.InverseSum()
	if invSum >= 1 {
		return nil, nil
	}
	profitPct := (1/invSum - 1) * 100
	if profitPct < s.cfg.MinProfitPct {
		return nil, nil
	}

	odds := make(map[string]float64, len(best))
	books := make(map[string]string, len(best))
	attributed := make([]string, 0, len(best))
	for _, outcome := range best.Outcomes() {
		bp := best[outcome]
		odds[outcome] = bp.Odds
		books[outcome] = bp.Source
		attributed = append(attributed, bp.Source)
	}

	score, err := s.scorer.Score(attributed)
	if err != nil {
		return nil, err
	}

	stakes := EqualProfitStakes(odds, s.cfg.MaxTotalStake)
	bets := make([]domain.BetLeg, 0, len(odds))
	for _, outcome := range best.Outcomes() {
		bets = append(bets, domain.BetLeg{
			Outcome: outcome,
			Odds:    odds[outcome],
			Stake:   stakes[outcome],
			Source:  books[outcome],
		})
	}

	g := groups[0]
	marketType := g.MarketType
	if marketType == "" {
		marketType = domain.DefaultMarketType
	}
	opp := domain.Opportunity{
		ID:         uuid.New().String(),
		EventID:    g.EventID,
		EventName:  g.EventName,
		MarketID:   g.MarketID,
		MarketType: marketType,
		Odds:       odds,
		Books:      books,
		Bets:       bets,
		TotalStake: s.cfg.MaxTotalStake,
		ProfitPct:  profitPct,
		RiskScore:  score,
		Sources:    best.Sources(),
		DetectedAt: s.now().UTC(),
	}

	if ok, reason := s.validator.Validate(ctx, opp); !ok {
		s.logger.DebugContext(ctx, "scanner: opportunity rejected",
			slog.String("market", key),
			slog.String("reason", reason),
			slog.Float64("profit_pct", profitPct),
			slog.Float64("risk_score", score),
		)
		return nil, nil
	}

	return &opp, nil
}

// groupByMarket partitions quote groups by event+market key, preserving
// first-seen order so scans are reproducible.
func groupByMarket(groups []domain.QuoteGroup) (map[string][]domain.QuoteGroup, []string) {
	byMarket := make(map[string][]domain.QuoteGroup)
	var order []string
	for _, g := range groups {
		key := g.MarketKey()
		if _, ok := byMarket[key]; !ok {
			order = append(order, key)
		}
		byMarket[key] = append(byMarket[key], g)
	}
	return byMarket, order
}

// IsMalformed reports whether err identifies unusable market input rather
// than an ordinary no-arbitrage outcome.
func IsMalformed(err error) bool {
	return errors.Is(err, domain.ErrMalformedQuote) ||
		errors.Is(err, domain.ErrUnknownSource) ||
		errors.Is(err, domain.ErrStaleQuotes)
}
