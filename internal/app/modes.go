package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/surebot/surebot/internal/allocator"
	"github.com/surebot/surebot/internal/domain"
	"github.com/surebot/surebot/internal/engine"
	"github.com/surebot/surebot/internal/feed"
	"github.com/surebot/surebot/internal/runner"
	"github.com/surebot/surebot/internal/service"
)

// ScanMode runs the quote feed and the detection runner: quotes come in over
// the WebSocket feed, are republished on the bus, and every batch is driven
// through detect, allocate, and record.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startDetection(ctx, g, deps); err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	if err := a.startQuoteFeed(ctx, g, deps); err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}

	return g.Wait()
}

// MonitorMode consumes recorded opportunity events read-only and forwards
// them to the configured notification channels. No detection runs; another
// instance in scan or full mode produces the events.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ch, err := deps.SignalBus.Subscribe(ctx, domain.ChannelOpportunities)
		if err != nil {
			return fmt.Errorf("monitor mode: subscribe %s: %w", domain.ChannelOpportunities, err)
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case payload, ok := <-ch:
				if !ok {
					return nil
				}
				a.logOpportunityEvent(ctx, payload)
			}
		}
	})

	a.startArchival(ctx, g, deps)

	return g.Wait()
}

// FullMode runs every subsystem: quote feed, detection runner, and the
// cold-storage archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startDetection(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if err := a.startQuoteFeed(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	a.startArchival(ctx, g, deps)

	return g.Wait()
}

// startDetection builds the engine components from config and adds the runner
// goroutine to the errgroup.
func (a *App) startDetection(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	scorer, err := engine.NewScorer(a.cfg.Books.Reliability)
	if err != nil {
		return fmt.Errorf("start detection: %w", err)
	}

	validator := engine.NewValidator(engine.ValidatorConfig{
		MinProfitPct:      a.cfg.Engine.MinProfitPct,
		MinRiskScore:      a.cfg.Engine.MinRiskScore,
		MinLiquidityRatio: a.cfg.Engine.MinLiquidityRatio,
		MaxStake:          a.cfg.Engine.MaxTotalStake,
		ExchangeSources:   a.cfg.Books.ExchangeSources,
	}, a.logger)

	scanner, err := engine.NewScanner(engine.ScannerConfig{
		MinProfitPct:    a.cfg.Engine.MinProfitPct,
		MaxTotalStake:   a.cfg.Engine.MaxTotalStake,
		MaxQuoteAge:     a.cfg.Engine.MaxQuoteAge.Duration,
		FreshnessWindow: a.cfg.Engine.FreshnessWindow.Duration,
	}, scorer, validator, a.logger)
	if err != nil {
		return fmt.Errorf("start detection: %w", err)
	}

	alloc, err := allocator.New(allocator.Config{
		Bankroll:         a.cfg.Allocator.Bankroll,
		MaxExposureRatio: a.cfg.Allocator.MaxExposureRatio,
		KellyFraction:    a.cfg.Allocator.KellyFraction,
		MinReliability:   a.cfg.Allocator.MinReliability,
		MinProfitRate:    a.cfg.Allocator.MinProfitRate,
		BalancePenalty:   a.cfg.Allocator.BalancePenalty,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("start detection: %w", err)
	}

	oppSvc := service.NewOpportunityService(
		deps.OpportunityStore, deps.SignalBus, deps.AuditStore, deps.Notifier, a.logger,
	)
	posSvc := service.NewPositionService(deps.BookStore, deps.PositionCache, a.logger)

	r, err := runner.New(deps.SignalBus, scanner, alloc, oppSvc, posSvc, deps.LockManager, a.logger)
	if err != nil {
		return fmt.Errorf("start detection: %w", err)
	}

	g.Go(func() error {
		err := r.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return nil
}

// startQuoteFeed adds the WebSocket quote receiver to the errgroup.
func (a *App) startQuoteFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	quoteFeed, err := feed.NewQuoteFeed(feed.Config{
		URL:               a.cfg.Feed.URL,
		ReconnectInterval: a.cfg.Feed.ReconnectInterval.Duration,
		MaxReconnectWait:  a.cfg.Feed.MaxReconnectWait.Duration,
		PingInterval:      a.cfg.Feed.PingInterval.Duration,
	}, deps.SignalBus, a.logger)
	if err != nil {
		return fmt.Errorf("start quote feed: %w", err)
	}

	g.Go(func() error {
		err := quoteFeed.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return nil
}

// startArchival adds the periodic cold-storage archive loop when archival is
// enabled and the S3 writer is wired.
func (a *App) startArchival(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}

	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "archival loop started",
			slog.Duration("interval", interval),
			slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				archived, err := deps.Archiver.ArchiveBefore(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "archival run failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if archived > 0 {
					a.logger.InfoContext(ctx, "archival run completed",
						slog.Int64("rows_archived", archived),
						slog.Time("cutoff", cutoff),
					)
				}
			}
		}
	})
}

// logOpportunityEvent surfaces a recorded opportunity in the monitor log.
func (a *App) logOpportunityEvent(ctx context.Context, payload []byte) {
	var evt struct {
		OppID     string  `json:"opp_id"`
		EventID   string  `json:"event_id"`
		MarketID  string  `json:"market_id"`
		ProfitPct float64 `json:"profit_pct"`
		RiskScore float64 `json:"risk_score"`
	}
	if err := json.Unmarshal(payload, &evt); err != nil {
		a.logger.WarnContext(ctx, "monitor: undecodable opportunity event",
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "opportunity observed",
		slog.String("opp_id", evt.OppID),
		slog.String("event", evt.EventID),
		slog.String("market", evt.MarketID),
		slog.Float64("profit_pct", evt.ProfitPct),
		slog.Float64("risk_score", evt.RiskScore),
	)
}
