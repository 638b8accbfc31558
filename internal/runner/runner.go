// Package runner consumes normalized quote batches from the signal bus and
// drives them through detection, allocation, and recording.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/surebot/surebot/internal/allocator"
	"github.com/surebot/surebot/internal/domain"
	"github.com/surebot/surebot/internal/engine"
	"github.com/surebot/surebot/internal/service"
)

const (
	defaultLockTTL         = 10 * time.Second
	defaultCleanupInterval = time.Minute
)

// Runner subscribes to the quotes channel and processes each batch: detect
// arbitrage, snapshot book positions, size stakes, record the result. A
// distributed lock serializes work per market so concurrent runners do not
// emit duplicates.
type Runner struct {
	bus       domain.SignalBus
	scanner   *engine.Scanner
	alloc     *allocator.Allocator
	opps      *service.OpportunityService
	positions *service.PositionService
	locks     domain.LockManager
	lockTTL   time.Duration
	logger    *slog.Logger
}

// New creates a Runner. The lock manager may be nil for single-instance
// deployments; all other dependencies are required.
func New(
	bus domain.SignalBus,
	scanner *engine.Scanner,
	alloc *allocator.Allocator,
	opps *service.OpportunityService,
	positions *service.PositionService,
	locks domain.LockManager,
	logger *slog.Logger,
) (*Runner, error) {
	if bus == nil || scanner == nil || alloc == nil || opps == nil || positions == nil {
		return nil, fmt.Errorf("runner: missing required dependency")
	}
	return &Runner{
		bus:       bus,
		scanner:   scanner,
		alloc:     alloc,
		opps:      opps,
		positions: positions,
		locks:     locks,
		lockTTL:   defaultLockTTL,
		logger:    logger.With(slog.String("component", "runner")),
	}, nil
}

// Run consumes quote batches until ctx is cancelled. The processed-market set
// is expired on a background ticker so markets become scannable again after
// the freshness window.
func (r *Runner) Run(ctx context.Context) error {
	quotes, err := r.bus.Subscribe(ctx, domain.ChannelQuotes)
	if err != nil {
		return fmt.Errorf("runner: subscribe %s: %w", domain.ChannelQuotes, err)
	}

	r.logger.InfoContext(ctx, "runner started",
		slog.String("channel", domain.ChannelQuotes),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(defaultCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				r.scanner.Cleanup()
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case payload, ok := <-quotes:
				if !ok {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("runner: quotes subscription closed")
				}
				r.ProcessBatch(ctx, payload)
			}
		}
	})

	err = g.Wait()
	r.logger.InfoContext(ctx, "runner stopped")
	return err
}

// ProcessBatch decodes one quote-batch payload and runs the full
// detect-allocate-record pass. Failures inside a batch are logged and do not
// stop the consumer.
func (r *Runner) ProcessBatch(ctx context.Context, payload []byte) {
	groups, err := decodeBatch(payload)
	if err != nil {
		r.logger.WarnContext(ctx, "runner: dropping undecodable batch",
			slog.String("error", err.Error()),
		)
		return
	}
	if len(groups) == 0 {
		return
	}

	detected := r.scanner.Detect(ctx, groups)
	for _, opp := range detected {
		r.processOpportunity(ctx, opp)
	}
}

func (r *Runner) processOpportunity(ctx context.Context, opp domain.Opportunity) {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, marketLockKey(opp), r.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.DebugContext(ctx, "runner: market locked by another instance",
					slog.String("event_id", opp.EventID),
					slog.String("market_id", opp.MarketID),
				)
				return
			}
			r.logger.WarnContext(ctx, "runner: lock acquisition failed",
				slog.String("market_id", opp.MarketID),
				slog.String("error", err.Error()),
			)
			return
		}
		defer unlock()
	}

	plan := r.sizeStakes(ctx, opp)
	if err := r.opps.Record(ctx, opp, plan); err != nil {
		r.logger.ErrorContext(ctx, "runner: recording failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}

// sizeStakes runs the allocator against the current book-position snapshot.
// Allocation rejections are expected outcomes; the opportunity is still
// recorded without a plan so the detection history stays complete.
func (r *Runner) sizeStakes(ctx context.Context, opp domain.Opportunity) *domain.StakePlan {
	snapshot, err := r.positions.Snapshot(ctx, opp.Sources)
	if err != nil {
		r.logger.ErrorContext(ctx, "runner: position snapshot failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	plan, err := r.alloc.Allocate(ctx, opp, snapshot)
	if err != nil {
		if isAllocationRejection(err) {
			r.logger.InfoContext(ctx, "runner: opportunity not sized",
				slog.String("opp_id", opp.ID),
				slog.String("reason", err.Error()),
			)
		} else {
			r.logger.ErrorContext(ctx, "runner: allocation failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return &plan
}

func isAllocationRejection(err error) bool {
	return errors.Is(err, domain.ErrUnknownBook) ||
		errors.Is(err, domain.ErrUnreliableBook) ||
		errors.Is(err, domain.ErrInvalidBook) ||
		errors.Is(err, domain.ErrBelowMinProfit) ||
		errors.Is(err, domain.ErrNoViableStake) ||
		errors.Is(err, domain.ErrInfeasibleBounds)
}

func marketLockKey(opp domain.Opportunity) string {
	return fmt.Sprintf("market:%s:%s", opp.EventID, opp.MarketID)
}

// decodeBatch accepts either a JSON array of quote groups or a single group
// object, matching what the feed publishes.
func decodeBatch(payload []byte) ([]domain.QuoteGroup, error) {
	var groups []domain.QuoteGroup
	if err := json.Unmarshal(payload, &groups); err == nil {
		return groups, nil
	}
	var single domain.QuoteGroup
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("decode quote batch: %w", err)
	}
	return []domain.QuoteGroup{single}, nil
}
