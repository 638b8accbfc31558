// Package service wires the detection and allocation core to persistence,
// the signal bus, and notifications.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/surebot/surebot/internal/domain"
	"github.com/surebot/surebot/internal/notify"
)

// OpportunityService records detected opportunities and fans them out to
// downstream consumers. Persistence is the source of truth; bus, audit, and
// notification failures are logged but never fail the recording.
type OpportunityService struct {
	opps     domain.OpportunityStore
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewOpportunityService creates an OpportunityService with all required
// dependencies. The notifier may be nil when no channels are configured.
func NewOpportunityService(
	opps domain.OpportunityStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *OpportunityService {
	return &OpportunityService{
		opps:     opps,
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "opportunity_service")),
	}
}

// Record persists an opportunity and its stake plan, publishes the event to
// the bus (channel and durable stream), audits it, and notifies operators.
// The plan is nil when allocation rejected the opportunity; the detection is
// still recorded.
func (s *OpportunityService) Record(ctx context.Context, opp domain.Opportunity, plan *domain.StakePlan) error {
	if err := s.opps.Insert(ctx, opp); err != nil {
		return fmt.Errorf("opportunity_service: insert %s: %w", opp.ID, err)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":      notify.EventOpportunityDetected,
		"opp_id":     opp.ID,
		"event_id":   opp.EventID,
		"market_id":  opp.MarketID,
		"profit_pct": opp.ProfitPct,
		"risk_score": opp.RiskScore,
		"sources":    opp.Sources,
		"plan":       plan,
	})
	if err := s.bus.Publish(ctx, domain.ChannelOpportunities, evt); err != nil {
		s.logger.WarnContext(ctx, "opportunity_service: publish failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamOpportunities, evt); err != nil {
		s.logger.WarnContext(ctx, "opportunity_service: stream append failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}

	detail := map[string]any{
		"opp_id":     opp.ID,
		"event_id":   opp.EventID,
		"market_id":  opp.MarketID,
		"profit_pct": opp.ProfitPct,
		"risk_score": opp.RiskScore,
	}
	if plan != nil {
		detail["plan_id"] = plan.ID
		detail["total_stake"] = plan.TotalStake
	}
	if err := s.audit.Log(ctx, "opportunity_recorded", detail); err != nil {
		s.logger.WarnContext(ctx, "opportunity_service: audit log failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}

	s.sendNotification(ctx, opp, plan)

	s.logger.InfoContext(ctx, "opportunity_service: opportunity recorded",
		slog.String("opp_id", opp.ID),
		slog.Float64("profit_pct", opp.ProfitPct),
	)
	return nil
}

// MarkSettled stamps an opportunity as settled once its market resolves, and
// audits the transition.
func (s *OpportunityService) MarkSettled(ctx context.Context, id string) error {
	if err := s.opps.MarkSettled(ctx, id); err != nil {
		return fmt.Errorf("opportunity_service: mark settled %q: %w", id, err)
	}
	if err := s.audit.Log(ctx, "opportunity_settled", map[string]any{"opp_id": id}); err != nil {
		s.logger.WarnContext(ctx, "opportunity_service: audit log failed",
			slog.String("opp_id", id),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// GetByID fetches one recorded opportunity.
func (s *OpportunityService) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	opp, err := s.opps.GetByID(ctx, id)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("opportunity_service: get %q: %w", id, err)
	}
	return opp, nil
}

// ListRecent returns the most recent opportunities up to the given limit.
func (s *OpportunityService) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	opps, err := s.opps.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("opportunity_service: list recent: %w", err)
	}
	return opps, nil
}

func (s *OpportunityService) sendNotification(ctx context.Context, opp domain.Opportunity, plan *domain.StakePlan) {
	if s.notifier == nil {
		return
	}

	alert := notify.Alert{
		Event:     notify.EventOpportunityDetected,
		Title:     fmt.Sprintf("Arbitrage: %.2f%% on %s", opp.ProfitPct, opp.EventID),
		ProfitPct: opp.ProfitPct,
		RiskScore: opp.RiskScore,
		Books:     opp.Sources,
	}
	if plan != nil {
		alert.Body = fmt.Sprintf("market %s, staked %.2f across %d books",
			opp.MarketID, plan.TotalStake, len(opp.Sources))
	} else {
		alert.Body = fmt.Sprintf("market %s, no viable stake plan", opp.MarketID)
	}
	if err := s.notifier.Notify(ctx, alert); err != nil {
		s.logger.WarnContext(ctx, "opportunity_service: notify failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}
