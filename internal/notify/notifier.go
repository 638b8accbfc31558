// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord, etc.) and can
// be filtered by event type so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Well-known event types emitted by the engine.
const (
	EventOpportunityDetected = "opportunity_detected"
	EventPlanSized           = "plan_sized"
	EventError               = "error"
)

// Alert is one operator notification. Senders render it natively for their
// platform; Title and Body are the plain-text core, the remaining fields
// let a sender show the numbers that matter without parsing the body.
type Alert struct {
	Event     string
	Title     string
	Body      string
	ProfitPct float64
	RiskScore float64
	Books     []string
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one alert.
	Send(ctx context.Context, alert Alert) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; Notify only forwards messages whose event type
// is in the allowed set, while NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
// Only events whose type appears in the events slice will be forwarded by
// Notify. If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends an alert to all senders only if its event type is in the
// allowed list. If no events were configured, all events pass.
func (n *Notifier) Notify(ctx context.Context, alert Alert) error {
	if len(n.events) > 0 && !n.events[alert.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", alert.Event),
		)
		return nil
	}

	return n.dispatch(ctx, alert)
}

// NotifyAll sends an alert to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, alert Alert) error {
	return n.dispatch(ctx, alert)
}

// dispatch iterates over all senders and sends the alert. Errors from
// individual senders are collected and returned as a combined error; a
// single sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, alert Alert) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, alert); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", alert.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
