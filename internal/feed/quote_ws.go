// Package feed ingests live quotes over WebSocket and republishes them on
// the signal bus for the engine to consume.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/surebot/surebot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
)

// Config holds the quote feed connection parameters.
type Config struct {
	// URL is the quote provider's WebSocket endpoint.
	URL string
	// ReconnectInterval is the base delay before attempting to reconnect.
	ReconnectInterval time.Duration
	// MaxReconnectWait caps the exponential backoff for reconnection.
	MaxReconnectWait time.Duration
	// PingInterval sends pings to the peer at this interval. Must be less
	// than the pong wait (60s).
	PingInterval time.Duration
}

// QuoteFeed maintains a WebSocket connection to a quote provider, decodes
// incoming quote-group batches, and republishes each valid batch to the
// quotes channel on the bus. It reconnects with exponential backoff on
// disconnect.
type QuoteFeed struct {
	cfg    Config
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewQuoteFeed creates a QuoteFeed.
func NewQuoteFeed(cfg Config, bus domain.SignalBus, logger *slog.Logger) (*QuoteFeed, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("feed: empty websocket url")
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 2 * time.Second
	}
	if cfg.MaxReconnectWait <= 0 {
		cfg.MaxReconnectWait = time.Minute
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= pongWait {
		cfg.PingInterval = (pongWait * 9) / 10
	}
	return &QuoteFeed{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With(slog.String("component", "quote_feed")),
	}, nil
}

// Run connects and consumes quotes until ctx is cancelled. Each disconnect
// doubles the backoff up to the configured cap; a successful connection
// resets it.
func (f *QuoteFeed) Run(ctx context.Context) error {
	backoff := f.cfg.ReconnectInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.WarnContext(ctx, "feed: disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > f.cfg.MaxReconnectWait {
			backoff = f.cfg.MaxReconnectWait
		}
	}
}

// runConnection dials the provider and pumps messages until the connection
// breaks or ctx is cancelled. It always returns a non-nil error describing
// why the connection ended.
func (f *QuoteFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	f.logger.InfoContext(ctx, "feed: connected", slog.String("url", f.cfg.URL))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	go f.pingLoop(ctx, conn, done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		if err := f.handleMessage(ctx, payload); err != nil {
			f.logger.WarnContext(ctx, "feed: dropping message",
				slog.String("error", err.Error()),
			)
		}
	}
}

func (f *QuoteFeed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a provider message into quote groups and republishes
// them on the bus. Providers send either a single group or a batch;
// both shapes are accepted.
func (f *QuoteFeed) handleMessage(ctx context.Context, payload []byte) error {
	groups, err := decodeQuoteGroups(payload)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return nil
	}

	out, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("feed: marshal quote groups: %w", err)
	}
	if err := f.bus.Publish(ctx, domain.ChannelQuotes, out); err != nil {
		return err
	}

	f.logger.DebugContext(ctx, "feed: quotes published",
		slog.Int("groups", len(groups)),
	)
	return nil
}

// decodeQuoteGroups accepts either a JSON array of quote groups or a single
// quote-group object and normalizes to a slice. Groups missing identity
// fields or carrying no prices are rejected.
func decodeQuoteGroups(payload []byte) ([]domain.QuoteGroup, error) {
	var groups []domain.QuoteGroup
	if err := json.Unmarshal(payload, &groups); err != nil {
		var single domain.QuoteGroup
		if err := json.Unmarshal(payload, &single); err != nil {
			return nil, fmt.Errorf("feed: decode quote groups: %w", err)
		}
		groups = []domain.QuoteGroup{single}
	}

	for _, g := range groups {
		if g.Source == "" || g.EventID == "" || g.MarketID == "" {
			return nil, fmt.Errorf("feed: %w: missing source or market identity", domain.ErrMalformedQuote)
		}
		if len(g.Odds) == 0 {
			return nil, fmt.Errorf("feed: %w: group %s has no prices", domain.ErrMalformedQuote, g.MarketKey())
		}
	}
	return groups, nil
}
