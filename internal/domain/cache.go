package domain

import (
	"context"
	"time"
)

// Bus channel and stream names shared by producers and consumers.
const (
	// ChannelQuotes carries JSON-encoded QuoteGroup batches from collectors
	// into the engine.
	ChannelQuotes = "quotes"
	// ChannelOpportunities carries JSON-encoded Opportunity events out to
	// downstream consumers.
	ChannelOpportunities = "opportunities"
	// StreamOpportunities is the durable stream mirroring ChannelOpportunities.
	StreamOpportunities = "stream:opportunities"
)

// StreamMessage is a single durable message read from the bus stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus carries quote batches in and opportunity/plan events out. It
// replaces in-process callback fan-out so the engine stays free of
// side-effecting notification lists.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// LockManager provides distributed locks so concurrent scanners do not race
// to emit duplicate opportunities for the same market.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when the
	// lock is held by another party.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// PositionCache serves hot book-position snapshots without a database
// round trip.
type PositionCache interface {
	SetPosition(ctx context.Context, pos BookPosition) error
	GetPosition(ctx context.Context, book string) (BookPosition, error)
	// GetPositions retrieves snapshots for multiple books; books without a
	// cached entry are omitted from the result.
	GetPositions(ctx context.Context, books []string) (map[string]BookPosition, error)
}
