package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists detected arbitrage opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	GetByID(ctx context.Context, id string) (Opportunity, error)
	MarkSettled(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BookStore persists book state and open positions. The engine reads these
// to assemble allocation snapshots; writes come from the upstream systems
// that place and settle bets.
type BookStore interface {
	UpsertBook(ctx context.Context, pos BookPosition) error
	GetBook(ctx context.Context, book string) (BookPosition, error)
	ListBooks(ctx context.Context) ([]BookPosition, error)
	InsertPosition(ctx context.Context, pos OpenPosition) error
	ListOpenPositions(ctx context.Context) ([]OpenPosition, error)
	ClosePosition(ctx context.Context, id string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
