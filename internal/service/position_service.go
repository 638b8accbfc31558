package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/surebot/surebot/internal/allocator"
	"github.com/surebot/surebot/internal/domain"
)

// PositionService assembles book-position snapshots for the allocator. Reads
// go through the cache first and fall back to the store; exposure is derived
// from open positions on every snapshot so it never goes stale in cache.
type PositionService struct {
	books  domain.BookStore
	cache  domain.PositionCache
	logger *slog.Logger
}

// NewPositionService creates a PositionService. The cache may be nil, in
// which case every read hits the store.
func NewPositionService(books domain.BookStore, cache domain.PositionCache, logger *slog.Logger) *PositionService {
	return &PositionService{
		books:  books,
		cache:  cache,
		logger: logger.With(slog.String("component", "position_service")),
	}
}

// Snapshot returns the current position for each requested book, keyed by
// book identifier. Books unknown to both cache and store are omitted; the
// allocator rejects opportunities touching them. CurrentExposure is
// recomputed from open positions, overriding whatever the stored row says.
func (s *PositionService) Snapshot(ctx context.Context, books []string) (map[string]domain.BookPosition, error) {
	snapshot := make(map[string]domain.BookPosition, len(books))

	if s.cache != nil {
		cached, err := s.cache.GetPositions(ctx, books)
		if err != nil {
			s.logger.WarnContext(ctx, "position_service: cache read failed",
				slog.String("error", err.Error()),
			)
		} else {
			for book, pos := range cached {
				snapshot[book] = pos
			}
		}
	}

	for _, book := range books {
		if _, ok := snapshot[book]; ok {
			continue
		}
		pos, err := s.books.GetBook(ctx, book)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("position_service: get book %q: %w", book, err)
		}
		snapshot[book] = pos
		s.fillCache(ctx, pos)
	}

	if len(snapshot) == 0 {
		return snapshot, nil
	}

	open, err := s.books.ListOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("position_service: list open positions: %w", err)
	}
	exposure := allocator.LiabilityByBook(open)
	for book, pos := range snapshot {
		pos.CurrentExposure = exposure[book]
		snapshot[book] = pos
	}
	return snapshot, nil
}

// Refresh writes an updated book position through to the store and cache.
func (s *PositionService) Refresh(ctx context.Context, pos domain.BookPosition) error {
	if err := pos.Validate(); err != nil {
		return fmt.Errorf("position_service: refresh: %w", err)
	}
	if err := s.books.UpsertBook(ctx, pos); err != nil {
		return fmt.Errorf("position_service: upsert book %q: %w", pos.Book, err)
	}
	s.fillCache(ctx, pos)
	return nil
}

// RecordBet persists a newly placed stake and invalidates the cached
// exposure for its book by rewriting the snapshot on next read.
func (s *PositionService) RecordBet(ctx context.Context, pos domain.OpenPosition) error {
	if err := s.books.InsertPosition(ctx, pos); err != nil {
		return fmt.Errorf("position_service: insert position %q: %w", pos.ID, err)
	}
	return nil
}

// SettleBet closes an open position once the market resolves.
func (s *PositionService) SettleBet(ctx context.Context, id string) error {
	if err := s.books.ClosePosition(ctx, id); err != nil {
		return fmt.Errorf("position_service: close position %q: %w", id, err)
	}
	return nil
}

func (s *PositionService) fillCache(ctx context.Context, pos domain.BookPosition) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetPosition(ctx, pos); err != nil {
		s.logger.WarnContext(ctx, "position_service: cache write failed",
			slog.String("book", pos.Book),
			slog.String("error", err.Error()),
		)
	}
}
