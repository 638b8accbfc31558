package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surebot/surebot/internal/domain"
)

// BookStore implements domain.BookStore using PostgreSQL.
type BookStore struct {
	pool *pgxpool.Pool
}

// NewBookStore creates a new BookStore backed by the given connection pool.
func NewBookStore(pool *pgxpool.Pool) *BookStore {
	return &BookStore{pool: pool}
}

// UpsertBook inserts or updates a book's tradable state.
func (s *BookStore) UpsertBook(ctx context.Context, pos domain.BookPosition) error {
	const query = `
		INSERT INTO books (
			book, available_liquidity, current_exposure, max_bet_size,
			min_bet_size, reliability_score, recent_limit_changes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (book) DO UPDATE SET
			available_liquidity  = EXCLUDED.available_liquidity,
			current_exposure     = EXCLUDED.current_exposure,
			max_bet_size         = EXCLUDED.max_bet_size,
			min_bet_size         = EXCLUDED.min_bet_size,
			reliability_score    = EXCLUDED.reliability_score,
			recent_limit_changes = EXCLUDED.recent_limit_changes,
			updated_at           = NOW()`

	_, err := s.pool.Exec(ctx, query,
		pos.Book, pos.AvailableLiquidity, pos.CurrentExposure, pos.MaxBetSize,
		pos.MinBetSize, pos.ReliabilityScore, pos.RecentLimitChanges,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert book %s: %w", pos.Book, err)
	}
	return nil
}

const bookSelectCols = `book, available_liquidity, current_exposure, max_bet_size,
	min_bet_size, reliability_score, recent_limit_changes, updated_at`

// GetBook fetches one book's state. It returns domain.ErrNotFound when the
// book is unknown.
func (s *BookStore) GetBook(ctx context.Context, book string) (domain.BookPosition, error) {
	query := `SELECT ` + bookSelectCols + ` FROM books WHERE book = $1`

	var pos domain.BookPosition
	err := s.pool.QueryRow(ctx, query, book).Scan(
		&pos.Book, &pos.AvailableLiquidity, &pos.CurrentExposure, &pos.MaxBetSize,
		&pos.MinBetSize, &pos.ReliabilityScore, &pos.RecentLimitChanges, &pos.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BookPosition{}, domain.ErrNotFound
		}
		return domain.BookPosition{}, fmt.Errorf("postgres: get book %s: %w", book, err)
	}
	return pos, nil
}

// ListBooks returns all known books ordered by identifier.
func (s *BookStore) ListBooks(ctx context.Context) ([]domain.BookPosition, error) {
	query := `SELECT ` + bookSelectCols + ` FROM books ORDER BY book`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list books: %w", err)
	}
	defer rows.Close()

	var books []domain.BookPosition
	for rows.Next() {
		var pos domain.BookPosition
		if err := rows.Scan(
			&pos.Book, &pos.AvailableLiquidity, &pos.CurrentExposure, &pos.MaxBetSize,
			&pos.MinBetSize, &pos.ReliabilityScore, &pos.RecentLimitChanges, &pos.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan book: %w", err)
		}
		books = append(books, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list books rows: %w", err)
	}
	return books, nil
}

// InsertPosition records a newly placed stake.
func (s *BookStore) InsertPosition(ctx context.Context, pos domain.OpenPosition) error {
	const query = `
		INSERT INTO open_positions (id, book, market_id, outcome, stake, odds, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		pos.ID, pos.Book, pos.MarketID, pos.Outcome, pos.Stake, pos.Odds, pos.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert position %s: %w", pos.ID, err)
	}
	return nil
}

// ListOpenPositions returns every position not yet closed.
func (s *BookStore) ListOpenPositions(ctx context.Context) ([]domain.OpenPosition, error) {
	const query = `
		SELECT id, book, market_id, outcome, stake, odds, placed_at
		FROM open_positions
		WHERE closed_at IS NULL
		ORDER BY placed_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.OpenPosition
	for rows.Next() {
		var pos domain.OpenPosition
		if err := rows.Scan(
			&pos.ID, &pos.Book, &pos.MarketID, &pos.Outcome, &pos.Stake, &pos.Odds, &pos.PlacedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan open position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open positions rows: %w", err)
	}
	return positions, nil
}

// ClosePosition marks a position settled. It returns domain.ErrNotFound when
// the position does not exist or is already closed.
func (s *BookStore) ClosePosition(ctx context.Context, id string) error {
	const query = `UPDATE open_positions SET closed_at = NOW() WHERE id = $1 AND closed_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: close position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.BookStore = (*BookStore)(nil)
