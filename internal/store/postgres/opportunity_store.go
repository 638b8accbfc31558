package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surebot/surebot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, event_id, event_name, market_id, market_type,
	odds, books, bets, total_stake, profit_pct, risk_score, sources, detected_at, settled_at`

// Insert stores a new detected opportunity. The odds, books, and bets maps
// are stored as JSONB.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	oddsJSON, err := json.Marshal(opp.Odds)
	if err != nil {
		return fmt.Errorf("postgres: marshal odds for %s: %w", opp.ID, err)
	}
	booksJSON, err := json.Marshal(opp.Books)
	if err != nil {
		return fmt.Errorf("postgres: marshal books for %s: %w", opp.ID, err)
	}
	betsJSON, err := json.Marshal(opp.Bets)
	if err != nil {
		return fmt.Errorf("postgres: marshal bets for %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO opportunities (
			id, event_id, event_name, market_id, market_type,
			odds, books, bets, total_stake, profit_pct, risk_score, sources, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.EventID, opp.EventName, opp.MarketID, opp.MarketType,
		oddsJSON, booksJSON, betsJSON, opp.TotalStake, opp.ProfitPct, opp.RiskScore,
		opp.Sources, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// MarkSettled stamps an opportunity as settled. It returns domain.ErrNotFound
// when the row does not exist or was already settled.
func (s *OpportunityStore) MarkSettled(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET settled_at = NOW() WHERE id = $1 AND settled_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark opportunity %s settled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches one opportunity. It returns domain.ErrNotFound when no row
// matches.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE id = $1`

	opp, err := scanOpportunity(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, domain.ErrNotFound
		}
		return domain.Opportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return opp, nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	return s.list(ctx, query, args...)
}

// ListBefore returns opportunities detected before cutoff, oldest first, for
// archival batching.
func (s *OpportunityStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	return s.list(ctx, query, args...)
}

// DeleteBefore removes opportunities detected before cutoff and returns the
// number of rows deleted.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *OpportunityStore) list(ctx context.Context, query string, args ...any) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return opps, nil
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var opp domain.Opportunity
	var oddsJSON, booksJSON, betsJSON []byte

	if err := row.Scan(
		&opp.ID, &opp.EventID, &opp.EventName, &opp.MarketID, &opp.MarketType,
		&oddsJSON, &booksJSON, &betsJSON, &opp.TotalStake, &opp.ProfitPct, &opp.RiskScore,
		&opp.Sources, &opp.DetectedAt, &opp.SettledAt,
	); err != nil {
		return domain.Opportunity{}, err
	}

	if err := json.Unmarshal(oddsJSON, &opp.Odds); err != nil {
		return domain.Opportunity{}, fmt.Errorf("unmarshal odds: %w", err)
	}
	if err := json.Unmarshal(booksJSON, &opp.Books); err != nil {
		return domain.Opportunity{}, fmt.Errorf("unmarshal books: %w", err)
	}
	if err := json.Unmarshal(betsJSON, &opp.Bets); err != nil {
		return domain.Opportunity{}, fmt.Errorf("unmarshal bets: %w", err)
	}
	return opp, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
