package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surebot/surebot/internal/domain"
)

// positionTTL bounds how long a cached book snapshot is served. Positions
// move as bets settle and limits change; a stale snapshot past this window
// is worse than a database round trip.
const positionTTL = 5 * time.Minute

// PositionCache implements domain.PositionCache using JSON-encoded book
// snapshots stored under the namespaced key "position:{book}" with a TTL.
type PositionCache struct {
	client *Client
}

// NewPositionCache creates a PositionCache backed by the given Client.
func NewPositionCache(c *Client) *PositionCache {
	return &PositionCache{client: c}
}

func (pc *PositionCache) positionKey(book string) string {
	return pc.client.key("position", book)
}

// SetPosition stores the latest snapshot for a book.
func (pc *PositionCache) SetPosition(ctx context.Context, pos domain.BookPosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("redis: marshal position %s: %w", pos.Book, err)
	}
	if err := pc.client.rdb.Set(ctx, pc.positionKey(pos.Book), data, positionTTL).Err(); err != nil {
		return fmt.Errorf("redis: set position %s: %w", pos.Book, err)
	}
	return nil
}

// GetPosition retrieves the latest snapshot for a book. It returns
// domain.ErrNotFound when no snapshot is cached.
func (pc *PositionCache) GetPosition(ctx context.Context, book string) (domain.BookPosition, error) {
	data, err := pc.client.rdb.Get(ctx, pc.positionKey(book)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BookPosition{}, domain.ErrNotFound
		}
		return domain.BookPosition{}, fmt.Errorf("redis: get position %s: %w", book, err)
	}

	var pos domain.BookPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return domain.BookPosition{}, fmt.Errorf("redis: decode position %s: %w", book, err)
	}
	return pos, nil
}

// GetPositions retrieves snapshots for multiple books using a pipeline.
// Books without a cached entry are silently omitted from the result map.
func (pc *PositionCache) GetPositions(ctx context.Context, books []string) (map[string]domain.BookPosition, error) {
	if len(books) == 0 {
		return map[string]domain.BookPosition{}, nil
	}

	pipe := pc.client.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(books))
	for _, book := range books {
		cmds[book] = pipe.Get(ctx, pc.positionKey(book))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get positions pipeline: %w", err)
	}

	result := make(map[string]domain.BookPosition, len(books))
	for book, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var pos domain.BookPosition
		if err := json.Unmarshal(data, &pos); err != nil {
			continue
		}
		result[book] = pos
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PositionCache = (*PositionCache)(nil)
