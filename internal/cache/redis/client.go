// Package redis implements the domain cache, lock, and signal-bus
// interfaces using go-redis/v9. All keys, channels, and streams live under
// a configurable namespace so several deployments can share one Redis.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// defaultNamespace prefixes every key when the config leaves it unset.
const defaultNamespace = "surebot"

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// Namespace prefixes every key, channel, and stream name.
	Namespace string
}

// Client wraps a go-redis Client and owns the key namespace shared by the
// position cache, the lock manager, and the signal bus.
type Client struct {
	rdb *redis.Client
	ns  string
}

// New creates a new Redis Client, pings it to verify connectivity, and
// returns the wrapper. It returns an error if the connection cannot be
// established.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = defaultNamespace
	}

	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
		ClientName: ns,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Client{rdb: rdb, ns: ns}, nil
}

// key builds a namespaced key from its parts: "{ns}:{part}:{part}...".
func (c *Client) key(parts ...string) string {
	return c.ns + ":" + strings.Join(parts, ":")
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
