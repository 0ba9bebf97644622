package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
)

// ErrCacheMiss is returned when no snapshot is cached for the index
var ErrCacheMiss = errors.New("chain cache: snapshot not found")

const snapshotKeyPrefix = "chain:snapshot:%s"

// Cache keeps the latest chain snapshot per index in Redis so analyzers can
// fall back to recent data when NSE is unreachable. Degrades to a no-op when
// Redis is down.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache wraps a Redis client. A zero TTL defaults to 15 minutes.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logging.WithComponent("chain.cache"),
	}
}

// Put stores the snapshot under the index key
func (c *Cache) Put(ctx context.Context, s *Snapshot) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	key := fmt.Sprintf(snapshotKeyPrefix, s.Index)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Snapshot cache write failed", "index", string(s.Index), "error", err)
		return err
	}
	return nil
}

// Get returns the cached snapshot for the index, ErrCacheMiss when absent
func (c *Cache) Get(ctx context.Context, index market.Index) (*Snapshot, error) {
	if c.client == nil {
		return nil, ErrCacheMiss
	}

	key := fmt.Sprintf(snapshotKeyPrefix, index)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot cache: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding cached snapshot: %w", err)
	}
	return &s, nil
}
