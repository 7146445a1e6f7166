package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// defaultSaleTTL bounds staleness of cached snapshots when an invalidation is
// lost (for example a failed delete after a purchase).
const defaultSaleTTL = 2 * time.Minute

// SaleCache implements domain.SaleInfoCache using JSON-serialized snapshots.
//
// Key schema:
//
//	sale:{edition}/{saleID} - JSON SaleInfo
type SaleCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSaleCache creates a SaleCache backed by the given Client. A zero ttl
// falls back to the package default.
func NewSaleCache(c *Client, ttl time.Duration) *SaleCache {
	if ttl <= 0 {
		ttl = defaultSaleTTL
	}
	return &SaleCache{rdb: c.Underlying(), ttl: ttl}
}

func saleKey(key domain.SaleKey) string {
	return "sale:" + key.String()
}

// Set stores a snapshot with the configured TTL.
func (sc *SaleCache) Set(ctx context.Context, info domain.SaleInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("redis: marshal sale %s: %w", info.Key, err)
	}
	if err := sc.rdb.Set(ctx, saleKey(info.Key), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set sale %s: %w", info.Key, err)
	}
	return nil
}

// Get retrieves a snapshot, returning domain.ErrNotFound on a cache miss.
func (sc *SaleCache) Get(ctx context.Context, key domain.SaleKey) (domain.SaleInfo, error) {
	data, err := sc.rdb.Get(ctx, saleKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SaleInfo{}, domain.ErrNotFound
		}
		return domain.SaleInfo{}, fmt.Errorf("redis: get sale %s: %w", key, err)
	}

	var info domain.SaleInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.SaleInfo{}, fmt.Errorf("redis: unmarshal sale %s: %w", key, err)
	}
	return info, nil
}

// Invalidate removes a snapshot after the underlying record changed.
func (sc *SaleCache) Invalidate(ctx context.Context, key domain.SaleKey) error {
	if err := sc.rdb.Del(ctx, saleKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate sale %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SaleInfoCache = (*SaleCache)(nil)
