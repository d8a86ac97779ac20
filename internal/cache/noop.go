package cache

import (
	"context"
	"time"
)

// NoOpCache is a cache implementation that does nothing.
// Used when caching is disabled or Redis is unreachable at startup.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// GetQueryResult always misses.
func (c *NoOpCache) GetQueryResult(ctx context.Context, key string) (*QueryResult, error) {
	return nil, nil
}

func (c *NoOpCache) SetQueryResult(ctx context.Context, key string, result *QueryResult, ttl time.Duration) error {
	return nil
}

func (c *NoOpCache) InvalidateStale(ctx context.Context, fingerprint string) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
