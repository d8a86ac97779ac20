package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Cache provides query result caching
type Cache interface {
	// GetQueryResult retrieves a cached query result by key
	// Returns nil if not found
	GetQueryResult(ctx context.Context, key string) (*QueryResult, error)

	// SetQueryResult stores a query result with TTL
	SetQueryResult(ctx context.Context, key string, result *QueryResult, ttl time.Duration) error

	// InvalidateStale removes cached queries that belong to any corpus
	// other than the one identified by fingerprint
	InvalidateStale(ctx context.Context, fingerprint string) error

	// Close closes the cache connection
	Close() error
}

// QueryResult represents a cached search response
type QueryResult struct {
	Query    string    `json:"query"`
	Results  []Source  `json:"results"`
	CachedAt time.Time `json:"cached_at"`
}

// Source is one ranked sentence in a cached result
type Source struct {
	Index    int     `json:"index"`
	Sentence string  `json:"sentence"`
	Score    float32 `json:"score"`
}

// GenerateCacheKey scopes a query to a corpus fingerprint and result count.
// The returned key has the form "<fingerprint>:<hash>".
func GenerateCacheKey(fingerprint, query string, k int) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(query)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k)))
	return fingerprint + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}
