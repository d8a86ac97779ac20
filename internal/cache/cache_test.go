package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNoOpCache(t *testing.T) {
	cache := NewNoOpCache()
	ctx := context.Background()

	result, err := cache.GetQueryResult(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result (cache miss), got %v", result)
	}

	err = cache.SetQueryResult(ctx, "test-key", &QueryResult{
		Query:   "owl",
		Results: []Source{{Index: 0, Sentence: "Harry looked at the owl.", Score: 0.9}},
	}, time.Hour)
	if err != nil {
		t.Errorf("Expected no error on SetQueryResult, got %v", err)
	}

	// Still a miss: nothing is stored
	result, err = cache.GetQueryResult(ctx, "test-key")
	if err != nil || result != nil {
		t.Errorf("Expected miss after set, got %v, %v", result, err)
	}

	if err := cache.InvalidateStale(ctx, "abc"); err != nil {
		t.Errorf("Expected no error on InvalidateStale, got %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("Expected no error on Close, got %v", err)
	}
}

func TestGenerateCacheKey(t *testing.T) {
	base := GenerateCacheKey("fp1", "the owl", 5)

	if !strings.HasPrefix(base, "fp1:") {
		t.Errorf("key %q should start with the fingerprint", base)
	}
	if got := GenerateCacheKey("fp1", "  the owl\n", 5); got != base {
		t.Errorf("surrounding whitespace should not change the key: %q vs %q", got, base)
	}

	tests := []struct {
		name        string
		fingerprint string
		query       string
		k           int
	}{
		{"different query", "fp1", "the cat", 5},
		{"different k", "fp1", "the owl", 3},
		{"different corpus", "fp2", "the owl", 5},
		{"case matters", "fp1", "The Owl", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateCacheKey(tt.fingerprint, tt.query, tt.k); got == base {
				t.Errorf("expected a different key, got %q", got)
			}
		})
	}
}

func TestIsStale(t *testing.T) {
	tests := []struct {
		key   string
		stale bool
	}{
		{"query:fp1:abcd", false},
		{"query:fp2:abcd", true},
		{"query:fp10:abcd", true},
		{"query:abcd", true},
	}
	for _, tt := range tests {
		if got := isStale(tt.key, "fp1"); got != tt.stale {
			t.Errorf("isStale(%q) = %v, want %v", tt.key, got, tt.stale)
		}
	}
}
