// Package cache stores assessment reports so identical requests against the same model version
// skip inference.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// MemoryCache is a bounded in-process cache with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.AssessmentReport]
}

var _ domain.ReportCache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache holding at most maxItems reports for ttl each.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.AssessmentReport](maxItems, nil, ttl),
	}
}

// Get returns a copy of the cached report.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.AssessmentReport, bool, error) {
	report, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return report.Clone(), true, nil
}

// Set stores a copy of report.
func (c *MemoryCache) Set(_ context.Context, key string, report *domain.AssessmentReport) error {
	c.lru.Add(key, report.Clone())
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}
