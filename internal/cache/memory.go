// Package cache provides result caching for risk computations. The engine is
// deterministic, so identical profiles can be served from cache without
// recomputation. An in-memory LRU is always available; Redis can be layered
// on top for multi-instance deployments.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ascvd-risk-server/internal/domain"
)

// ResultCache is the interface for risk result caching.
type ResultCache interface {
	Get(ctx context.Context, profile *domain.PatientProfile) (*domain.RiskResult, bool)
	Set(ctx context.Context, profile *domain.PatientProfile, result *domain.RiskResult)
}

// ProfileKey creates a deterministic cache key from the risk inputs.
func ProfileKey(profile *domain.PatientProfile) string {
	data := fmt.Sprintf("%s:%s:%d:%g:%g:%g:%t:%t:%t",
		profile.Sex, profile.Race, profile.Age,
		profile.TotalCholesterol, profile.HDLCholesterol, profile.SystolicBP,
		profile.OnBPTreatment, profile.Diabetes, profile.Smoker)

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("risk:%x", hash[:16])
}

// MemoryCache is an in-process LRU cache with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.RiskResult]
}

// NewMemoryCache creates a memory cache holding at most maxItems entries,
// each expiring after ttl.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, *domain.RiskResult](maxItems, nil, ttl),
	}
}

// Get returns the cached result for a profile, if present.
func (c *MemoryCache) Get(_ context.Context, profile *domain.PatientProfile) (*domain.RiskResult, bool) {
	return c.lru.Get(ProfileKey(profile))
}

// Set stores a result for a profile.
func (c *MemoryCache) Set(_ context.Context, profile *domain.PatientProfile, result *domain.RiskResult) {
	c.lru.Add(ProfileKey(profile), result)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge drops all entries.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}
