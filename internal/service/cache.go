package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/galaxynn/MDMS/internal/domain"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mdms_rating_cache_hits_total",
		Help: "Rating summary cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mdms_rating_cache_misses_total",
		Help: "Rating summary cache misses.",
	})
)

// RatingCache keeps recently read movie summaries in memory with a TTL.
// Each process owns its cache; writers invalidate after commit.
type RatingCache struct {
	cache *expirable.LRU[string, domain.RatingSummary]
}

// NewRatingCache creates a cache holding at most maxSize summaries for ttl.
func NewRatingCache(maxSize int, ttl time.Duration) *RatingCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &RatingCache{cache: expirable.NewLRU[string, domain.RatingSummary](maxSize, nil, ttl)}
}

// Get returns the cached summary for movieID.
func (c *RatingCache) Get(movieID string) (domain.RatingSummary, bool) {
	val, ok := c.cache.Get(movieID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return domain.RatingSummary{}, false
}

// Set stores summary under its movie id.
func (c *RatingCache) Set(summary domain.RatingSummary) {
	c.cache.Add(summary.MovieID, summary)
}

// Invalidate drops the entry for movieID.
func (c *RatingCache) Invalidate(movieID string) {
	c.cache.Remove(movieID)
}

// Purge drops every entry.
func (c *RatingCache) Purge() {
	c.cache.Purge()
}

// Len reports the number of live entries.
func (c *RatingCache) Len() int {
	return c.cache.Len()
}
