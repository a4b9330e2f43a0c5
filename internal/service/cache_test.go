package service

import (
	"testing"
	"time"

	"github.com/galaxynn/MDMS/internal/domain"
)

func TestRatingCache_GetSetInvalidate(t *testing.T) {
	cache := NewRatingCache(10, time.Minute)

	if _, ok := cache.Get("m1"); ok {
		t.Fatal("expected miss for new key")
	}

	cache.Set(domain.RatingSummary{MovieID: "m1", Average: 7.5, Count: 2})
	got, ok := cache.Get("m1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.Average != 7.5 || got.Count != 2 {
		t.Errorf("summary = %+v", got)
	}

	cache.Invalidate("m1")
	if _, ok := cache.Get("m1"); ok {
		t.Fatal("expected miss after Invalidate")
	}
}

func TestRatingCache_Purge(t *testing.T) {
	cache := NewRatingCache(10, time.Minute)
	cache.Set(domain.RatingSummary{MovieID: "a"})
	cache.Set(domain.RatingSummary{MovieID: "b"})

	cache.Purge()
	if cache.Len() != 0 {
		t.Fatalf("Len = %d after Purge, want 0", cache.Len())
	}
}

func TestRatingCache_Eviction(t *testing.T) {
	cache := NewRatingCache(2, time.Minute)
	cache.Set(domain.RatingSummary{MovieID: "a"})
	cache.Set(domain.RatingSummary{MovieID: "b"})
	cache.Set(domain.RatingSummary{MovieID: "c"})

	if _, ok := cache.Get("a"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}
}

func TestRatingCache_TTL(t *testing.T) {
	cache := NewRatingCache(10, 50*time.Millisecond)
	cache.Set(domain.RatingSummary{MovieID: "ttl"})

	time.Sleep(150 * time.Millisecond)
	if _, ok := cache.Get("ttl"); ok {
		t.Fatal("expected entry to expire")
	}
}
