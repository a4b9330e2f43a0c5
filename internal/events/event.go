// Package events carries review-change notifications to downstream
// consumers once the owning transaction has committed.
package events

import (
	"context"
	"time"
)

// Event types emitted for review mutations.
const (
	TypeReviewCreated = "review.created"
	TypeReviewUpdated = "review.updated"
	TypeReviewDeleted = "review.deleted"
)

// ReviewEvent describes a committed review mutation together with the movie
// stats it produced, so consumers never need to query the database.
type ReviewEvent struct {
	Type          string    `json:"type"`
	ReviewID      string    `json:"review_id"`
	MovieID       string    `json:"movie_id"`
	UserID        string    `json:"user_id"`
	Rating        int       `json:"rating,omitempty"`
	RatingCount   int64     `json:"rating_count"`
	AverageRating float64   `json:"average_rating"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers review events.
type Publisher interface {
	PublishReview(ctx context.Context, event ReviewEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishReview implements Publisher.
func (NopPublisher) PublishReview(context.Context, ReviewEvent) error { return nil }
