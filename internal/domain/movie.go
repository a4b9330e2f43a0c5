package domain

import "time"

// Movie represents the canonical movie entity in the database/service.
// RatingCount and AverageRating are derived from the movie's reviews and are
// only written by the aggregation engine.
type Movie struct {
	ID             string
	Title          string
	Synopsis       *string
	ReleaseDate    *time.Time
	RuntimeMinutes *int
	Country        *string
	Language       *string
	PosterURL      *string
	AverageRating  float64
	RatingCount    int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Summary returns the movie's stored rating aggregate.
func (m Movie) Summary() RatingSummary {
	return RatingSummary{
		MovieID: m.ID,
		Average: m.AverageRating,
		Count:   m.RatingCount,
	}
}
