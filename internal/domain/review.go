package domain

import "time"

// Rating bounds accepted for a review, inclusive.
const (
	MinRating = 1
	MaxRating = 10
)

// Review represents a single user's review of a movie.
// MovieID and UserID never change after creation.
type Review struct {
	ID        string
	MovieID   string
	UserID    string
	Rating    int
	Comment   *string
	CreatedAt time.Time
}

// RatingSummary provides average and count for a movie's reviews.
// Average carries two fractional digits and is 0 when Count is 0.
type RatingSummary struct {
	MovieID string
	Average float64
	Count   int64
}

// ValidRating reports whether r lies in [MinRating, MaxRating].
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
