package aggregation

import (
	"errors"
	"fmt"

	"github.com/galaxynn/MDMS/internal/domain"
)

// Failures surfaced by the engine; match them with errors.Is.
var (
	// ErrDuplicateReview rejects a second review by the same user for the same movie.
	ErrDuplicateReview = errors.New("aggregation: user already reviewed this movie")
	// ErrInvalidRating rejects ratings outside the accepted range.
	ErrInvalidRating = fmt.Errorf("aggregation: rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	// ErrReviewNotFound is returned when the referenced review does not exist.
	ErrReviewNotFound = errors.New("aggregation: review not found")
	// ErrMovieNotFound is returned when the referenced movie does not exist.
	ErrMovieNotFound = errors.New("aggregation: movie not found")
	// ErrUserNotFound is returned when the authoring user does not exist.
	ErrUserNotFound = errors.New("aggregation: user not found")
)
