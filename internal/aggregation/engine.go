// Package aggregation keeps a movie's rating_count and average_rating equal
// to the aggregate of its reviews. Every review mutation recomputes the
// owning movie inside the caller's unit-of-work; nothing here commits.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/galaxynn/MDMS/internal/domain"
	"github.com/galaxynn/MDMS/internal/repository"
	"github.com/galaxynn/MDMS/internal/store"
)

// Engine mutates reviews and recomputes the derived movie stats. It holds no
// per-call state and is safe to share.
type Engine struct {
	logger *log.Logger
}

// NewEngine constructs an Engine.
func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{logger: logger}
}

// CreateReviewParams captures the payload required to create a review.
type CreateReviewParams struct {
	UserID  string
	MovieID string
	Rating  int
	Comment *string
}

// Recompute re-derives rating_count and average_rating for movieID from a
// fresh aggregate over its reviews and writes them onto the movie row.
func (e *Engine) Recompute(ctx context.Context, uow store.DBTX, movieID string) (domain.RatingSummary, error) {
	summary, _, err := e.recompute(ctx, repository.New(uow), movieID)
	return summary, err
}

// CreateReview inserts a review and recomputes its movie. A user may hold at
// most one review per movie; a second attempt fails with ErrDuplicateReview
// before anything is written.
func (e *Engine) CreateReview(ctx context.Context, uow store.DBTX, params CreateReviewParams) (domain.Review, error) {
	if !domain.ValidRating(params.Rating) {
		return domain.Review{}, fmt.Errorf("%w: got %d", ErrInvalidRating, params.Rating)
	}

	repo := repository.New(uow)

	_, err := repo.Reviews.GetByUserAndMovie(ctx, params.UserID, params.MovieID)
	switch {
	case err == nil:
		return domain.Review{}, ErrDuplicateReview
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Review{}, fmt.Errorf("check existing review: %w", err)
	}

	review, err := repo.Reviews.Insert(ctx, repository.ReviewInsertParams{
		MovieID: params.MovieID,
		UserID:  params.UserID,
		Rating:  params.Rating,
		Comment: params.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return domain.Review{}, ErrDuplicateReview
		case errors.Is(err, repository.ErrMissingMovie):
			return domain.Review{}, fmt.Errorf("%w: %s", ErrMovieNotFound, params.MovieID)
		case errors.Is(err, repository.ErrMissingUser):
			return domain.Review{}, fmt.Errorf("%w: %s", ErrUserNotFound, params.UserID)
		}
		return domain.Review{}, err
	}

	if _, _, err := e.recompute(ctx, repo, review.MovieID); err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// UpdateReview overwrites the rating and comment of an existing review and
// recomputes its movie. The movie and user references never change.
func (e *Engine) UpdateReview(ctx context.Context, uow store.DBTX, reviewID string, rating int, comment *string) (domain.Review, error) {
	if !domain.ValidRating(rating) {
		return domain.Review{}, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}

	repo := repository.New(uow)

	review, err := repo.Reviews.UpdateContent(ctx, reviewID, rating, comment)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Review{}, fmt.Errorf("%w: %s", ErrReviewNotFound, reviewID)
		}
		return domain.Review{}, fmt.Errorf("update review: %w", err)
	}

	if _, _, err := e.recompute(ctx, repo, review.MovieID); err != nil {
		return domain.Review{}, err
	}
	return review, nil
}

// DeleteReview removes a review and recomputes its movie. Deleting a review
// that does not exist is a no-op and reports deleted == false.
func (e *Engine) DeleteReview(ctx context.Context, uow store.DBTX, reviewID string) (bool, error) {
	repo := repository.New(uow)

	review, err := repo.Reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load review: %w", err)
	}

	deleted, err := repo.Reviews.Delete(ctx, review.ID)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	if _, _, err := e.recompute(ctx, repo, review.MovieID); err != nil {
		return false, err
	}
	return true, nil
}

// recompute locks the movie row, aggregates its reviews and stores the
// result. changed reports whether the stored values differed beforehand.
func (e *Engine) recompute(ctx context.Context, repo *repository.Repository, movieID string) (domain.RatingSummary, bool, error) {
	before, err := repo.Movies.LockStats(ctx, movieID)
	if err != nil {
		recomputesTotal.WithLabelValues("error").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			e.logger.Printf("aggregation: recompute called for missing movie %s", movieID)
			return domain.RatingSummary{}, false, fmt.Errorf("%w: %s", ErrMovieNotFound, movieID)
		}
		return domain.RatingSummary{}, false, err
	}

	summary, err := repo.Reviews.Aggregate(ctx, movieID)
	if err != nil {
		recomputesTotal.WithLabelValues("error").Inc()
		return domain.RatingSummary{}, false, err
	}

	if err := repo.Movies.SetRatingStats(ctx, summary); err != nil {
		recomputesTotal.WithLabelValues("error").Inc()
		return domain.RatingSummary{}, false, err
	}

	recomputesTotal.WithLabelValues("ok").Inc()
	changed := before.Count != summary.Count || before.Average != summary.Average
	return summary, changed, nil
}
