// Package service owns the transaction boundary around the aggregation
// engine. Each mutation runs in exactly one unit-of-work; cache
// invalidation and event publishing happen only after it commits.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/galaxynn/MDMS/internal/aggregation"
	"github.com/galaxynn/MDMS/internal/domain"
	"github.com/galaxynn/MDMS/internal/events"
	"github.com/galaxynn/MDMS/internal/repository"
	"github.com/galaxynn/MDMS/internal/store"
)

// ErrForbidden is returned when a caller modifies a review they do not own.
var ErrForbidden = errors.New("service: review belongs to another user")

const publishTimeout = 5 * time.Second

// Caller identifies who issues a request.
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller may act on any user's reviews.
func (c Caller) IsAdmin() bool { return c.Role == domain.RoleAdmin }

// Options configures optional collaborators.
type Options struct {
	Cache     *RatingCache
	Publisher events.Publisher
	Logger    *log.Logger
}

// ReviewService coordinates review mutations, reads and repairs.
type ReviewService struct {
	db        *store.Store
	reader    *repository.Repository
	engine    *aggregation.Engine
	sweeper   *aggregation.Sweeper
	cache     *RatingCache
	publisher events.Publisher
	logger    *log.Logger
}

// ReviewResult is a committed review together with its movie's new stats.
type ReviewResult struct {
	Review  domain.Review
	Summary domain.RatingSummary
}

// NewReviewService wires a ReviewService over db.
func NewReviewService(db *store.Store, engine *aggregation.Engine, opts Options) *ReviewService {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewRatingCache(0, time.Minute)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ReviewService{
		db:        db,
		reader:    repository.New(db.Pool()),
		engine:    engine,
		sweeper:   aggregation.NewSweeper(engine, db, logger),
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Create adds the caller's review for movieID.
func (s *ReviewService) Create(ctx context.Context, caller Caller, movieID string, rating int, comment *string) (ReviewResult, error) {
	var result ReviewResult
	err := s.mutate(ctx, "create", func(tx store.DBTX) error {
		review, err := s.engine.CreateReview(ctx, tx, aggregation.CreateReviewParams{
			UserID:  caller.UserID,
			MovieID: movieID,
			Rating:  rating,
			Comment: comment,
		})
		if err != nil {
			return err
		}
		summary, err := currentSummary(ctx, repository.New(tx), review.MovieID)
		if err != nil {
			return err
		}
		result = ReviewResult{Review: review, Summary: summary}
		return nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	s.afterCommit(ctx, events.TypeReviewCreated, result)
	return result, nil
}

// Update replaces rating and comment on a review the caller owns. Admins may
// update any review.
func (s *ReviewService) Update(ctx context.Context, caller Caller, reviewID string, rating int, comment *string) (ReviewResult, error) {
	var result ReviewResult
	err := s.mutate(ctx, "update", func(tx store.DBTX) error {
		existing, err := repository.New(tx).Reviews.GetByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", aggregation.ErrReviewNotFound, reviewID)
			}
			return err
		}
		if err := authorize(caller, existing); err != nil {
			return err
		}

		review, err := s.engine.UpdateReview(ctx, tx, reviewID, rating, comment)
		if err != nil {
			return err
		}
		summary, err := currentSummary(ctx, repository.New(tx), review.MovieID)
		if err != nil {
			return err
		}
		result = ReviewResult{Review: review, Summary: summary}
		return nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	s.afterCommit(ctx, events.TypeReviewUpdated, result)
	return result, nil
}

// Delete removes a review the caller owns. Deleting a missing review
// succeeds and reports false.
func (s *ReviewService) Delete(ctx context.Context, caller Caller, reviewID string) (bool, error) {
	var (
		result  ReviewResult
		deleted bool
	)
	err := s.mutate(ctx, "delete", func(tx store.DBTX) error {
		existing, err := repository.New(tx).Reviews.GetByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := authorize(caller, existing); err != nil {
			return err
		}

		deleted, err = s.engine.DeleteReview(ctx, tx, reviewID)
		if err != nil || !deleted {
			return err
		}
		summary, err := currentSummary(ctx, repository.New(tx), existing.MovieID)
		if err != nil {
			return err
		}
		result = ReviewResult{Review: existing, Summary: summary}
		return nil
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.afterCommit(ctx, events.TypeReviewDeleted, result)
	}
	return deleted, nil
}

// Recompute re-derives the stats of one movie in its own transaction.
func (s *ReviewService) Recompute(ctx context.Context, movieID string) (domain.RatingSummary, error) {
	var summary domain.RatingSummary
	err := s.mutate(ctx, "recompute", func(tx store.DBTX) error {
		var err error
		summary, err = s.engine.Recompute(ctx, tx, movieID)
		return err
	})
	if err != nil {
		return domain.RatingSummary{}, err
	}
	s.cache.Invalidate(movieID)
	return summary, nil
}

// RepairAll runs the repair sweep over every movie.
func (s *ReviewService) RepairAll(ctx context.Context) (aggregation.SweepReport, error) {
	report, err := s.sweeper.Run(ctx)
	if err != nil {
		return report, err
	}
	s.cache.Purge()
	return report, nil
}

// Summary returns the stored rating stats of a movie, served from cache when
// possible.
func (s *ReviewService) Summary(ctx context.Context, movieID string) (domain.RatingSummary, error) {
	if summary, ok := s.cache.Get(movieID); ok {
		return summary, nil
	}
	summary, err := currentSummary(ctx, s.reader, movieID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	s.cache.Set(summary)
	return summary, nil
}

// MyReview returns the caller's review for movieID so clients can switch to
// the update path instead of creating a duplicate.
func (s *ReviewService) MyReview(ctx context.Context, caller Caller, movieID string) (domain.Review, error) {
	review, err := s.reader.Reviews.GetByUserAndMovie(ctx, caller.UserID, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Review{}, aggregation.ErrReviewNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

// MovieReviews lists the newest reviews of a movie.
func (s *ReviewService) MovieReviews(ctx context.Context, movieID string, limit int) ([]domain.Review, error) {
	if _, err := s.reader.Movies.GetByID(ctx, movieID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, aggregation.ErrMovieNotFound
		}
		return nil, err
	}
	return s.reader.Reviews.ListByMovie(ctx, movieID, limit)
}

// UserReviews lists the newest reviews written by userID.
func (s *ReviewService) UserReviews(ctx context.Context, userID string, limit int) ([]domain.Review, error) {
	return s.reader.Reviews.ListByUser(ctx, userID, limit)
}

func (s *ReviewService) mutate(ctx context.Context, op string, fn func(tx store.DBTX) error) error {
	start := time.Now()
	err := s.db.RunInTx(ctx, fn)
	mutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	mutationsTotal.WithLabelValues(op, outcome(err)).Inc()
	return err
}

func (s *ReviewService) afterCommit(ctx context.Context, eventType string, result ReviewResult) {
	s.cache.Invalidate(result.Review.MovieID)

	event := events.ReviewEvent{
		Type:          eventType,
		ReviewID:      result.Review.ID,
		MovieID:       result.Review.MovieID,
		UserID:        result.Review.UserID,
		RatingCount:   result.Summary.Count,
		AverageRating: result.Summary.Average,
		OccurredAt:    time.Now().UTC(),
	}
	if eventType != events.TypeReviewDeleted {
		event.Rating = result.Review.Rating
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishReview(pubCtx, event); err != nil {
		publishFailuresTotal.Inc()
		s.logger.Printf("service: publish %s for review %s failed: %v", eventType, event.ReviewID, err)
	}
}

func authorize(caller Caller, review domain.Review) error {
	if caller.IsAdmin() || caller.UserID == review.UserID {
		return nil
	}
	return ErrForbidden
}

func currentSummary(ctx context.Context, repo *repository.Repository, movieID string) (domain.RatingSummary, error) {
	movie, err := repo.Movies.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.RatingSummary{}, fmt.Errorf("%w: %s", aggregation.ErrMovieNotFound, movieID)
		}
		return domain.RatingSummary{}, err
	}
	return movie.Summary(), nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, aggregation.ErrDuplicateReview):
		return "duplicate"
	case errors.Is(err, aggregation.ErrInvalidRating):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, aggregation.ErrReviewNotFound),
		errors.Is(err, aggregation.ErrMovieNotFound),
		errors.Is(err, aggregation.ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}
