package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/galaxynn/MDMS/internal/domain"
	"github.com/galaxynn/MDMS/internal/store"
)

// Insert failures caused by a dangling reference.
var (
	ErrMissingMovie = fmt.Errorf("%w: movie", ErrMissingReference)
	ErrMissingUser  = fmt.Errorf("%w: user", ErrMissingReference)
)

const (
	reviewMovieFK = "reviews_movie_id_fkey"
	reviewUserFK  = "reviews_user_id_fkey"
)

const reviewColumns = `review_id, movie_id, user_id, rating, comment, created_at`

// ReviewsRepository provides persistence helpers for reviews.
type ReviewsRepository struct {
	db store.DBTX
}

// ReviewInsertParams captures the payload required to insert a review.
type ReviewInsertParams struct {
	MovieID string
	UserID  string
	Rating  int
	Comment *string
}

// Insert stores a new review. A second review for the same (user, movie)
// pair yields ErrConflict.
func (r *ReviewsRepository) Insert(ctx context.Context, params ReviewInsertParams) (domain.Review, error) {
	query := fmt.Sprintf(`
        INSERT INTO reviews (review_id, movie_id, user_id, rating, comment)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.db.QueryRow(ctx, query,
		uuid.New().String(), params.MovieID, params.UserID, params.Rating, params.Comment))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Review{}, ErrConflict
		}
		if constraint, ok := foreignKeyConstraint(err); ok {
			switch constraint {
			case reviewMovieFK:
				return domain.Review{}, ErrMissingMovie
			case reviewUserFK:
				return domain.Review{}, ErrMissingUser
			}
			return domain.Review{}, fmt.Errorf("%w: %s", ErrMissingReference, constraint)
		}
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

// GetByID fetches a review by its identifier.
func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE review_id = $1`, reviewColumns)
	return r.getOne(ctx, query, id)
}

// GetByUserAndMovie fetches the single review a user wrote for a movie.
func (r *ReviewsRepository) GetByUserAndMovie(ctx context.Context, userID, movieID string) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE user_id = $1 AND movie_id = $2`, reviewColumns)
	return r.getOne(ctx, query, userID, movieID)
}

// UpdateContent overwrites rating and comment. Movie and user stay as they were.
func (r *ReviewsRepository) UpdateContent(ctx context.Context, id string, rating int, comment *string) (domain.Review, error) {
	query := fmt.Sprintf(`
        UPDATE reviews
        SET rating = $2, comment = $3
        WHERE review_id = $1
        RETURNING %s
    `, reviewColumns)
	return r.getOne(ctx, query, id, rating, comment)
}

// Delete removes a review and reports whether a row was deleted.
func (r *ReviewsRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE review_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete review: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Aggregate returns the review count and the average rating rounded to two
// decimals (half away from zero) for a movie. No reviews yields 0 / 0.
func (r *ReviewsRepository) Aggregate(ctx context.Context, movieID string) (domain.RatingSummary, error) {
	const query = `
        SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0)::float8 AS average,
               COUNT(*)::int8 AS count
        FROM reviews
        WHERE movie_id = $1
    `

	agg := domain.RatingSummary{MovieID: movieID}
	if err := r.db.QueryRow(ctx, query, movieID).Scan(&agg.Average, &agg.Count); err != nil {
		return domain.RatingSummary{}, fmt.Errorf("aggregate reviews: %w", err)
	}
	return agg, nil
}

// ListByMovie returns the newest reviews for a movie.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID string, limit int) ([]domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE movie_id = $1
        ORDER BY created_at DESC, review_id DESC
        LIMIT $2
    `, reviewColumns)
	return r.list(ctx, query, movieID, clampLimit(limit))
}

// ListByUser returns the newest reviews written by a user.
func (r *ReviewsRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Review, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE user_id = $1
        ORDER BY created_at DESC, review_id DESC
        LIMIT $2
    `, reviewColumns)
	return r.list(ctx, query, userID, clampLimit(limit))
}

func (r *ReviewsRepository) getOne(ctx context.Context, query string, args ...any) (domain.Review, error) {
	review, err := scanReview(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

func (r *ReviewsRepository) list(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.MovieID,
		&review.UserID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	return review, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
