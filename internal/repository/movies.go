package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/galaxynn/MDMS/internal/domain"
	"github.com/galaxynn/MDMS/internal/store"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	db store.DBTX
}

const movieColumns = `
    movie_id,
    title,
    synopsis,
    release_date,
    runtime_minutes,
    country,
    language,
    poster_url,
    average_rating::float8,
    rating_count,
    created_at,
    updated_at
`

// MovieCreateParams bundles the fields required to create a movie.
// Rating fields are absent on purpose: new movies start at 0 / 0.00.
type MovieCreateParams struct {
	Title          string
	Synopsis       *string
	ReleaseDate    *time.Time
	RuntimeMinutes *int
	Country        *string
	Language       *string
	PosterURL      *string
}

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Query     *string
	Year      *int
	MinRating *float64
	Limit     int
	Cursor    *MovieCursor
}

// MovieCursor allows stable pagination by created_at/id.
type MovieCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies (movie_id, title, synopsis, release_date, runtime_minutes, country, language, poster_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query,
		uuid.New().String(),
		params.Title,
		params.Synopsis,
		params.ReleaseDate,
		params.RuntimeMinutes,
		params.Country,
		params.Language,
		params.PosterURL,
	)
	return scanMovie(row)
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE movie_id = $1`, movieColumns)
	movie, err := scanMovie(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// LockStats takes a row lock on the movie for the rest of the transaction
// and returns the derived fields as currently stored. NO KEY UPDATE leaves
// the KEY SHARE locks taken by review foreign keys compatible, so writers
// inserting reviews for the same movie queue here instead of deadlocking.
func (r *MoviesRepository) LockStats(ctx context.Context, id string) (domain.RatingSummary, error) {
	const query = `
        SELECT movie_id, average_rating::float8, rating_count::int8
        FROM movies
        WHERE movie_id = $1
        FOR NO KEY UPDATE
    `
	var summary domain.RatingSummary
	err := r.db.QueryRow(ctx, query, id).Scan(&summary.MovieID, &summary.Average, &summary.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RatingSummary{}, ErrNotFound
		}
		return domain.RatingSummary{}, fmt.Errorf("lock movie stats: %w", err)
	}
	return summary, nil
}

// SetRatingStats overwrites the derived rating fields of a movie.
func (r *MoviesRepository) SetRatingStats(ctx context.Context, summary domain.RatingSummary) error {
	const query = `
        UPDATE movies
        SET rating_count = $2,
            average_rating = $3,
            updated_at = now()
        WHERE movie_id = $1
    `
	tag, err := r.db.Exec(ctx, query, summary.MovieID, summary.Count, summary.Average)
	if err != nil {
		return fmt.Errorf("set rating stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns every movie identifier in a stable order.
func (r *MoviesRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT movie_id FROM movies ORDER BY movie_id`)
	if err != nil {
		return nil, fmt.Errorf("list movie ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list movie ids: %w", err)
	}
	return ids, nil
}

// TopRated returns the highest rated movies that have at least minCount reviews.
func (r *MoviesRepository) TopRated(ctx context.Context, limit int, minCount int64) ([]domain.Movie, error) {
	if limit <= 0 {
		limit = 10
	} else if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`
        SELECT %s FROM movies
        WHERE rating_count >= $1
        ORDER BY average_rating DESC, rating_count DESC, movie_id
        LIMIT $2
    `, movieColumns)

	rows, err := r.db.Query(ctx, query, minCount, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0, limit)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// List returns movies that match the provided filters.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		q := "%" + strings.TrimSpace(*filters.Query) + "%"
		where = append(where, fmt.Sprintf("title ILIKE %s", arg(q)))
	}
	if filters.Year != nil {
		where = append(where, fmt.Sprintf("EXTRACT(YEAR FROM release_date)::int = %s", arg(*filters.Year)))
	}
	if filters.MinRating != nil {
		where = append(where, fmt.Sprintf("average_rating >= %s", arg(*filters.MinRating)))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, movie_id) < (%s, %s)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, movie_id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCursor(MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}

	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Synopsis,
		&movie.ReleaseDate,
		&movie.RuntimeMinutes,
		&movie.Country,
		&movie.Language,
		&movie.PosterURL,
		&movie.AverageRating,
		&movie.RatingCount,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func encodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &cursor, nil
}
