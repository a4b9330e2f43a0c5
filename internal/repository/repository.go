package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/galaxynn/MDMS/internal/store"
)

// Sentinel errors returned by repositories.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrMissingReference indicates a foreign key pointed at a missing row.
	ErrMissingReference = errors.New("repository: missing reference")
)

// Repository aggregates all domain-specific repositories bound to one DBTX.
// Bind it to a pgx.Tx to run every call inside that unit-of-work.
type Repository struct {
	Movies  *MoviesRepository
	Reviews *ReviewsRepository
	Users   *UsersRepository
}

// New constructs a Repository over a pool or a transaction.
func New(db store.DBTX) *Repository {
	return &Repository{
		Movies:  &MoviesRepository{db: db},
		Reviews: &ReviewsRepository{db: db},
		Users:   &UsersRepository{db: db},
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// foreignKeyConstraint returns the violated constraint name for a 23503 error.
func foreignKeyConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
