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

// UsersRepository reads and creates user accounts.
type UsersRepository struct {
	db store.DBTX
}

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Username string
	Email    string
	Role     string
}

// Create inserts a user. Duplicate username or email yields ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	role := params.Role
	if role == "" {
		role = domain.RoleUser
	}
	const query = `
        INSERT INTO users (user_id, username, email, role)
        VALUES ($1,$2,$3,$4)
        RETURNING user_id, username, email, role, created_at
    `
	var user domain.User
	err := r.db.QueryRow(ctx, query, uuid.New().String(), params.Username, params.Email, role).
		Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT user_id, username, email, role, created_at FROM users WHERE user_id = $1`
	var user domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}
