package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/models"
)

type UserRepo struct {
	DB DBTX
}

// Name is refreshed on every login, role and id are kept
const upsertUser = `-- name: UpsertUser
INSERT INTO users (id, email, name, role)
VALUES ($1, $2, $3, $4)
ON CONFLICT ((lower(email))) DO UPDATE
SET name = CASE WHEN EXCLUDED.name = '' THEN users.name ELSE EXCLUDED.name END
RETURNING id, created_at, email, name, role
`

func (r *UserRepo) UpsertUser(ctx context.Context, email string, name string) (models.User, error) {
	email = strings.TrimSpace(email)
	rows, _ := r.DB.Query(ctx, upsertUser, uuid.New(), email, name, models.RoleUser)
	user, err := pgx.CollectOneRow(rows, rowToUser)
	if err != nil {
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: getUserByID
SELECT id, created_at, email, name, role FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.Name, &u.Role)
	return u, err
}
