package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/models"
)

type AuthCodeRepo struct {
	DB DBTX
}

const saveAuthCode = `-- name: SaveAuthCode
INSERT INTO authorization_codes (id, code, user_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
`

func (r *AuthCodeRepo) Save(ctx context.Context, code models.AuthorizationCode) error {
	_, err := r.DB.Exec(ctx, saveAuthCode, code.ID, code.Code, code.UserID, code.CreatedAt, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete and return in one statement: only one caller may ever get the row
const takeAuthCode = `-- name: TakeAuthCode
DELETE FROM authorization_codes
WHERE code = $1
RETURNING id, code, user_id, created_at, expires_at
`

func (r *AuthCodeRepo) Take(ctx context.Context, code string) (models.AuthorizationCode, error) {
	rows, _ := r.DB.Query(ctx, takeAuthCode, code)
	c, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.AuthorizationCode, error) {
		var c models.AuthorizationCode
		err := row.Scan(&c.ID, &c.Code, &c.UserID, &c.CreatedAt, &c.ExpiresAt)
		return c, err
	})

	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, pgx.ErrNoRows):
		return c, fmt.Errorf("repo error: %w", apperrors.ErrAuthCodeNotFound)
	default:
		return c, fmt.Errorf("db error: %w", err)
	}
}

const deleteExpiredAuthCodes = `-- name: DeleteExpiredAuthCodes
DELETE FROM authorization_codes
WHERE expires_at < $1
`

func (r *AuthCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredAuthCodes, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
