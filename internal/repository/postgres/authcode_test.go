package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/models"
	"github.com/nkiryanov/musicbox/internal/testutil"
)

func Test_AuthCodeRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newCode := func(userID uuid.UUID, code string, expiresAt time.Time) models.AuthorizationCode {
		return models.AuthorizationCode{
			ID:        uuid.New(),
			Code:      code,
			UserID:    userID,
			CreatedAt: mustParseTime("2024-01-01 19:00:01Z"),
			ExpiresAt: expiresAt,
		}
	}

	t.Run("take ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AuthCodeRepo{DB: tx}
			user := testutil.CreateUser(t, tx, "nk@example.com")
			code := newCode(user.ID, "one-time-code", mustParseTime("2200-01-01 00:00:00Z"))
			require.NoError(t, repo.Save(t.Context(), code))

			got, err := repo.Take(t.Context(), "one-time-code")

			require.NoError(t, err)
			require.Equal(t, code.ID, got.ID)
			require.Equal(t, user.ID, got.UserID)
			require.WithinDuration(t, code.ExpiresAt, got.ExpiresAt, 0)
		})
	})

	t.Run("take twice fails", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AuthCodeRepo{DB: tx}
			user := testutil.CreateUser(t, tx, "nk@example.com")
			require.NoError(t, repo.Save(t.Context(), newCode(user.ID, "one-time-code", mustParseTime("2200-01-01 00:00:00Z"))))
			_, err := repo.Take(t.Context(), "one-time-code")
			require.NoError(t, err)

			_, err = repo.Take(t.Context(), "one-time-code")

			require.ErrorIs(t, err, apperrors.ErrAuthCodeNotFound)
		})
	})

	t.Run("take expired returns it anyway", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AuthCodeRepo{DB: tx}
			user := testutil.CreateUser(t, tx, "nk@example.com")
			require.NoError(t, repo.Save(t.Context(), newCode(user.ID, "stale", mustParseTime("2024-01-01 19:05:01Z"))))

			got, err := repo.Take(t.Context(), "stale")

			require.NoError(t, err, "expiry is checked by caller, repo must delete the code anyway")
			require.True(t, got.ExpiresAt.Before(time.Now()))
		})
	})

	t.Run("delete expired", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := AuthCodeRepo{DB: tx}
			user := testutil.CreateUser(t, tx, "nk@example.com")
			require.NoError(t, repo.Save(t.Context(), newCode(user.ID, "stale", mustParseTime("2024-01-01 19:05:01Z"))))
			require.NoError(t, repo.Save(t.Context(), newCode(user.ID, "fresh", mustParseTime("2200-01-01 00:00:00Z"))))

			deleted, err := repo.DeleteExpired(t.Context(), time.Now())

			require.NoError(t, err)
			require.Equal(t, int64(1), deleted)
			_, err = repo.Take(t.Context(), "fresh")
			require.NoError(t, err, "not expired code should stay")
		})
	})
}
