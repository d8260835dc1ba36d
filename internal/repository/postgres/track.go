package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/models"
)

type TrackRepo struct {
	DB DBTX
}

const trackColumns = `id, user_id, created_at, title, artist, album, storage_key, cover_key, content_type, size_bytes, content_hash`

const createTrack = `-- name: CreateTrack
INSERT INTO tracks (` + trackColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + trackColumns

func (r *TrackRepo) Create(ctx context.Context, t models.Track) (models.Track, error) {
	rows, _ := r.DB.Query(ctx, createTrack,
		t.ID, t.UserID, t.CreatedAt, t.Title, t.Artist, t.Album,
		t.StorageKey, t.CoverKey, t.ContentType, t.SizeBytes, t.ContentHash,
	)
	track, err := pgx.CollectOneRow(rows, rowToTrack)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return track, apperrors.ErrTrackAlreadyExists
		}

		return track, fmt.Errorf("db error: %w", err)
	}

	return track, nil
}

const getTrack = `-- name: GetTrack
SELECT ` + trackColumns + ` FROM tracks
WHERE user_id = $1 AND id = $2
`

func (r *TrackRepo) Get(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) (models.Track, error) {
	rows, _ := r.DB.Query(ctx, getTrack, userID, trackID)
	return collectTrack(rows)
}

const listTracks = `-- name: ListTracks
SELECT ` + trackColumns + ` FROM tracks
WHERE user_id = $1
ORDER BY created_at DESC, id
`

func (r *TrackRepo) List(ctx context.Context, userID uuid.UUID) ([]models.Track, error) {
	rows, _ := r.DB.Query(ctx, listTracks, userID)
	tracks, err := pgx.CollectRows(rows, rowToTrack)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tracks, nil
}

const deleteTrack = `-- name: DeleteTrack
DELETE FROM tracks
WHERE user_id = $1 AND id = $2
RETURNING ` + trackColumns

func (r *TrackRepo) Delete(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) (models.Track, error) {
	rows, _ := r.DB.Query(ctx, deleteTrack, userID, trackID)
	return collectTrack(rows)
}

func collectTrack(rows pgx.Rows) (models.Track, error) {
	track, err := pgx.CollectOneRow(rows, rowToTrack)

	switch {
	case err == nil:
		return track, nil
	case errors.Is(err, pgx.ErrNoRows):
		return track, apperrors.ErrTrackNotFound
	default:
		return track, fmt.Errorf("db error: %w", err)
	}
}

func rowToTrack(row pgx.CollectableRow) (models.Track, error) {
	var t models.Track
	err := row.Scan(
		&t.ID, &t.UserID, &t.CreatedAt, &t.Title, &t.Artist, &t.Album,
		&t.StorageKey, &t.CoverKey, &t.ContentType, &t.SizeBytes, &t.ContentHash,
	)
	return t, err
}
