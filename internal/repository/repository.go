package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/musicbox/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user or update its name if user with the email (case-insensitive) exists
	UpsertUser(ctx context.Context, email string, name string) (models.User, error)

	// Get user by it's id
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// RefreshToken repository interface
// Tokens are never updated in place: they are created and deleted only
type RefreshTokenRepo interface {
	// Save token hash in repository
	Save(ctx context.Context, token models.RefreshToken) error

	// Return every token stored for the user, expired included
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error)

	// Delete token by id
	// If token not found (e.g. rotated already) must return apperrors.ErrRefreshTokenNotFound
	Delete(ctx context.Context, tokenID uuid.UUID) error

	// Delete all user tokens. Returns number of deleted tokens
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete tokens expired before the moment. Returns number of deleted tokens
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Authorization codes repository interface
type AuthCodeRepo interface {
	Save(ctx context.Context, code models.AuthorizationCode) error

	// Delete the code and return it. The code may be taken only once
	// If code not found must return apperrors.ErrAuthCodeNotFound
	Take(ctx context.Context, code string) (models.AuthorizationCode, error)

	// Delete codes expired before the moment. Returns number of deleted codes
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Track repository interface
// All the methods except Create are scoped by owner
type TrackRepo interface {
	// Has to return apperrors.ErrTrackAlreadyExists if user uploaded the same content already
	Create(ctx context.Context, track models.Track) (models.Track, error)

	// If track not found must return apperrors.ErrTrackNotFound
	Get(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) (models.Track, error)

	// List user tracks, newest first
	List(ctx context.Context, userID uuid.UUID) ([]models.Track, error)

	// Delete track and return deleted one
	// If track not found must return apperrors.ErrTrackNotFound
	Delete(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) (models.Track, error)
}

// Storage gives access to all the repositories sharing the same connection
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	AuthCode() AuthCodeRepo
	Track() TrackRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
