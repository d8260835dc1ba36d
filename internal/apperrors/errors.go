package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound = errors.New("user not found")

	// Umbrella for every credential failure. Only this one is shown to clients
	ErrUnauthorized = errors.New("unauthorized")

	ErrUserNotAllowed = fmt.Errorf("user is not in the allow-list: %w", ErrUnauthorized)

	ErrRefreshTokenMalformed = fmt.Errorf("refresh token is malformed: %w", ErrUnauthorized)
	ErrRefreshTokenNotFound  = fmt.Errorf("refresh token not found: %w", ErrUnauthorized)
	ErrRefreshTokenExpired   = fmt.Errorf("refresh token is expired: %w", ErrUnauthorized)

	ErrAuthCodeNotFound = fmt.Errorf("authorization code not found: %w", ErrUnauthorized)
	ErrAuthCodeExpired  = fmt.Errorf("authorization code is expired: %w", ErrUnauthorized)

	ErrObjectNotFound      = errors.New("object not found")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")

	ErrTrackNotFound      = errors.New("track not found")
	ErrTrackAlreadyExists = errors.New("track already uploaded")
	ErrUnsupportedMedia   = errors.New("unsupported media type")
)
