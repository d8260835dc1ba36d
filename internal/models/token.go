package models

import (
	"time"

	"github.com/google/uuid"
)

// Stored refresh token. Plain token value is never persisted, only its hash
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// One-time code that bridges OAuth redirect and token exchange
type AuthorizationCode struct {
	ID        uuid.UUID
	Code      string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issues by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
