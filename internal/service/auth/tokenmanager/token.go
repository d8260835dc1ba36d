package tokenmanager

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/models"
	"github.com/nkiryanov/musicbox/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	// Authorization codes are short-lived and not configurable
	AuthCodeTTL = 5 * time.Minute

	authCodeBytes = 32
)

// Claims carried by both access and refresh tokens
// Subject is the user id, ID (jti) makes every token unique
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Parsed user id from subject claim
func (c Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Token manager with sensible default
type Config struct {
	// Secrets to sign access and refresh tokens
	// Both required and have to be different
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Hasher for stored refresh tokens
	// If not set BcryptHasher with default cost is used
	Hasher Hasher
}

// Purge result
type Purged struct {
	RefreshTokens int64
	AuthCodes     int64
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	hasher  Hasher
	storage repository.Storage

	// Clock, replaced in tests
	now func() time.Time
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}

	return &TokenManager{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		hasher:     cfg.Hasher,
		storage:    storage,
		now:        time.Now,
	}, nil
}

// Issue new access and refresh tokens and persist refresh token hash
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	return m.generatePair(ctx, m.storage.Refresh(), user)
}

func (m *TokenManager) generatePair(ctx context.Context, repo repository.RefreshTokenRepo, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := m.now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)
	refreshExpiresAt := now.Add(m.refreshTTL)

	access, err := m.sign(m.accessKey, user, now, accessExpiresAt)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, err := m.sign(m.refreshKey, user, now, refreshExpiresAt)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	hash, err := m.hasher.Hash(refresh)
	if err != nil {
		return pair, fmt.Errorf("error while hashing refresh token. Err: %w", err)
	}

	err = repo.Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: refreshExpiresAt,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

func (m *TokenManager) sign(key []byte, user models.User, now time.Time, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   user.ID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	)
	return token.SignedString(key)
}

// Exchange refresh token for a new pair. The presented token stops working
//
// Token is looked up among user tokens by hash comparison.
// Old token removal and new token insert happen in one transaction, so of two concurrent
// rotations of the same token only one succeeds.
func (m *TokenManager) Rotate(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	claims, err := m.parse(refresh, m.refreshKey, jwt.WithoutClaimsValidation())
	if err != nil {
		return pair, fmt.Errorf("%w: %w", apperrors.ErrRefreshTokenMalformed, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return pair, fmt.Errorf("%w: bad subject: %w", apperrors.ErrRefreshTokenMalformed, err)
	}

	stored, err := m.find(ctx, userID, refresh)
	if err != nil {
		return pair, err
	}

	if !stored.ExpiresAt.After(m.now()) {
		err := m.storage.Refresh().Delete(ctx, stored.ID)
		if err != nil && !errors.Is(err, apperrors.ErrRefreshTokenNotFound) {
			return pair, fmt.Errorf("error while deleting expired refresh token. Err: %w", err)
		}
		return pair, apperrors.ErrRefreshTokenExpired
	}

	// Fresh user data, role or name may have changed since the token was issued
	user, err := m.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return pair, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
		return pair, err
	}

	err = m.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.Refresh().Delete(ctx, stored.ID); err != nil {
			return err
		}

		pair, err = m.generatePair(ctx, tx.Refresh(), user)
		return err
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while rotating refresh token. Err: %w", err)
	}

	return pair, nil
}

func (m *TokenManager) find(ctx context.Context, userID uuid.UUID, refresh string) (models.RefreshToken, error) {
	tokens, err := m.storage.Refresh().ListByUser(ctx, userID)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("error while listing refresh tokens. Err: %w", err)
	}

	for _, t := range tokens {
		if m.hasher.Compare(t.TokenHash, refresh) == nil {
			return t, nil
		}
	}

	return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
}

// Delete every refresh token of the user. Outstanding access tokens live until they expire
func (m *TokenManager) Revoke(ctx context.Context, userID uuid.UUID) error {
	_, err := m.storage.Refresh().DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("error while revoking refresh tokens. Err: %w", err)
	}
	return nil
}

// Issue one-time authorization code for the user
func (m *TokenManager) IssueAuthCode(ctx context.Context, userID uuid.UUID) (string, error) {
	b := make([]byte, authCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating authorization code. Err: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(b)

	now := m.now().Truncate(time.Second)
	err := m.storage.AuthCode().Save(ctx, models.AuthorizationCode{
		ID:        uuid.New(),
		Code:      code,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(AuthCodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("error while saving authorization code. Err: %w", err)
	}

	return code, nil
}

// Exchange authorization code for a token pair
// Code is consumed before expiry check, so expired or used codes never work twice
func (m *TokenManager) ExchangeAuthCode(ctx context.Context, code string) (models.TokenPair, error) {
	var pair models.TokenPair

	stored, err := m.storage.AuthCode().Take(ctx, code)
	if err != nil {
		return pair, err
	}

	if !stored.ExpiresAt.After(m.now()) {
		return pair, apperrors.ErrAuthCodeExpired
	}

	user, err := m.storage.User().GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return pair, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
		return pair, err
	}

	return m.GeneratePair(ctx, user)
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(access string) (Claims, error) {
	claims, err := m.parse(access, m.accessKey)
	if err != nil {
		return claims, fmt.Errorf("%w: error while parsing or validating token. Err: %w", apperrors.ErrUnauthorized, err)
	}
	return claims, nil
}

func (m *TokenManager) parse(value string, key []byte, opts ...jwt.ParserOption) (Claims, error) {
	claims := Claims{}
	opts = append(opts, jwt.WithValidMethods([]string{m.alg.Alg()}))

	_, err := jwt.ParseWithClaims(
		value,
		&claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		opts...,
	)
	return claims, err
}

// Delete expired refresh tokens and authorization codes
func (m *TokenManager) PurgeExpired(ctx context.Context) (Purged, error) {
	var purged Purged
	now := m.now()

	n, err := m.storage.Refresh().DeleteExpired(ctx, now)
	if err != nil {
		return purged, fmt.Errorf("error while purging refresh tokens. Err: %w", err)
	}
	purged.RefreshTokens = n

	n, err = m.storage.AuthCode().DeleteExpired(ctx, now)
	if err != nil {
		return purged, fmt.Errorf("error while purging authorization codes. Err: %w", err)
	}
	purged.AuthCodes = n

	return purged, nil
}
