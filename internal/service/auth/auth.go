package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/models"
	"github.com/nkiryanov/musicbox/internal/repository"
	"github.com/nkiryanov/musicbox/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName = "Authorization"
	defaultAccessAuthScheme = "Bearer"
)

type TokenManager interface {
	GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error)
	Rotate(ctx context.Context, refresh string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID uuid.UUID) error
	IssueAuthCode(ctx context.Context, userID uuid.UUID) (string, error)
	ExchangeAuthCode(ctx context.Context, code string) (models.TokenPair, error)
	ParseAccess(access string) (tokenmanager.Claims, error)
}

type Config struct {
	// Emails allowed to log in. Empty list denies everybody
	AllowedEmails []string

	// Where access token is looked for. Defaults to "Authorization: Bearer <token>"
	AccessHeaderName string
	AccessAuthScheme string
}

type AuthService struct {
	allowed map[string]struct{}

	accessHeaderName string
	accessAuthScheme string

	tokenManager TokenManager
	userRepo     repository.UserRepo
	logger       logger.Logger
}

func NewService(cfg Config, tokenManager TokenManager, userRepo repository.UserRepo, l logger.Logger) (*AuthService, error) {
	if tokenManager == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedEmails))
	for _, email := range cfg.AllowedEmails {
		if email = normalizeEmail(email); email != "" {
			allowed[email] = struct{}{}
		}
	}

	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}

	return &AuthService{
		allowed:          allowed,
		accessHeaderName: cfg.AccessHeaderName,
		accessAuthScheme: cfg.AccessAuthScheme,
		tokenManager:     tokenManager,
		userRepo:         userRepo,
		logger:           l,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check email is in allow-list. Fails closed if the list is empty
func (s *AuthService) Allowed(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	_, ok := s.allowed[email]
	return ok
}

// Log in user verified by the identity provider
// Allow-list is checked before the user is looked up or created
func (s *AuthService) OAuthLogin(ctx context.Context, identity models.Identity) (models.User, error) {
	if !s.Allowed(identity.Email) {
		s.logger.Warn("Login denied, email not allowed", "email", identity.Email, "subject", identity.Subject)
		return models.User{}, apperrors.ErrUserNotAllowed
	}

	user, err := s.userRepo.UpsertUser(ctx, normalizeEmail(identity.Email), strings.TrimSpace(identity.Name))
	if err != nil {
		return models.User{}, fmt.Errorf("can't upsert user. Err: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return user, nil
}

// Issue one-time code the native app exchanges for tokens
func (s *AuthService) IssueAuthCode(ctx context.Context, user models.User) (string, error) {
	return s.tokenManager.IssueAuthCode(ctx, user.ID)
}

func (s *AuthService) ExchangeAuthCode(ctx context.Context, code string) (models.TokenPair, error) {
	pair, err := s.tokenManager.ExchangeAuthCode(ctx, code)
	if err != nil {
		s.logFailure("Authorization code exchange failed", err)
		return pair, err
	}
	return pair, nil
}

// Refresh tokens using refresh token
// Every credential failure wraps apperrors.ErrUnauthorized, the exact reason is only logged
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	pair, err := s.tokenManager.Rotate(ctx, refresh)
	if err != nil {
		s.logFailure("Refresh token rotation failed", err)
		return pair, err
	}
	return pair, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.tokenManager.Revoke(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("User logged out", "user_id", userID)
	return nil
}

// Get request and return user if it authenticated or error
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, access, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || strings.TrimSpace(access) == "" {
		return models.User{}, fmt.Errorf("%w: no access token", apperrors.ErrUnauthorized)
	}

	claims, err := s.tokenManager.ParseAccess(strings.TrimSpace(access))
	if err != nil {
		return models.User{}, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return models.User{}, fmt.Errorf("%w: bad subject: %w", apperrors.ErrUnauthorized, err)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
		return models.User{}, err
	}

	return user, nil
}

func (s *AuthService) logFailure(msg string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenExpired), errors.Is(err, apperrors.ErrAuthCodeExpired):
		s.logger.Info(msg, "reason", "expired", "error", err)
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound), errors.Is(err, apperrors.ErrAuthCodeNotFound):
		s.logger.Info(msg, "reason", "not_found", "error", err)
	case errors.Is(err, apperrors.ErrRefreshTokenMalformed):
		s.logger.Info(msg, "reason", "malformed", "error", err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		s.logger.Info(msg, "reason", "unauthorized", "error", err)
	default:
		s.logger.Error(msg, "error", err)
	}
}
