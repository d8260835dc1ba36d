package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/musicbox/internal/handlers/middleware"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/models"
	"github.com/nkiryanov/musicbox/internal/service/media"
	"github.com/nkiryanov/musicbox/internal/service/track"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Config struct {
	// Browser OAuth flow. Routes are not registered if nil
	OAuth *OAuthFlow

	// Requests per minute per client IP on /auth/ routes. Zero disables limiting
	AuthRateLimit int
}

func NewRouter(
	cfg Config,
	authService authService,
	mediaService mediaService,
	trackService trackService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)
	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit)

	auth := http.NewServeMux()
	auth.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	auth.Handle("POST /exchange", handleCodeExchange(authService, logger))
	auth.Handle("POST /logout", withAuth(handleLogout(authService, logger)))
	auth.Handle("GET /me", withAuth(handleUserMe()))
	if cfg.OAuth != nil {
		auth.Handle("GET /oauth/start", handleOAuthStart(cfg.OAuth, logger))
		auth.Handle("GET /oauth/callback", handleOAuthCallback(cfg.OAuth, authService, logger))
	}

	root := http.NewServeMux()
	root.Handle("/auth/", http.StripPrefix("/auth", limiter.Middleware(auth)))

	root.Handle("GET /stream/tracks/{key}", handleStream(mediaService, media.Track, logger))
	root.Handle("GET /stream/album-art/{key}", handleStream(mediaService, media.AlbumArt, logger))

	root.Handle("POST /tracks", withAuth(handleUploadTrack(trackService, logger)))
	root.Handle("GET /tracks", withAuth(handleListTracks(trackService, logger)))
	root.Handle("GET /tracks/{id}", withAuth(handleGetTrack(trackService, logger)))
	root.Handle("DELETE /tracks/{id}", withAuth(handleDeleteTrack(trackService, logger)))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)

	// Has to return apperrors.ErrUnauthorized if user may not log in
	OAuthLogin(ctx context.Context, identity models.Identity) (models.User, error)

	IssueAuthCode(ctx context.Context, user models.User) (string, error)

	// Any credential failure has to wrap apperrors.ErrUnauthorized
	ExchangeAuthCode(ctx context.Context, code string) (models.TokenPair, error)
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	Logout(ctx context.Context, userID uuid.UUID) error
}

type mediaService interface {
	Head(ctx context.Context, p media.Profile, name string, rangeHeader string) (*media.Stream, error)
	Open(ctx context.Context, p media.Profile, name string, rangeHeader string) (*media.Stream, error)
}

type trackService interface {
	Upload(ctx context.Context, userID uuid.UUID, up track.Upload) (models.Track, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Track, error)
	Get(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) (models.Track, error)
	Delete(ctx context.Context, userID uuid.UUID, trackID uuid.UUID) error
}

type oauthProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (models.Identity, error)
}

type stateSigner interface {
	Issue() (state string, nonce string, err error)
	Verify(state string) (nonce string, err error)
	TTL() time.Duration
}

type OAuthFlow struct {
	Provider oauthProvider
	State    stateSigner

	// Native app URL receiving the authorization code, e.g. "musicbox://auth"
	AppRedirectURL string
}
