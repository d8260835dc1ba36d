package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/musicbox/internal/db"
	"github.com/nkiryanov/musicbox/internal/handlers"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/objectstore"
	"github.com/nkiryanov/musicbox/internal/repository/postgres"
	"github.com/nkiryanov/musicbox/internal/service/auth"
	"github.com/nkiryanov/musicbox/internal/service/auth/oauth"
	"github.com/nkiryanov/musicbox/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/musicbox/internal/service/cleanup"
	"github.com/nkiryanov/musicbox/internal/service/media"
	"github.com/nkiryanov/musicbox/internal/service/track"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	cleaner *cleanup.Worker
	pool    *pgxpool.Pool
	logger  logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config. Err: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Object storage first: nothing to clean up if it fails
	store, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:     c.S3Endpoint,
		Region:       c.S3Region,
		Bucket:       c.S3Bucket,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		UsePathStyle: c.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("error while initializing object storage. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
	}, storage)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{AllowedEmails: c.AllowedEmails}, tokenManager, storage.User(), logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	if len(c.AllowedEmails) == 0 {
		logger.Warn("Allowed emails list is empty, nobody is able to log in")
	}

	mediaService := media.NewService(store, logger)
	trackService := track.NewService(storage.Track(), store, logger)

	routerCfg := handlers.Config{AuthRateLimit: c.AuthRateLimit}

	providerCfg := oauth.ProviderConfig{
		ClientID:     c.OAuthClientID,
		ClientSecret: c.OAuthClientSecret,
		AuthURL:      c.OAuthAuthURL,
		TokenURL:     c.OAuthTokenURL,
		UserInfoURL:  c.OAuthUserInfoURL,
		RedirectURL:  c.OAuthRedirectURL,
	}
	if providerCfg.Enabled() {
		signer, err := oauth.NewStateSigner(c.AccessSecret, 0)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("error while creating oauth state signer. Err: %w", err)
		}
		routerCfg.OAuth = &handlers.OAuthFlow{
			Provider:       oauth.NewClient(providerCfg, nil),
			State:          signer,
			AppRedirectURL: c.OAuthAppRedirectURL,
		}
	} else {
		logger.Info("OAuth provider is not configured, browser login disabled")
	}

	mux := handlers.NewRouter(routerCfg, authService, mediaService, trackService, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		cleaner:    cleanup.New(c.CleanupInterval, tokenManager, logger),
		pool:       pool,
		logger:     logger,
	}, nil
}

// Run starts http server and cleanup worker and stops both gracefully on context cancellation
// Returns nil if stopped by the context
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", "addr", s.ListenAddr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
			err = httpServer.Close()
		}
		s.logger.Info("HTTP server stopped")
		return err
	})

	g.Go(func() error {
		<-s.cleaner.Run(gCtx)
		return nil
	})

	return g.Wait()
}
