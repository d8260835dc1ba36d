// Package cleanup periodically removes expired refresh tokens and authorization codes
package cleanup

import (
	"context"
	"time"

	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/service/auth/tokenmanager"
)

const defaultInterval = time.Hour

type purger interface {
	PurgeExpired(ctx context.Context) (tokenmanager.Purged, error)
}

type Worker struct {
	interval time.Duration
	purger   purger
	logger   logger.Logger
}

func New(interval time.Duration, purger purger, logger logger.Logger) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{interval: interval, purger: purger, logger: logger}
}

// Run purges expired credentials on start and then every interval until ctx is done
// Returned channel is closed when the worker stopped
func (w *Worker) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	w.logger.Debug("Starting cleanup worker", "interval", w.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.purge(ctx)

		for {
			select {
			case <-ctx.Done():
				w.logger.Debug("Cleanup worker stopped by context")
				return

			case <-ticker.C:
				w.purge(ctx)
			}
		}
	}()

	return idleStopped
}

func (w *Worker) purge(ctx context.Context) {
	purged, err := w.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to purge expired credentials", "error", err)
		}
		return
	}

	if purged.RefreshTokens > 0 || purged.AuthCodes > 0 {
		w.logger.Info("Expired credentials purged", "refresh_tokens", purged.RefreshTokens, "auth_codes", purged.AuthCodes)
	}
}
