package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/musicbox/internal/handlers/render"
	"github.com/nkiryanov/musicbox/internal/handlers/userctx"
	"github.com/nkiryanov/musicbox/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type debugLogger interface {
	Debug(msg string, args ...any)
}

// Reject request with 401 unless it carries valid access token
// Authenticated user is put into request context
func AuthMiddleware(as authService, l debugLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Auth(r.Context(), r)
			if err != nil {
				l.Debug("Request not authenticated", "path", r.URL.Path, "error", err)
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
