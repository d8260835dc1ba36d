package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/handlers/render"
	"github.com/nkiryanov/musicbox/internal/handlers/userctx"
	"github.com/nkiryanov/musicbox/internal/logger"
	"github.com/nkiryanov/musicbox/internal/models"
)

type tokenPairResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

func newTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:           pair.Access.Value,
		RefreshToken:          pair.Refresh.Value,
		AccessTokenExpiresAt:  pair.Access.ExpiresAt,
		RefreshTokenExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken" validate:"required,notblank"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.RefreshPair(r.Context(), data.RefreshToken)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		default:
			l.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCodeExchange(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Code string `json:"code" validate:"required,notblank"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.ExchangeAuthCode(r.Context(), data.Code)
		switch {
		case err == nil:
			render.JSON(w, newTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Invalid or expired authorization code", http.StatusUnauthorized)
		default:
			l.Error("Failed to exchange authorization code", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		if err := authService.Logout(r.Context(), user.ID); err != nil {
			l.Error("Failed to logout", "user_id", user.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Message: "Logged out"})
	})
}

func handleUserMe() http.Handler {
	type response struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Name  string    `json:"name"`
		Role  string    `json:"role"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role})
	})
}
