package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	"github.com/nkiryanov/musicbox/internal/apperrors"
	"github.com/nkiryanov/musicbox/internal/handlers/render"
	"github.com/nkiryanov/musicbox/internal/logger"
)

const (
	oauthStateCookie = "oauth_state"
	oauthCookiePath  = "/auth/oauth"
)

// Redirect browser to the identity provider
func handleOAuthStart(flow *OAuthFlow, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, nonce, err := flow.State.Issue()
		if err != nil {
			l.Error("Failed to issue oauth state", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    nonce,
			Path:     oauthCookiePath,
			MaxAge:   int(flow.State.TTL().Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, flow.Provider.AuthCodeURL(state), http.StatusFound)
	})
}

// Provider redirects browser back here. User is logged in and native app gets one-time code
func handleOAuthCallback(flow *OAuthFlow, authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if providerErr := q.Get("error"); providerErr != "" {
			l.Info("OAuth provider returned error", "error", providerErr)
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		nonce, err := flow.State.Verify(q.Get("state"))
		cookie, cookieErr := r.Cookie(oauthStateCookie)
		if err != nil || cookieErr != nil || subtle.ConstantTimeCompare([]byte(nonce), []byte(cookie.Value)) != 1 {
			l.Info("OAuth state mismatch", "error", errors.Join(err, cookieErr))
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// State is single use for the browser
		http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: oauthCookiePath, MaxAge: -1})

		code := q.Get("code")
		if code == "" {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		identity, err := flow.Provider.Identify(r.Context(), code)
		if err != nil {
			l.Warn("OAuth provider code exchange failed", "error", err)
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := authService.OAuthLogin(r.Context(), identity)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		default:
			l.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authCode, err := authService.IssueAuthCode(r.Context(), user)
		if err != nil {
			l.Error("Failed to issue authorization code", "user_id", user.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		target, err := appRedirect(flow.AppRedirectURL, authCode)
		if err != nil {
			l.Error("Bad app redirect url", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}

func appRedirect(base string, code string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
