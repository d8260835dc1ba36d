// Package oauth talks to the external identity provider (authorization code flow)
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nkiryanov/musicbox/internal/models"
)

const maxResponseBytes = 1 << 20

// Provider asserts the email but has not verified it
var ErrEmailNotVerified = errors.New("email is not verified by provider")

type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string

	// Our callback registered at the provider
	RedirectURL string

	Scopes []string
}

// All the endpoints and credentials set
func (c ProviderConfig) Enabled() bool {
	for _, v := range []string{c.ClientID, c.ClientSecret, c.AuthURL, c.TokenURL, c.UserInfoURL, c.RedirectURL} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Provider client makes outbound calls to the identity provider
type Client struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

func NewClient(cfg ProviderConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Provider authorize URL the browser is redirected to
func (c *Client) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	q.Set("state", state)

	sep := "?"
	if strings.Contains(c.cfg.AuthURL, "?") {
		sep = "&"
	}
	return c.cfg.AuthURL + sep + q.Encode()
}

// Exchange provider code and load user profile
func (c *Client) Identify(ctx context.Context, code string) (models.Identity, error) {
	accessToken, err := c.exchangeCode(ctx, code)
	if err != nil {
		return models.Identity{}, err
	}
	return c.fetchUserInfo(ctx, accessToken)
}

func (c *Client) exchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.cfg.RedirectURL)
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var raw map[string]any
	if err := c.do(req, &raw); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}

	token := stringValue(raw["access_token"])
	if token == "" {
		return "", errors.New("token exchange: no access token in response")
	}
	return token, nil
}

func (c *Client) fetchUserInfo(ctx context.Context, accessToken string) (models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		return models.Identity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	var raw map[string]any
	if err := c.do(req, &raw); err != nil {
		return models.Identity{}, fmt.Errorf("userinfo: %w", err)
	}

	// Missing claim is accepted: not every provider sends it
	if verified, ok := boolValue(raw["email_verified"]); ok && !verified {
		return models.Identity{}, ErrEmailNotVerified
	}

	return models.Identity{
		Subject: stringValue(coalesce(raw["sub"], raw["id"])),
		Email:   stringValue(coalesce(raw["email"], raw["mail"])),
		Name:    stringValue(coalesce(raw["name"], raw["displayName"])),
	}, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status=%d", resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Some providers send booleans as strings
func boolValue(input any) (value bool, ok bool) {
	switch v := input.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

func coalesce(values ...any) any {
	for _, v := range values {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) != "" {
				return v
			}
		default:
			return v
		}
	}
	return nil
}
