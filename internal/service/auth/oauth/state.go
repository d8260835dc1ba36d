package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultStateTTL = 10 * time.Minute
	stateIssuer     = "musicbox-oauth-state"
)

// Signs and verifies OAuth state parameter
// State carries a nonce which is also stored in a browser cookie to tie callback to the browser started the flow
type StateSigner struct {
	key []byte
	ttl time.Duration
}

func NewStateSigner(secret string, ttl time.Duration) (*StateSigner, error) {
	if secret == "" {
		return nil, errors.New("state secret must not be empty")
	}
	if ttl == 0 {
		ttl = defaultStateTTL
	}
	return &StateSigner{key: deriveKey(secret, stateIssuer), ttl: ttl}, nil
}

// Key bound to the label, so tokens signed with the plain secret never verify as state
func deriveKey(secret string, label string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(label))
	return mac.Sum(nil)
}

func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Issue new state and its nonce
func (s *StateSigner) Issue() (state string, nonce string, err error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("error while generating nonce. Err: %w", err)
	}
	nonce = base64.RawURLEncoding.EncodeToString(b)

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		ID:        nonce,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})

	state, err = token.SignedString(s.key)
	if err != nil {
		return "", "", fmt.Errorf("error while signing state. Err: %w", err)
	}
	return state, nonce, nil
}

// Verify state and return its nonce
func (s *StateSigner) Verify(state string) (string, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		state,
		&claims,
		func(t *jwt.Token) (any, error) {
			return s.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("invalid oauth state: %w", err)
	}
	return claims.ID, nil
}
