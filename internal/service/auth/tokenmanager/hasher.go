package tokenmanager

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Interface to create or compare refresh token hashes
type Hasher interface {
	// Generate hash from the plaintext token
	Hash(token string) (string, error)

	// Compare known hashed token and user provided one
	// Must be protected against timing attacks
	Compare(hashed string, token string) error
}

// Bcrypt token hasher
// Will be used as default one if user not provide it's own
//
// Tokens are prehashed with sha256 cause signed tokens are longer than 72 bytes bcrypt accepts
type BcryptHasher struct {
	// Bcrypt cost. If zero bcrypt.DefaultCost is used
	Cost int
}

func (h BcryptHasher) Hash(token string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	sum := sha256.Sum256([]byte(token))
	hash, err := bcrypt.GenerateFromPassword(sum[:], cost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashed string, token string) error {
	sum := sha256.Sum256([]byte(token))
	return bcrypt.CompareHashAndPassword([]byte(hashed), sum[:])
}
