package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/google/uuid"
)

const refreshSecretSize = 32

// NewRefreshSecret returns a fresh opaque refresh token: 256 bits of
// randomness, base64url-encoded without padding. The plaintext is returned
// to the client exactly once and only its hash is persisted.
func NewRefreshSecret() (string, error) {
	var secret [refreshSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// HashRefreshSecret returns the SHA-256 hex digest used as the storage
// lookup key for a refresh token. The hash is deterministic: the same
// plaintext always maps to the same key.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// NewFamilyID returns the lineage identifier assigned to a login's first
// refresh token and inherited by every rotation descendant.
func NewFamilyID() string {
	return uuid.NewString()
}

// NewTokenID returns a unique identifier for one refresh token row.
func NewTokenID() string {
	return uuid.NewString()
}
