package models

import "time"

// TokenSet is a decrypted OAuth credential as handed out by a provider.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is zero when the provider issued a non-expiring token
	// (GitHub OAuth apps do this).
	ExpiresAt time.Time
}

// Expired reports whether the access token is past its expiry. Non-expiring
// tokens are never expired.
func (t *TokenSet) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Credential is the stored per-user, per-provider OAuth credential. The token
// fields hold ciphertext only; plaintext never reaches the repository layer.
type Credential struct {
	UserID          string
	Provider        Provider
	AccessTokenEnc  string
	RefreshTokenEnc string
	ExpiresAt       time.Time
	Connected       bool
	LastSyncAt      time.Time
	UpdatedAt       time.Time
}
