// Package common defines shared constants and sentinel errors used across
// the DevLens sync service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Token lifecycle errors. ErrReauthRequired is terminal: the stored
	// credential is dead and only a new OAuth flow can fix it.
	ErrReauthRequired     = errors.New("reauthorization required")
	ErrRefreshUnsupported = errors.New("provider does not support token refresh")
	ErrNotConnected       = errors.New("provider not connected")

	// ErrDecryptionFailed is deliberately a single value for every failure
	// mode: callers must not be able to distinguish a wrong key from
	// corrupted data.
	ErrDecryptionFailed = errors.New("decryption failed")

	// Rate limiting.
	ErrRateLimited = errors.New("rate limit exceeded")

	// OAuth flow errors.
	ErrInvalidState     = errors.New("invalid or expired state token")
	ErrProviderDisabled = errors.New("provider is not configured")

	// Auth errors (invalid or malformed session token).
	ErrInvalidToken = errors.New("invalid token")
)
