// Package providers contains the typed API clients for GitHub, Notion,
// Slack, and Google Calendar. Each client translates its provider's failure
// modes into one shared error taxonomy at the client boundary; nothing
// upstream re-classifies errors.
package providers

import (
	"fmt"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

// Code classifies a provider failure.
type Code string

const (
	// CodeMissingToken: the client was constructed without a token.
	CodeMissingToken Code = "MISSING_TOKEN"

	// CodeInvalidToken: 401 / invalid_auth. Not retryable — signals reauth.
	CodeInvalidToken Code = "INVALID_TOKEN"

	// CodeRateLimit: 429 / ratelimited. Retryable after backoff.
	CodeRateLimit Code = "RATE_LIMIT"

	// CodeForbidden: 403 without rate-limit semantics.
	CodeForbidden Code = "FORBIDDEN"

	// CodeAPIError: any other API failure. Retryable only for 5xx.
	CodeAPIError Code = "API_ERROR"

	// CodeNetworkError: transport-level failure. Retryable.
	CodeNetworkError Code = "NETWORK_ERROR"
)

// Error is the classified provider failure consumed by the sync
// orchestrator's retry logic.
type Error struct {
	Provider models.Provider
	Code     Code
	Status   int
	Message  string

	// RetryAfter carries the provider-advertised wait, when present.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Retryable reports whether the orchestrator may retry the failed call.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeRateLimit, CodeNetworkError:
		return true
	case CodeAPIError:
		return e.Status >= 500
	}
	return false
}

// IsRetryable reports whether err is a retryable provider error. Anything
// that is not a classified provider error is non-retryable.
func IsRetryable(err error) bool {
	var pe *Error
	if ok := asError(err, &pe); ok {
		return pe.Retryable()
	}
	return false
}

// IsRateLimited reports whether err is a rate-limit provider error.
func IsRateLimited(err error) bool {
	var pe *Error
	if ok := asError(err, &pe); ok {
		return pe.Code == CodeRateLimit
	}
	return false
}

// RetryAfterOf returns the provider-advertised wait attached to err, or zero.
func RetryAfterOf(err error) time.Duration {
	var pe *Error
	if ok := asError(err, &pe); ok {
		return pe.RetryAfter
	}
	return 0
}

// IsAuthError reports whether err signals a dead token.
func IsAuthError(err error) bool {
	var pe *Error
	if ok := asError(err, &pe); ok {
		return pe.Code == CodeInvalidToken || pe.Code == CodeMissingToken
	}
	return false
}
