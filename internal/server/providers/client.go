package providers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

const defaultTimeout = 30 * time.Second

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// netError wraps a transport-level failure (DNS, connect, timeout).
func netError(provider models.Provider, err error) *Error {
	return &Error{Provider: provider, Code: CodeNetworkError, Message: err.Error()}
}

func missingToken(provider models.Provider) *Error {
	return &Error{Provider: provider, Code: CodeMissingToken, Message: "no access token"}
}

// classifyStatus maps an HTTP status to the shared taxonomy. Providers with
// in-body error envelopes (Slack) layer their own classification on top.
func classifyStatus(provider models.Provider, status int, message string, header http.Header) *Error {
	e := &Error{Provider: provider, Status: status, Message: message}

	switch {
	case status == http.StatusUnauthorized:
		e.Code = CodeInvalidToken
	case status == http.StatusTooManyRequests:
		e.Code = CodeRateLimit
		e.RetryAfter = parseRetryAfter(header)
	case status == http.StatusForbidden:
		// GitHub reports primary rate limiting as 403 with a zeroed
		// remaining-quota header.
		if header.Get("X-RateLimit-Remaining") == "0" {
			e.Code = CodeRateLimit
			e.RetryAfter = parseRateLimitReset(header)
		} else {
			e.Code = CodeForbidden
		}
	default:
		e.Code = CodeAPIError
	}

	return e
}

func parseRetryAfter(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func parseRateLimitReset(header http.Header) time.Duration {
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(unix, 0)); d > 0 {
				return d
			}
		}
	}
	return 0
}

// decodeJSON reads at most 4 MiB of body into v.
func decodeJSON(body io.Reader, v any) error {
	return json.NewDecoder(io.LimitReader(body, 4<<20)).Decode(v)
}

// readSnippet drains up to n bytes of body for error messages.
func readSnippet(body io.Reader, n int64) string {
	b, _ := io.ReadAll(io.LimitReader(body, n))
	return string(b)
}

func fmtDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
