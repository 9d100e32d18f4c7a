package syncer

import (
	"time"

	"github.com/devlens/devlens/internal/server/providers"
)

// DelayFunc decides how long to wait before retry attempt+1, given the error
// that failed attempt (1-based).
type DelayFunc func(attempt int, err error) time.Duration

// rateLimitLadder escalates waits across consecutive rate-limited attempts.
var rateLimitLadder = []time.Duration{time.Minute, 5 * time.Minute, time.Hour}

// DefaultDelay implements the production backoff policy. Rate-limited
// failures honor the provider-advertised Retry-After when present and
// otherwise climb the 1m/5m/1h ladder; everything else backs off
// exponentially from one second.
func DefaultDelay(attempt int, err error) time.Duration {
	if providers.IsRateLimited(err) {
		if ra := providers.RetryAfterOf(err); ra > 0 {
			return ra
		}
		i := attempt - 1
		if i >= len(rateLimitLadder) {
			i = len(rateLimitLadder) - 1
		}
		return rateLimitLadder[i]
	}
	return time.Second << (attempt - 1)
}
