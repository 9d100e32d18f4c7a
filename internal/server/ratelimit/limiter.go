// Package ratelimit throttles per-user request rates with fixed windows over
// the shared kvstore backend.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/server/kvstore"
)

// Class is a rate-limited action class with its own per-user budget.
type Class string

const (
	ClassSync    Class = "sync"
	ClassSummary Class = "summary"
	ClassDefault Class = "default"
)

const window = time.Minute

func limitFor(class Class) int64 {
	switch class {
	case ClassSync:
		return 10
	case ClassSummary:
		return 20
	default:
		return 100
	}
}

type Limiter struct {
	store kvstore.Store
	now   func() time.Time
}

func NewLimiter(store kvstore.Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Allow records one request for (userID, class). When the window budget is
// exhausted it returns common.ErrRateLimited together with the time left
// until the window resets.
func (l *Limiter) Allow(ctx context.Context, userID string, class Class) (time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", class, userID)

	count, resetAt, err := l.store.Increment(ctx, key, window)
	if err != nil {
		return 0, fmt.Errorf("error incrementing rate counter: %w", err)
	}

	if count > limitFor(class) {
		retryAfter := resetAt.Sub(l.now())
		if retryAfter < 0 {
			retryAfter = 0
		}
		return retryAfter, common.ErrRateLimited
	}

	return 0, nil
}
