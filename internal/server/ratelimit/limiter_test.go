package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/server/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := kvstore.NewMemory(0)
	t.Cleanup(func() { _ = store.Close() })

	// the limiter and the store must agree on the clock
	store.Now = func() time.Time { return now }

	l := NewLimiter(store)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_SyncClass_EleventhRejected(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := l.Allow(ctx, "u1", ClassSync)
		require.NoError(t, err, "request %d should be allowed", i+1)
	}

	retryAfter, err := l.Allow(ctx, "u1", ClassSync)
	assert.ErrorIs(t, err, common.ErrRateLimited)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestLimiter_WindowReset(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := l.Allow(ctx, "u1", ClassSync)
		require.NoError(t, err)
	}
	_, err := l.Allow(ctx, "u1", ClassSync)
	require.ErrorIs(t, err, common.ErrRateLimited)

	*now = now.Add(61 * time.Second)

	_, err = l.Allow(ctx, "u1", ClassSync)
	assert.NoError(t, err)
}

func TestLimiter_UsersIsolated(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := l.Allow(ctx, "u1", ClassSync)
		require.NoError(t, err)
	}

	_, err := l.Allow(ctx, "u2", ClassSync)
	assert.NoError(t, err)
}

func TestLimiter_ClassesIsolated(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := l.Allow(ctx, "u1", ClassSync)
		require.NoError(t, err)
	}

	_, err := l.Allow(ctx, "u1", ClassSummary)
	assert.NoError(t, err)
}
