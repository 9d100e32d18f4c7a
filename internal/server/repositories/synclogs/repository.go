// Package synclogs declares the repository contract for the append-only sync
// audit trail. The log is the source of truth for the health monitor's
// consecutive-failure count.
package synclogs

import (
	"context"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

// Repository defines storage operations for sync log entries.
type Repository interface {
	// Create inserts a new entry, normally in "syncing" status.
	Create(ctx context.Context, entry *models.SyncLog) error

	// Complete transitions an entry to a terminal status. The transition
	// happens at most once: entries that already have completed_at set are
	// left untouched.
	Complete(ctx context.Context, id string, status models.SyncStatus, items int, errorMessage string, duration time.Duration, completedAt time.Time) error

	// ListRecent returns up to limit entries for (userID, provider), newest
	// first.
	ListRecent(ctx context.Context, userID string, provider models.Provider, limit int) ([]*models.SyncLog, error)

	// Latest returns the most recent entry, or common.ErrNotFound.
	Latest(ctx context.Context, userID string, provider models.Provider) (*models.SyncLog, error)

	// LastSuccessful returns the most recent entry with success status, or
	// common.ErrNotFound. Its StartedAt drives the incremental sync cursor.
	LastSuccessful(ctx context.Context, userID string, provider models.Provider) (*models.SyncLog, error)

	// DeleteByProvider removes the provider's entries for the user. Called on
	// disconnect.
	DeleteByProvider(ctx context.Context, userID string, provider models.Provider) error
}
