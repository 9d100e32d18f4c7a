// Package activities declares the repository contract for unified activity
// records ingested from providers.
package activities

import (
	"context"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

// Stats aggregates a user's activity over a time window, as consumed by the
// summarization boundary.
type Stats struct {
	Total      int
	ByType     map[string]int
	BySource   map[string]int
	BusiestDay string
}

// Repository defines storage operations for activity records.
type Repository interface {
	// UpsertBatch inserts the given activities, ignoring rows whose
	// (user_id, external_id) already exist. It returns the number of rows
	// actually inserted, so re-running a sync over an overlapping window
	// reports zero for already-seen items.
	UpsertBatch(ctx context.Context, items []*models.Activity) (int, error)

	// DeleteByProvider removes every activity a provider contributed for the
	// user. Called on disconnect.
	DeleteByProvider(ctx context.Context, userID string, provider models.Provider) error

	// Stats aggregates activity counts since the given time.
	Stats(ctx context.Context, userID string, since time.Time) (*Stats, error)
}
