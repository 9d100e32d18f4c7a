// Package credentials declares the repository contract for encrypted
// per-user, per-provider OAuth credentials.
package credentials

import (
	"context"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

// Repository defines storage operations for integration credentials. Token
// fields are ciphertext; encryption happens above this layer.
type Repository interface {
	// Upsert inserts or fully overwrites the credential row for
	// (cred.UserID, cred.Provider), silently replacing any prior tokens.
	Upsert(ctx context.Context, cred *models.Credential) error

	// Get returns the stored credential, or common.ErrNotFound when the
	// provider was never connected.
	Get(ctx context.Context, userID string, provider models.Provider) (*models.Credential, error)

	// Clear nulls all token fields and marks the row disconnected. The
	// ciphertext is actually removed, not just flagged. Clearing an absent
	// row is not an error.
	Clear(ctx context.Context, userID string, provider models.Provider) error

	// SetLastSync records the completion time of a successful sync.
	SetLastSync(ctx context.Context, userID string, provider models.Provider, t time.Time) error

	// ListConnected returns the providers the user currently has connected.
	ListConnected(ctx context.Context, userID string) ([]models.Provider, error)
}
