// Package notifications declares the repository contract for persisted
// user-facing integration alerts.
package notifications

import (
	"context"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

// Repository defines storage operations for notifications.
type Repository interface {
	Create(ctx context.Context, n *models.Notification) error

	// FindRecentUnread returns an unread notification of the same
	// (user, provider, type) created at or after since, or common.ErrNotFound.
	// It backs the 24-hour dedup window.
	FindRecentUnread(ctx context.Context, userID string, provider models.Provider, ntype models.NotificationType, since time.Time) (*models.Notification, error)

	// List returns up to limit notifications for the user, newest first.
	List(ctx context.Context, userID string, limit int) ([]*models.Notification, error)

	// MarkRead flips the read flag on one of the user's notifications.
	MarkRead(ctx context.Context, userID, id string) error

	MarkAllRead(ctx context.Context, userID string) error

	// DeleteByProvider removes the provider's notifications for the user.
	// Called on disconnect and on reconnect (resolution).
	DeleteByProvider(ctx context.Context, userID string, provider models.Provider) error

	UnreadCount(ctx context.Context, userID string) (int, error)
}
