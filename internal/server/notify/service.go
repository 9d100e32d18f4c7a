// Package notify creates and manages user-facing integration alerts with a
// dedup window, so a flapping integration does not flood the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/repositories/notifications"
)

// dedupWindow suppresses repeat notifications of the same (user, provider,
// type) while an unread one this recent exists.
const dedupWindow = 24 * time.Hour

type Service struct {
	repo notifications.Repository
	log  logging.Logger
	now  func() time.Time
}

func New(repo notifications.Repository, log logging.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Notify persists n unless an unread notification of the same
// (user, provider, type) already exists within the dedup window. It returns
// the stored notification, which is the prior one when deduped.
func (s *Service) Notify(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	since := s.now().Add(-dedupWindow)
	existing, err := s.repo.FindRecentUnread(ctx, n.UserID, n.Provider, n.Type, since)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("error checking for duplicate notification: %w", err)
	}

	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("error creating notification: %w", err)
	}

	s.log.Info(ctx, "notification created",
		"user_id", n.UserID, "provider", n.Provider, "type", n.Type, "severity", n.Severity)
	return n, nil
}

// NotifyReauthRequired alerts that the provider connection is dead and needs
// the user to reconnect. Warning severity: the fix is a single reconnect.
func (s *Service) NotifyReauthRequired(ctx context.Context, userID string, provider models.Provider) error {
	_, err := s.Notify(ctx, &models.Notification{
		UserID:    userID,
		Provider:  provider,
		Type:      models.NotificationReauthRequired,
		Severity:  models.SeverityWarning,
		Title:     fmt.Sprintf("%s connection needs attention", providerLabel(provider)),
		Message:   fmt.Sprintf("Your %s authorization is no longer valid. Reconnect to resume syncing.", providerLabel(provider)),
		ActionURL: fmt.Sprintf("/settings/integrations/%s", provider),
	})
	return err
}

// NotifySyncFailures alerts about consecutive sync failures. Three or more
// escalate to error severity.
func (s *Service) NotifySyncFailures(ctx context.Context, userID string, provider models.Provider, count int) error {
	severity := models.SeverityWarning
	if count >= 3 {
		severity = models.SeverityError
	}
	_, err := s.Notify(ctx, &models.Notification{
		UserID:    userID,
		Provider:  provider,
		Type:      models.NotificationSyncFailures,
		Severity:  severity,
		Title:     fmt.Sprintf("%s sync is failing", providerLabel(provider)),
		Message:   fmt.Sprintf("The last %d sync attempts for %s failed.", count, providerLabel(provider)),
		ActionURL: fmt.Sprintf("/settings/integrations/%s", provider),
		Metadata:  map[string]any{"consecutive_failures": count},
	})
	return err
}

// NotifyTokenExpired alerts that the stored token is expiring and cannot be
// refreshed automatically.
func (s *Service) NotifyTokenExpired(ctx context.Context, userID string, provider models.Provider) error {
	_, err := s.Notify(ctx, &models.Notification{
		UserID:    userID,
		Provider:  provider,
		Type:      models.NotificationTokenExpired,
		Severity:  models.SeverityError,
		Title:     fmt.Sprintf("%s access is expiring", providerLabel(provider)),
		Message:   fmt.Sprintf("Your %s access token is about to expire. Reconnect to keep syncing.", providerLabel(provider)),
		ActionURL: fmt.Sprintf("/settings/integrations/%s", provider),
	})
	return err
}

func (s *Service) List(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.List(ctx, userID, limit)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// ClearProvider removes the provider's notifications, used when the user
// disconnects or successfully reconnects it.
func (s *Service) ClearProvider(ctx context.Context, userID string, provider models.Provider) error {
	return s.repo.DeleteByProvider(ctx, userID, provider)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func providerLabel(p models.Provider) string {
	switch p {
	case models.ProviderGitHub:
		return "GitHub"
	case models.ProviderNotion:
		return "Notion"
	case models.ProviderSlack:
		return "Slack"
	case models.ProviderCalendar:
		return "Google Calendar"
	}
	return string(p)
}
