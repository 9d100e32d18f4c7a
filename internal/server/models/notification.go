package models

import "time"

type NotificationType string

const (
	NotificationReauthRequired NotificationType = "reauth_required"
	NotificationSyncFailures   NotificationType = "sync_failures"
	NotificationTokenExpired   NotificationType = "token_expired"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a persisted user-facing alert raised by the health monitor.
// A new notification of the same (user, provider, type) is suppressed while an
// unread one from the last 24 hours exists.
type Notification struct {
	ID        string
	UserID    string
	Provider  Provider
	Type      NotificationType
	Severity  Severity
	Title     string
	Message   string
	ActionURL string
	Read      bool
	Metadata  map[string]any
	CreatedAt time.Time
}
