// Package models holds the shared domain types of the sync service:
// providers, credentials, activities, sync logs, and notifications.
package models

// Provider identifies an external system with OAuth-protected data.
type Provider string

const (
	ProviderGitHub   Provider = "github"
	ProviderNotion   Provider = "notion"
	ProviderSlack    Provider = "slack"
	ProviderCalendar Provider = "google_calendar"
)

// AllProviders lists every provider the service knows about, in display order.
func AllProviders() []Provider {
	return []Provider{ProviderGitHub, ProviderNotion, ProviderSlack, ProviderCalendar}
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderGitHub, ProviderNotion, ProviderSlack, ProviderCalendar:
		return true
	}
	return false
}

func (p Provider) String() string {
	return string(p)
}
