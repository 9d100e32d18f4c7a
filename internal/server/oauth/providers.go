// Package oauth implements the OAuth flows against the four providers:
// authorization-URL construction, code exchange, token refresh, token
// revocation, and the single-use CSRF state tokens binding a flow to its
// initiating user.
package oauth

import (
	"github.com/devlens/devlens/internal/server/config"
	"github.com/devlens/devlens/internal/server/models"
)

// ProviderConfig is the static OAuth endpoint configuration for one provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	RevokeURL    string

	// SupportsRefresh is false for providers issuing non-expiring tokens
	// without a refresh grant (GitHub OAuth apps).
	SupportsRefresh bool
}

// buildConfigs assembles the provider table from the runtime config. A
// provider whose client credentials are absent from the environment is left
// out entirely: the system treats every provider as optional.
func buildConfigs(cfg *config.Config) map[models.Provider]ProviderConfig {
	configs := make(map[models.Provider]ProviderConfig)

	redirect := func(p models.Provider) string {
		return cfg.BaseURL + "/api/integrations/" + string(p) + "/callback"
	}

	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		configs[models.ProviderGitHub] = ProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURI:  redirect(models.ProviderGitHub),
			Scopes:       []string{"repo", "read:user"},
			AuthURL:      "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			RevokeURL:    "https://api.github.com/applications/" + cfg.GitHubClientID + "/grant",
		}
	}

	if cfg.NotionClientID != "" && cfg.NotionClientSecret != "" {
		configs[models.ProviderNotion] = ProviderConfig{
			ClientID:     cfg.NotionClientID,
			ClientSecret: cfg.NotionClientSecret,
			RedirectURI:  redirect(models.ProviderNotion),
			AuthURL:      "https://api.notion.com/v1/oauth/authorize",
			TokenURL:     "https://api.notion.com/v1/oauth/token",
		}
	}

	if cfg.SlackClientID != "" && cfg.SlackClientSecret != "" {
		configs[models.ProviderSlack] = ProviderConfig{
			ClientID:        cfg.SlackClientID,
			ClientSecret:    cfg.SlackClientSecret,
			RedirectURI:     redirect(models.ProviderSlack),
			Scopes:          []string{"search:read", "users:read"},
			AuthURL:         "https://slack.com/oauth/v2/authorize",
			TokenURL:        "https://slack.com/api/oauth.v2.access",
			RevokeURL:       "https://slack.com/api/auth.revoke",
			SupportsRefresh: true,
		}
	}

	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		configs[models.ProviderCalendar] = ProviderConfig{
			ClientID:        cfg.GoogleClientID,
			ClientSecret:    cfg.GoogleClientSecret,
			RedirectURI:     redirect(models.ProviderCalendar),
			Scopes:          []string{"https://www.googleapis.com/auth/calendar.readonly"},
			AuthURL:         "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:        "https://oauth2.googleapis.com/token",
			RevokeURL:       "https://oauth2.googleapis.com/revoke",
			SupportsRefresh: true,
		}
	}

	return configs
}
