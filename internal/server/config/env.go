package config

import "os"

// parseEnv overlays secrets from environment variables. OAuth client
// credentials are environment-only: they never belong in config files or on
// the command line. A provider whose pair is absent stays disabled.
func parseEnv(config *Config) {
	overlay := map[string]*string{
		"DEVLENS_SESSION_SECRET":      &config.SessionSecret,
		"DEVLENS_TOKEN_MASTER_SECRET": &config.TokenMasterSecret,
		"DEVLENS_DATABASE_DSN":        &config.DatabaseDSN,
		"DEVLENS_REDIS_ADDR":          &config.RedisAddr,
		"DEVLENS_REDIS_PASSWORD":      &config.RedisPassword,
		"DEVLENS_S3_ACCESS_KEY":       &config.S3AccessKey,
		"DEVLENS_S3_SECRET_KEY":       &config.S3SecretKey,
		"GITHUB_CLIENT_ID":            &config.GitHubClientID,
		"GITHUB_CLIENT_SECRET":        &config.GitHubClientSecret,
		"NOTION_CLIENT_ID":            &config.NotionClientID,
		"NOTION_CLIENT_SECRET":        &config.NotionClientSecret,
		"SLACK_CLIENT_ID":             &config.SlackClientID,
		"SLACK_CLIENT_SECRET":         &config.SlackClientSecret,
		"GOOGLE_CLIENT_ID":            &config.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":        &config.GoogleClientSecret,
	}

	for name, dst := range overlay {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}
