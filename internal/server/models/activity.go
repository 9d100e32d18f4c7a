package models

import "time"

// Activity is the unified representation of a single remote event (commit,
// PR, page edit, message burst, meeting). Rows are unique per
// (user_id, external_id); re-syncing the same remote item is a no-op.
type Activity struct {
	ID          int64
	UserID      string
	Type        string
	Title       string
	Description string
	Source      Provider
	ExternalID  string
	ExternalURL string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Activity types produced by the provider pipelines.
const (
	ActivityCommit      = "commit"
	ActivityPullRequest = "pull_request"
	ActivityIssue       = "issue"
	ActivityPageEdit    = "page_edit"
	ActivityMessages    = "message_burst"
	ActivityMeeting     = "meeting"
)
