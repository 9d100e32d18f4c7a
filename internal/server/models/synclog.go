package models

import "time"

type SyncStatus string

const (
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusPartial SyncStatus = "partial"
)

// SyncLog is one append-only audit record per sync attempt. A row starts in
// "syncing" and transitions exactly once to a terminal status; it is never
// updated after CompletedAt is set.
type SyncLog struct {
	ID           string
	UserID       string
	Provider     Provider
	Status       SyncStatus
	ItemsSynced  int
	ErrorMessage string
	DurationMS   int64
	StartedAt    time.Time
	CompletedAt  *time.Time
}
