// Package health evaluates the operational state of each connected
// integration from its recent sync history and credential, and raises
// notifications for conditions that need the user.
package health

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/repositories/credentials"
	"github.com/devlens/devlens/internal/server/repositories/synclogs"
)

const (
	// recentWindow is how many sync log entries the failure scan considers.
	recentWindow = 10

	// staleSyncCutoff: a run still in "syncing" after this long is treated
	// as failed. The process that started it is assumed dead.
	staleSyncCutoff = 15 * time.Minute

	// expiryHorizon flags tokens about to expire that no sync will refresh
	// in time.
	expiryHorizon = 5 * time.Minute

	// failureThreshold escalates consecutive failures to error severity.
	failureThreshold = 3
)

// State classifies one integration's health.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateError    State = "error"
)

// Issue types reported by the monitor.
const (
	IssueReauthRequired      = "reauth_required"
	IssueTokenExpired        = "token_expired"
	IssueConsecutiveFailures = "consecutive_failures"
)

// Issue is one detected problem with its own severity. Reauth is a warning:
// the user has a clear remedy and syncing simply pauses until they act.
type Issue struct {
	Type     string          `json:"type"`
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
}

// Report is the health verdict for one provider.
type Report struct {
	Provider            models.Provider `json:"provider"`
	State               State           `json:"state"`
	Issues              []Issue         `json:"issues,omitempty"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	ReauthRequired      bool            `json:"reauth_required"`
	TokenExpiresSoon    bool            `json:"token_expires_soon"`
	LastSuccessAt       *time.Time      `json:"last_success_at,omitempty"`
	Detail              string          `json:"detail,omitempty"`
}

// Notifier is the slice of the notification service the monitor raises
// alerts through.
type Notifier interface {
	NotifyReauthRequired(ctx context.Context, userID string, provider models.Provider) error
	NotifySyncFailures(ctx context.Context, userID string, provider models.Provider, count int) error
	NotifyTokenExpired(ctx context.Context, userID string, provider models.Provider) error
}

// authKeywords mark failure messages that indicate a dead credential rather
// than a transient provider problem.
var authKeywords = []string{
	"invalid_token",
	"invalid_auth",
	"token_revoked",
	"token_expired",
	"missing_token",
	"unauthorized",
	"reauthorization required",
}

type Monitor struct {
	logs     synclogs.Repository
	creds    credentials.Repository
	notifier Notifier
	log      logging.Logger
	now      func() time.Time
}

func New(logs synclogs.Repository, creds credentials.Repository, notifier Notifier, log logging.Logger) *Monitor {
	return &Monitor{logs: logs, creds: creds, notifier: notifier, log: log, now: time.Now}
}

// Check evaluates one provider and raises any warranted notifications.
func (m *Monitor) Check(ctx context.Context, userID string, provider models.Provider) (*Report, error) {
	report := &Report{Provider: provider, State: StateHealthy}

	entries, err := m.logs.ListRecent(ctx, userID, provider, recentWindow)
	if err != nil {
		return nil, err
	}

	report.ConsecutiveFailures = m.consecutiveFailures(entries)
	report.ReauthRequired = m.authFailure(entries)

	for _, e := range entries {
		if e.Status == models.SyncStatusSuccess {
			t := e.StartedAt
			report.LastSuccessAt = &t
			break
		}
	}

	cred, err := m.creds.Get(ctx, userID, provider)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if err == nil && cred.Connected && !cred.ExpiresAt.IsZero() {
		report.TokenExpiresSoon = cred.ExpiresAt.Before(m.now().Add(expiryHorizon))
	}

	m.classify(report)
	m.raise(ctx, userID, report)
	return report, nil
}

// classify collects the typed issues and derives the overall state from
// their severities: any error issue makes the state error, otherwise any
// issue or recent failure makes it degraded.
func (m *Monitor) classify(r *Report) {
	if r.ReauthRequired {
		r.Issues = append(r.Issues, Issue{
			Type:     IssueReauthRequired,
			Severity: models.SeverityWarning,
			Message:  "authorization is no longer valid",
		})
	}
	if r.TokenExpiresSoon {
		r.Issues = append(r.Issues, Issue{
			Type:     IssueTokenExpired,
			Severity: models.SeverityError,
			Message:  "access token expires soon",
		})
	}
	if r.ConsecutiveFailures >= failureThreshold {
		r.Issues = append(r.Issues, Issue{
			Type:     IssueConsecutiveFailures,
			Severity: models.SeverityError,
			Message:  "sync is failing repeatedly",
		})
	}

	for _, issue := range r.Issues {
		if issue.Severity == models.SeverityError {
			r.State = StateError
		} else if r.State == StateHealthy {
			r.State = StateDegraded
		}
	}
	if len(r.Issues) > 0 {
		r.Detail = r.Issues[0].Message
		return
	}
	if r.ConsecutiveFailures > 0 {
		r.State = StateDegraded
		r.Detail = "recent sync failures"
	}
}

// raise forwards every detected issue to the notification service. The
// service's dedup window keeps repeated checks from flooding the user.
func (m *Monitor) raise(ctx context.Context, userID string, r *Report) {
	if m.notifier == nil {
		return
	}
	for _, issue := range r.Issues {
		var err error
		switch issue.Type {
		case IssueReauthRequired:
			err = m.notifier.NotifyReauthRequired(ctx, userID, r.Provider)
		case IssueTokenExpired:
			err = m.notifier.NotifyTokenExpired(ctx, userID, r.Provider)
		case IssueConsecutiveFailures:
			err = m.notifier.NotifySyncFailures(ctx, userID, r.Provider, r.ConsecutiveFailures)
		}
		if err != nil {
			m.log.Warn(ctx, "error raising notification",
				"provider", r.Provider, "issue", issue.Type, "error", err)
		}
	}
}

// consecutiveFailures counts failed runs from the newest entry backwards,
// stopping at the first success. A run stuck in "syncing" past the staleness
// cutoff counts as failed; a fresh in-flight run is skipped.
func (m *Monitor) consecutiveFailures(entries []*models.SyncLog) int {
	count := 0
	for _, e := range entries {
		switch e.Status {
		case models.SyncStatusSuccess:
			return count
		case models.SyncStatusFailed, models.SyncStatusPartial:
			count++
		case models.SyncStatusSyncing:
			if m.now().Sub(e.StartedAt) > staleSyncCutoff {
				count++
			}
		}
	}
	return count
}

// authFailure reports whether the newest failed entries point at a dead
// credential.
func (m *Monitor) authFailure(entries []*models.SyncLog) bool {
	for _, e := range entries {
		if e.Status == models.SyncStatusSuccess {
			return false
		}
		if e.Status != models.SyncStatusFailed {
			continue
		}
		msg := strings.ToLower(e.ErrorMessage)
		for _, kw := range authKeywords {
			if strings.Contains(msg, kw) {
				return true
			}
		}
	}
	return false
}

// CheckAll evaluates every connected provider concurrently and returns one
// report per provider.
func (m *Monitor) CheckAll(ctx context.Context, userID string) ([]*Report, error) {
	connected, err := m.creds.ListConnected(ctx, userID)
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, len(connected))
	errs := make([]error, len(connected))

	var wg sync.WaitGroup
	for i, provider := range connected {
		wg.Add(1)
		go func(i int, provider models.Provider) {
			defer wg.Done()
			reports[i], errs[i] = m.Check(ctx, userID, provider)
		}(i, provider)
	}
	wg.Wait()

	out := make([]*Report, 0, len(reports))
	for i, r := range reports {
		if errs[i] != nil {
			m.log.Warn(ctx, "health check failed", "provider", connected[i], "error", errs[i])
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
