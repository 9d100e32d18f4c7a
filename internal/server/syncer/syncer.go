// Package syncer orchestrates pulling activity from connected providers into
// the unified store: token retrieval, retry with backoff, audit logging, and
// fan-out across providers.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/providers"
	"github.com/devlens/devlens/internal/server/repositories/activities"
	"github.com/devlens/devlens/internal/server/repositories/synclogs"
	"github.com/devlens/devlens/internal/server/tokenstore"
)

const (
	// maxAttempts bounds retries per sync run, including the first try.
	maxAttempts = 3

	// defaultLookback is the sync window for a provider that has never
	// synced successfully.
	defaultLookback = 30 * 24 * time.Hour
)

// Result is the outcome of one provider's sync run.
type Result struct {
	Provider    models.Provider `json:"provider"`
	Success     bool            `json:"success"`
	ItemsSynced int             `json:"items_synced"`
	Error       string          `json:"error,omitempty"`
	Duration    time.Duration   `json:"duration_ms"`
}

// Status describes a provider's sync state for the status endpoint.
type Status struct {
	Provider  models.Provider   `json:"provider"`
	Connected bool              `json:"connected"`
	LastSync  *models.SyncLog   `json:"last_sync,omitempty"`
	Recent    []*models.SyncLog `json:"recent,omitempty"`
}

// Archiver stores the raw payload of a sync run somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, userID string, provider models.Provider, runID string, raw []byte) error
}

// Orchestrator runs sync pipelines with retry, writes the audit trail, and
// ingests the results.
type Orchestrator struct {
	tokens    *tokenstore.Store
	refresh   tokenstore.RefreshFunc
	logs      synclogs.Repository
	acts      activities.Repository
	pipelines map[models.Provider]Pipeline
	archiver  Archiver
	delay     DelayFunc
	log       logging.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(tokens *tokenstore.Store, refresh tokenstore.RefreshFunc, logs synclogs.Repository, acts activities.Repository, pipelines []Pipeline, log logging.Logger) *Orchestrator {
	m := make(map[models.Provider]Pipeline, len(pipelines))
	for _, p := range pipelines {
		m[p.Provider()] = p
	}
	return &Orchestrator{
		tokens:    tokens,
		refresh:   refresh,
		logs:      logs,
		acts:      acts,
		pipelines: m,
		delay:     DefaultDelay,
		log:       log,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// SetArchiver enables raw-payload archival for successful runs.
func (o *Orchestrator) SetArchiver(a Archiver) { o.archiver = a }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SyncProvider runs one provider's sync end to end and always returns a
// Result, even on failure. Exactly one sync log entry is written per call.
func (o *Orchestrator) SyncProvider(ctx context.Context, userID string, provider models.Provider) *Result {
	started := o.now()
	res := &Result{Provider: provider}

	finish := func(status models.SyncStatus, items int, errMsg string) *Result {
		res.Duration = o.now().Sub(started)
		res.ItemsSynced = items
		res.Success = status == models.SyncStatusSuccess
		res.Error = errMsg
		return res
	}

	pipeline, ok := o.pipelines[provider]
	if !ok {
		return finish(models.SyncStatusFailed, 0, common.ErrProviderDisabled.Error())
	}

	entry := &models.SyncLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		Status:    models.SyncStatusSyncing,
		StartedAt: started,
	}
	if err := o.logs.Create(ctx, entry); err != nil {
		return finish(models.SyncStatusFailed, 0, fmt.Sprintf("error creating sync log: %v", err))
	}

	complete := func(status models.SyncStatus, items int, errMsg string) *Result {
		completedAt := o.now()
		if err := o.logs.Complete(ctx, entry.ID, status, items, errMsg, completedAt.Sub(started), completedAt); err != nil {
			o.log.Error(ctx, "error completing sync log", "user_id", userID, "provider", provider, "error", err)
		}
		return finish(status, items, errMsg)
	}

	tokens, err := o.tokens.GetValid(ctx, userID, provider, o.refresh)
	if err != nil {
		o.log.Warn(ctx, "sync aborted: no usable token", "user_id", userID, "provider", provider, "error", err)
		return complete(models.SyncStatusFailed, 0, err.Error())
	}

	since := o.sinceCursor(ctx, userID, provider)

	batch, err := o.runWithRetry(ctx, pipeline, userID, tokens.AccessToken, since)
	if err != nil {
		o.log.Warn(ctx, "sync failed", "user_id", userID, "provider", provider, "error", err)
		return complete(models.SyncStatusFailed, 0, err.Error())
	}

	inserted, err := o.acts.UpsertBatch(ctx, batch.Activities)
	if err != nil {
		return complete(models.SyncStatusFailed, 0, fmt.Sprintf("error storing activities: %v", err))
	}

	if o.archiver != nil && len(batch.Raw) > 0 {
		if err := o.archiver.Archive(ctx, userID, provider, entry.ID, batch.Raw); err != nil {
			// archival is best-effort
			o.log.Warn(ctx, "raw payload archive failed", "user_id", userID, "provider", provider, "error", err)
		}
	}

	if err := o.tokens.MarkSynced(ctx, userID, provider); err != nil {
		o.log.Warn(ctx, "error recording last sync time", "user_id", userID, "provider", provider, "error", err)
	}

	o.log.Info(ctx, "sync finished", "user_id", userID, "provider", provider, "items", inserted)
	return complete(models.SyncStatusSuccess, inserted, "")
}

// runWithRetry executes the pipeline up to maxAttempts times, backing off
// between attempts per the delay policy. Non-retryable errors fail fast.
func (o *Orchestrator) runWithRetry(ctx context.Context, p Pipeline, userID, token string, since time.Time) (*Batch, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		batch, err := p.Run(ctx, userID, token, since)
		if err == nil {
			return batch, nil
		}
		lastErr = err

		if !providers.IsRetryable(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		d := o.delay(attempt, err)
		o.log.Debug(ctx, "retrying sync", "provider", p.Provider(), "attempt", attempt, "delay", d)
		if err := o.sleep(ctx, d); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("sync failed after %d attempts: %w", maxAttempts, lastErr)
}

// sinceCursor picks the incremental window start: the StartedAt of the last
// successful run, or the default lookback for a first sync.
func (o *Orchestrator) sinceCursor(ctx context.Context, userID string, provider models.Provider) time.Time {
	last, err := o.logs.LastSuccessful(ctx, userID, provider)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			o.log.Warn(ctx, "error loading sync cursor", "user_id", userID, "provider", provider, "error", err)
		}
		return o.now().Add(-defaultLookback)
	}
	return last.StartedAt
}

// SyncAll syncs every connected provider concurrently. One provider's
// failure never interrupts the others; the returned slice has one Result per
// connected provider.
func (o *Orchestrator) SyncAll(ctx context.Context, userID string) ([]*Result, error) {
	connected, err := o.tokens.ConnectedProviders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing connected providers: %w", err)
	}

	results := make([]*Result, len(connected))
	var wg sync.WaitGroup
	for i, provider := range connected {
		wg.Add(1)
		go func(i int, provider models.Provider) {
			defer wg.Done()
			results[i] = o.SyncProvider(ctx, userID, provider)
		}(i, provider)
	}
	wg.Wait()

	return results, nil
}

// Status reports the sync state of one provider.
func (o *Orchestrator) Status(ctx context.Context, userID string, provider models.Provider) (*Status, error) {
	connected, err := o.tokens.IsConnected(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	st := &Status{Provider: provider, Connected: connected}

	latest, err := o.logs.Latest(ctx, userID, provider)
	if err == nil {
		st.LastSync = latest
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	recent, err := o.logs.ListRecent(ctx, userID, provider, 10)
	if err != nil {
		return nil, err
	}
	st.Recent = recent

	return st, nil
}
