package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/cryptox"
	"github.com/devlens/devlens/internal/dbx"
	"github.com/devlens/devlens/internal/logging"
	serverauth "github.com/devlens/devlens/internal/server/auth"
	"github.com/devlens/devlens/internal/server/config"
	"github.com/devlens/devlens/internal/server/health"
	"github.com/devlens/devlens/internal/server/kvstore"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/notify"
	"github.com/devlens/devlens/internal/server/oauth"
	"github.com/devlens/devlens/internal/server/ratelimit"
	"github.com/devlens/devlens/internal/server/repositories/activities"
	"github.com/devlens/devlens/internal/server/repositories/credentials"
	"github.com/devlens/devlens/internal/server/repositories/notifications"
	"github.com/devlens/devlens/internal/server/repositories/synclogs"
	"github.com/devlens/devlens/internal/server/summary"
	"github.com/devlens/devlens/internal/server/syncer"
	"github.com/devlens/devlens/internal/server/tokenstore"
)

// ---- in-memory repositories ----

type memCredRepo struct {
	creds map[string]*models.Credential
}

func key(userID string, p models.Provider) string { return userID + "/" + string(p) }

func (m *memCredRepo) Upsert(ctx context.Context, cred *models.Credential) error {
	c := *cred
	m.creds[key(cred.UserID, cred.Provider)] = &c
	return nil
}

func (m *memCredRepo) Get(ctx context.Context, userID string, p models.Provider) (*models.Credential, error) {
	c, ok := m.creds[key(userID, p)]
	if !ok {
		return nil, common.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *memCredRepo) Clear(ctx context.Context, userID string, p models.Provider) error {
	delete(m.creds, key(userID, p))
	return nil
}

func (m *memCredRepo) SetLastSync(ctx context.Context, userID string, p models.Provider, t time.Time) error {
	return nil
}

func (m *memCredRepo) ListConnected(ctx context.Context, userID string) ([]models.Provider, error) {
	var out []models.Provider
	for _, p := range models.AllProviders() {
		if c, ok := m.creds[key(userID, p)]; ok && c.Connected {
			out = append(out, p)
		}
	}
	return out, nil
}

type memLogRepo struct {
	entries []*models.SyncLog
}

func (m *memLogRepo) Create(ctx context.Context, e *models.SyncLog) error {
	c := *e
	m.entries = append(m.entries, &c)
	return nil
}

func (m *memLogRepo) Complete(ctx context.Context, id string, status models.SyncStatus, items int, msg string, d time.Duration, at time.Time) error {
	for _, e := range m.entries {
		if e.ID == id && e.CompletedAt == nil {
			e.Status = status
			e.ItemsSynced = items
			e.ErrorMessage = msg
			t := at
			e.CompletedAt = &t
		}
	}
	return nil
}

func (m *memLogRepo) ListRecent(ctx context.Context, userID string, p models.Provider, limit int) ([]*models.SyncLog, error) {
	var out []*models.SyncLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].UserID == userID && m.entries[i].Provider == p {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memLogRepo) Latest(ctx context.Context, userID string, p models.Provider) (*models.SyncLog, error) {
	list, _ := m.ListRecent(ctx, userID, p, 1)
	if len(list) == 0 {
		return nil, common.ErrNotFound
	}
	return list[0], nil
}

func (m *memLogRepo) LastSuccessful(ctx context.Context, userID string, p models.Provider) (*models.SyncLog, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID == userID && e.Provider == p && e.Status == models.SyncStatusSuccess {
			return e, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memLogRepo) DeleteByProvider(ctx context.Context, userID string, p models.Provider) error {
	return nil
}

type memActRepo struct {
	seen map[string]bool
}

func (m *memActRepo) UpsertBatch(ctx context.Context, items []*models.Activity) (int, error) {
	n := 0
	for _, a := range items {
		k := a.UserID + "/" + a.ExternalID
		if !m.seen[k] {
			m.seen[k] = true
			n++
		}
	}
	return n, nil
}

func (m *memActRepo) DeleteByProvider(ctx context.Context, userID string, p models.Provider) error {
	return nil
}

func (m *memActRepo) Stats(ctx context.Context, userID string, since time.Time) (*activities.Stats, error) {
	return &activities.Stats{
		Total:    len(m.seen),
		ByType:   map[string]int{models.ActivityCommit: len(m.seen)},
		BySource: map[string]int{string(models.ProviderGitHub): len(m.seen)},
	}, nil
}

type memNotifRepo struct {
	items []*models.Notification
}

func (m *memNotifRepo) Create(ctx context.Context, n *models.Notification) error {
	c := *n
	m.items = append(m.items, &c)
	return nil
}

func (m *memNotifRepo) FindRecentUnread(ctx context.Context, userID string, p models.Provider, ntype models.NotificationType, since time.Time) (*models.Notification, error) {
	for i := len(m.items) - 1; i >= 0; i-- {
		n := m.items[i]
		if n.UserID == userID && n.Provider == p && n.Type == ntype && !n.Read && !n.CreatedAt.Before(since) {
			return n, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memNotifRepo) List(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	var out []*models.Notification
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memNotifRepo) MarkRead(ctx context.Context, userID, id string) error {
	for _, n := range m.items {
		if n.UserID == userID && n.ID == id {
			n.Read = true
		}
	}
	return nil
}

func (m *memNotifRepo) MarkAllRead(ctx context.Context, userID string) error {
	for _, n := range m.items {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (m *memNotifRepo) DeleteByProvider(ctx context.Context, userID string, p models.Provider) error {
	kept := m.items[:0]
	for _, n := range m.items {
		if !(n.UserID == userID && n.Provider == p) {
			kept = append(kept, n)
		}
	}
	m.items = kept
	return nil
}

func (m *memNotifRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// memRepoManager hands out the in-memory repos regardless of the DB handle,
// which lets WithTx-based handlers run against sqlmock.
type memRepoManager struct {
	creds  *memCredRepo
	logs   *memLogRepo
	acts   *memActRepo
	notifs *memNotifRepo
}

func (m *memRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *memRepoManager) Credentials(db dbx.DBTX) credentials.Repository { return m.creds }

func (m *memRepoManager) Activities(db dbx.DBTX) activities.Repository { return m.acts }

func (m *memRepoManager) SyncLogs(db dbx.DBTX) synclogs.Repository { return m.logs }

func (m *memRepoManager) Notifications(db dbx.DBTX) notifications.Repository { return m.notifs }

// ---- harness ----

type env struct {
	srv    *Server
	router http.Handler
	tokens *tokenstore.Store
	creds  *memCredRepo
	notifs *memNotifRepo
	mock   sqlmock.Sqlmock
}

type stubPipeline struct {
	provider models.Provider
	batch    *syncer.Batch
}

func (s *stubPipeline) Provider() models.Provider { return s.provider }

func (s *stubPipeline) Run(ctx context.Context, userID, token string, since time.Time) (*syncer.Batch, error) {
	return s.batch, nil
}

const sessionSecret = "http-test-secret"

func newEnv(t *testing.T) *env {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	creds := &memCredRepo{creds: make(map[string]*models.Credential)}
	logs := &memLogRepo{}
	acts := &memActRepo{seen: make(map[string]bool)}
	notifs := &memNotifRepo{}
	repos := &memRepoManager{creds: creds, logs: logs, acts: acts, notifs: notifs}

	nop := logging.NewNopLogger()

	enc, err := cryptox.NewEncryptor("test-master")
	require.NoError(t, err)
	tokens := tokenstore.New(creds, enc, nop)

	cfg := &config.Config{
		BaseURL:            "http://localhost:8080",
		GitHubClientID:     "gh-id",
		GitHubClientSecret: "gh-secret",
	}
	oauthMgr := oauth.NewManager(cfg, nop)

	store := kvstore.NewMemory(0)
	t.Cleanup(func() { _ = store.Close() })

	notifySvc := notify.New(notifs, nop)
	pipeline := &stubPipeline{
		provider: models.ProviderGitHub,
		batch: &syncer.Batch{Activities: []*models.Activity{{
			UserID: "u1", Type: models.ActivityCommit,
			Source: models.ProviderGitHub, ExternalID: "c1",
		}}},
	}
	orch := syncer.New(tokens, oauthMgr.Refresh, logs, acts, []syncer.Pipeline{pipeline}, nop)

	srv := NewServer(Deps{
		Addr:          ":0",
		SessionSecret: []byte(sessionSecret),
		DB:            db,
		Repos:         repos,
		Tokens:        tokens,
		OAuth:         oauthMgr,
		State:         oauth.NewStateManager(store),
		Syncer:        orch,
		Health:        health.New(logs, creds, notifySvc, nop),
		Notify:        notifySvc,
		Summary:       summary.New(acts, summary.TemplateSummarizer{}, nop),
		Limiter:       ratelimit.NewLimiter(store),
		Log:           nop,
	})

	return &env{
		srv:    srv,
		router: srv.Router(),
		tokens: tokens,
		creds:  creds,
		notifs: notifs,
		mock:   mock,
	}
}

func (e *env) request(t *testing.T, method, path string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authed {
		token, err := serverauth.GenerateToken("u1", []byte(sessionSecret), time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// ---- tests ----

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/integrations", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RejectsBadToken(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/integrations", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListIntegrations(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.tokens.Store(context.Background(), "u1", models.ProviderGitHub, &models.TokenSet{AccessToken: "tok"}))

	w := e.request(t, http.MethodGet, "/api/integrations", true)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Integrations []integrationView `json:"integrations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Integrations, 4)

	byProvider := make(map[models.Provider]integrationView)
	for _, v := range body.Integrations {
		byProvider[v.Provider] = v
	}
	assert.True(t, byProvider[models.ProviderGitHub].Enabled)
	assert.True(t, byProvider[models.ProviderGitHub].Connected)
	// slack has no configured client credentials in this env
	assert.False(t, byProvider[models.ProviderSlack].Enabled)
	assert.False(t, byProvider[models.ProviderSlack].Connected)
}

func TestAuthorize_ReturnsProviderURLWithState(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/integrations/github/authorize", true)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.AuthorizationURL, "https://github.com/login/oauth/authorize")
	assert.Contains(t, body.AuthorizationURL, "state=")
	assert.Contains(t, body.AuthorizationURL, "client_id=gh-id")
}

func TestAuthorize_UnconfiguredProvider(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/integrations/slack/authorize", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthorize_UnknownProvider(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/integrations/jira/authorize", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_RejectsUnknownState(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/integrations/github/callback?code=c&state=bogus", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_ProviderDeniedConsent(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/integrations/github/callback?error=access_denied", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "access_denied")
}

func TestSyncProvider(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.tokens.Store(context.Background(), "u1", models.ProviderGitHub, &models.TokenSet{AccessToken: "tok"}))

	w := e.request(t, http.MethodPost, "/api/sync/github", true)
	require.Equal(t, http.StatusOK, w.Code)

	var res syncer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ItemsSynced)
}

func TestSyncProvider_NotConnected(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodPost, "/api/sync/github", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSyncStatus(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.tokens.Store(context.Background(), "u1", models.ProviderGitHub, &models.TokenSet{AccessToken: "tok"}))
	e.request(t, http.MethodPost, "/api/sync/github", true)

	w := e.request(t, http.MethodGet, "/api/sync/github/status", true)
	require.Equal(t, http.StatusOK, w.Code)

	var st syncer.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Connected)
	require.NotNil(t, st.LastSync)
	assert.Equal(t, models.SyncStatusSuccess, st.LastSync.Status)
}

func TestDisconnect(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.tokens.Store(context.Background(), "u1", models.ProviderGitHub, &models.TokenSet{AccessToken: "tok"}))

	e.mock.ExpectBegin()
	e.mock.ExpectCommit()

	w := e.request(t, http.MethodPost, "/api/integrations/github/disconnect", true)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, e.mock.ExpectationsWereMet())

	_, ok := e.creds.creds[key("u1", models.ProviderGitHub)]
	assert.False(t, ok)
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.tokens.Store(context.Background(), "u1", models.ProviderGitHub, &models.TokenSet{AccessToken: "tok"}))

	w := e.request(t, http.MethodGet, "/api/health/integrations/github", true)
	require.Equal(t, http.StatusOK, w.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, health.StateHealthy, report.State)
}

func TestNotificationsFlow(t *testing.T) {
	e := newEnv(t)
	notifySvc := notify.New(e.notifs, logging.NewNopLogger())
	require.NoError(t, notifySvc.NotifyReauthRequired(context.Background(), "u1", models.ProviderSlack))

	w := e.request(t, http.MethodGet, "/api/notifications/unread-count", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":1}`, w.Body.String())

	w = e.request(t, http.MethodPost, "/api/notifications/read-all", true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.request(t, http.MethodGet, "/api/notifications/unread-count", true)
	assert.JSONEq(t, `{"unread":0}`, w.Body.String())
}

func TestSummaryEndpoint(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/summary?days=7", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "digest")
}

func TestSummaryEndpoint_BadDays(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, http.MethodGet, "/api/summary?days=banana", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFail_UnexpectedErrorHidesDetail(t *testing.T) {
	e := newEnv(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/summary", nil)

	e.srv.fail(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestRateLimit_SyncClass(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.tokens.Store(context.Background(), "u1", models.ProviderGitHub, &models.TokenSet{AccessToken: "tok"}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = e.request(t, http.MethodPost, "/api/sync/github", true)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}
