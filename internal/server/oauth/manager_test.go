package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, provider models.Provider, pc ProviderConfig) *Manager {
	t.Helper()
	return &Manager{
		configs: map[models.Provider]ProviderConfig{provider: pc},
		client:  &http.Client{Timeout: 5 * time.Second},
		now:     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestAuthorizationURL_CarriesStateAndClientID(t *testing.T) {
	m := newTestManager(t, models.ProviderGitHub, ProviderConfig{
		ClientID:    "cid",
		RedirectURI: "https://app.example.com/api/integrations/github/callback",
		Scopes:      []string{"repo", "read:user"},
		AuthURL:     "https://github.com/login/oauth/authorize",
	})

	u, err := m.AuthorizationURL(models.ProviderGitHub, "state123")
	require.NoError(t, err)

	assert.Contains(t, u, "https://github.com/login/oauth/authorize?")
	assert.Contains(t, u, "client_id=cid")
	assert.Contains(t, u, "state=state123")
	assert.Contains(t, u, "response_type=code")
	assert.Contains(t, u, "scope=repo+read%3Auser")
}

func TestAuthorizationURL_CalendarRequestsOfflineAccess(t *testing.T) {
	m := newTestManager(t, models.ProviderCalendar, ProviderConfig{
		ClientID: "cid",
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	})

	u, err := m.AuthorizationURL(models.ProviderCalendar, "s")
	require.NoError(t, err)

	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
}

func TestAuthorizationURL_DisabledProvider(t *testing.T) {
	m := newTestManager(t, models.ProviderGitHub, ProviderConfig{AuthURL: "x"})

	_, err := m.AuthorizationURL(models.ProviderSlack, "s")
	assert.ErrorIs(t, err, common.ErrProviderDisabled)
}

func TestExchangeCode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	m := newTestManager(t, models.ProviderGitHub, ProviderConfig{
		ClientID: "cid", ClientSecret: "sec", TokenURL: srv.URL,
	})

	ts, err := m.ExchangeCode(context.Background(), models.ProviderGitHub, "the-code")
	require.NoError(t, err)
	assert.Equal(t, "gho_tok", ts.AccessToken)
	assert.Empty(t, ts.RefreshToken)
	assert.True(t, ts.ExpiresAt.IsZero())
}

func TestExchangeCode_200WithErrorBody(t *testing.T) {
	// GitHub reports bad codes inside a 200 response.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code is incorrect"}`))
	}))
	defer srv.Close()

	m := newTestManager(t, models.ProviderGitHub, ProviderConfig{TokenURL: srv.URL})

	_, err := m.ExchangeCode(context.Background(), models.ProviderGitHub, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_verification_code")
}

func TestExchangeCode_SlackOkFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_code"}`))
	}))
	defer srv.Close()

	m := newTestManager(t, models.ProviderSlack, ProviderConfig{TokenURL: srv.URL, SupportsRefresh: true})

	_, err := m.ExchangeCode(context.Background(), models.ProviderSlack, "bad")
	require.Error(t, err)
}

func TestExchangeCode_SlackAuthedUserToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"access_token":"xoxb-bot","authed_user":{"access_token":"xoxp-user","refresh_token":"xoxe-1","expires_in":43200}}`))
	}))
	defer srv.Close()

	m := newTestManager(t, models.ProviderSlack, ProviderConfig{TokenURL: srv.URL, SupportsRefresh: true})

	ts, err := m.ExchangeCode(context.Background(), models.ProviderSlack, "code")
	require.NoError(t, err)
	// the user token wins over the bot token
	assert.Equal(t, "xoxp-user", ts.AccessToken)
	assert.Equal(t, "xoxe-1", ts.RefreshToken)
	assert.False(t, ts.ExpiresAt.IsZero())
}

func TestExchangeCode_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := newTestManager(t, models.ProviderCalendar, ProviderConfig{TokenURL: srv.URL, SupportsRefresh: true})

	_, err := m.ExchangeCode(context.Background(), models.ProviderCalendar, "code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestRefresh_GitHubUnsupported(t *testing.T) {
	m := newTestManager(t, models.ProviderGitHub, ProviderConfig{TokenURL: "http://unused"})

	_, err := m.Refresh(context.Background(), models.ProviderGitHub, "rt")
	assert.ErrorIs(t, err, common.ErrRefreshUnsupported)
}

func TestRefresh_Google_SetsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.new","expires_in":3600}`))
	}))
	defer srv.Close()

	m := newTestManager(t, models.ProviderCalendar, ProviderConfig{TokenURL: srv.URL, SupportsRefresh: true})

	ts, err := m.Refresh(context.Background(), models.ProviderCalendar, "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.new", ts.AccessToken)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), ts.ExpiresAt)
}

func TestRevoke_ErrorDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestManager(t, models.ProviderCalendar, ProviderConfig{RevokeURL: srv.URL, SupportsRefresh: true})

	err := m.Revoke(context.Background(), models.ProviderCalendar, "tok")
	assert.Error(t, err)
}

func TestRevoke_NoEndpointIsNoop(t *testing.T) {
	m := newTestManager(t, models.ProviderNotion, ProviderConfig{})

	assert.NoError(t, m.Revoke(context.Background(), models.ProviderNotion, "tok"))
}
