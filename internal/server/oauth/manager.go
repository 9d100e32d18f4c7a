package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/config"
	"github.com/devlens/devlens/internal/server/models"
)

type Manager struct {
	configs map[models.Provider]ProviderConfig
	client  *http.Client
	log     logging.Logger
	now     func() time.Time
}

func NewManager(cfg *config.Config, log logging.Logger) *Manager {
	return &Manager{
		configs: buildConfigs(cfg),
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
		now:     time.Now,
	}
}

// Enabled lists the providers with configured credentials.
func (m *Manager) Enabled() []models.Provider {
	var out []models.Provider
	for _, p := range models.AllProviders() {
		if _, ok := m.configs[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manager) config(provider models.Provider) (ProviderConfig, error) {
	pc, ok := m.configs[provider]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %s", common.ErrProviderDisabled, provider)
	}
	return pc, nil
}

// AuthorizationURL builds the provider's authorize URL carrying the CSRF
// state. Calendar requests offline access with forced consent so a refresh
// token is issued even on re-consent.
func (m *Manager) AuthorizationURL(provider models.Provider, state string) (string, error) {
	pc, err := m.config(provider)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("client_id", pc.ClientID)
	q.Set("redirect_uri", pc.RedirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	if len(pc.Scopes) > 0 {
		q.Set("scope", strings.Join(pc.Scopes, " "))
	}
	if provider == models.ProviderCalendar {
		q.Set("access_type", "offline")
		q.Set("prompt", "consent")
	}
	if provider == models.ProviderSlack {
		// Slack puts user-level scopes in user_scope; the scope parameter is
		// for bot scopes.
		q.Del("scope")
		q.Set("user_scope", strings.Join(pc.Scopes, " "))
	}

	return pc.AuthURL + "?" + q.Encode(), nil
}

// tokenResponse is the union of the token-endpoint payloads the four
// providers return.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`

	// Error reporting differs per provider: OAuth error fields, or Slack's
	// ok:false envelope inside a 200 response.
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	OK               *bool  `json:"ok"`

	// Slack nests the user token under authed_user for user-scope flows.
	AuthedUser *struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	} `json:"authed_user"`
}

// ExchangeCode trades an authorization code for tokens. Both non-2xx
// responses and 200-status bodies carrying an error field count as failure —
// several providers report errors inside a 200.
func (m *Manager) ExchangeCode(ctx context.Context, provider models.Provider, code string) (*models.TokenSet, error) {
	pc, err := m.config(provider)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", pc.RedirectURI)

	return m.tokenRequest(ctx, provider, pc, form)
}

// Refresh obtains a fresh access token from a refresh token. Providers
// without a refresh grant fail explicitly with ErrRefreshUnsupported: the
// caller must treat that as "reauthorization required", not "retry later".
func (m *Manager) Refresh(ctx context.Context, provider models.Provider, refreshToken string) (*models.TokenSet, error) {
	pc, err := m.config(provider)
	if err != nil {
		return nil, err
	}

	if !pc.SupportsRefresh {
		return nil, fmt.Errorf("%w: %s", common.ErrRefreshUnsupported, provider)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	return m.tokenRequest(ctx, provider, pc, form)
}

func (m *Manager) tokenRequest(ctx context.Context, provider models.Provider, pc ProviderConfig, form url.Values) (*models.TokenSet, error) {

	var req *http.Request
	var err error

	if provider == models.ProviderNotion {
		// Notion wants a JSON body and basic auth instead of form encoding.
		body := map[string]string{"grant_type": form.Get("grant_type")}
		if v := form.Get("code"); v != "" {
			body["code"] = v
			body["redirect_uri"] = pc.RedirectURI
		}
		if v := form.Get("refresh_token"); v != "" {
			body["refresh_token"] = v
		}
		b, _ := json.Marshal(body)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, pc.TokenURL, strings.NewReader(string(b)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(pc.ClientID, pc.ClientSecret)
	} else {
		form.Set("client_id", pc.ClientID)
		form.Set("client_secret", pc.ClientSecret)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, pc.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("error reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("error decoding token response: %w", err)
	}

	// 200 with an error payload is still an error.
	if tr.Error != "" {
		return nil, fmt.Errorf("token endpoint error: %s (%s)", tr.Error, tr.ErrorDescription)
	}
	if tr.OK != nil && !*tr.OK {
		return nil, fmt.Errorf("token endpoint error: ok=false")
	}

	accessToken := tr.AccessToken
	refreshTokenOut := tr.RefreshToken
	expiresIn := tr.ExpiresIn
	if provider == models.ProviderSlack && tr.AuthedUser != nil && tr.AuthedUser.AccessToken != "" {
		accessToken = tr.AuthedUser.AccessToken
		refreshTokenOut = tr.AuthedUser.RefreshToken
		expiresIn = tr.AuthedUser.ExpiresIn
	}

	if accessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}

	ts := &models.TokenSet{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenOut,
	}
	if expiresIn > 0 {
		ts.ExpiresAt = m.now().Add(time.Duration(expiresIn) * time.Second)
	}

	return ts, nil
}

// Revoke invalidates a token at the provider. It is a side effect of the
// disconnect flow, not a precondition: callers must not fail disconnect on a
// revoke error.
func (m *Manager) Revoke(ctx context.Context, provider models.Provider, token string) error {
	pc, err := m.config(provider)
	if err != nil {
		return err
	}
	if pc.RevokeURL == "" {
		// Notion has no revocation endpoint.
		return nil
	}

	var req *http.Request

	switch provider {
	case models.ProviderGitHub:
		// DELETE the application grant with basic auth.
		body := fmt.Sprintf(`{"access_token":%q}`, token)
		req, err = http.NewRequestWithContext(ctx, http.MethodDelete, pc.RevokeURL, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.SetBasicAuth(pc.ClientID, pc.ClientSecret)

	case models.ProviderSlack:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, pc.RevokeURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

	default:
		form := url.Values{}
		form.Set("token", token)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, pc.RevokeURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoke endpoint returned %d", resp.StatusCode)
	}

	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
