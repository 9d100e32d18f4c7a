package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devlens/devlens/internal/dbx"
	"github.com/devlens/devlens/internal/server/models"
)

type integrationView struct {
	Provider  models.Provider `json:"provider"`
	Enabled   bool            `json:"enabled"`
	Connected bool            `json:"connected"`
}

// handleListIntegrations reports, for every known provider, whether it is
// configured on this deployment and whether the user has connected it.
func (s *Server) handleListIntegrations(c *gin.Context) {
	ctx := c.Request.Context()

	connected, err := s.tokens.ConnectedProviders(ctx, userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	connectedSet := make(map[models.Provider]bool, len(connected))
	for _, p := range connected {
		connectedSet[p] = true
	}

	enabledSet := make(map[models.Provider]bool)
	for _, p := range s.oauth.Enabled() {
		enabledSet[p] = true
	}

	out := make([]integrationView, 0, len(models.AllProviders()))
	for _, p := range models.AllProviders() {
		out = append(out, integrationView{
			Provider:  p,
			Enabled:   enabledSet[p],
			Connected: connectedSet[p],
		})
	}

	c.JSON(http.StatusOK, gin.H{"integrations": out})
}

// handleAuthorize starts the OAuth flow: it mints a state token and returns
// the provider's authorization URL for the frontend to redirect to.
func (s *Server) handleAuthorize(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	state, err := s.state.Generate(ctx, userID(c), provider)
	if err != nil {
		s.fail(c, err)
		return
	}

	authURL, err := s.oauth.AuthorizationURL(provider, state)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorization_url": authURL})
}

// handleCallback finishes the OAuth flow. The provider redirects the
// browser here with a code and our state token; the state identifies the
// user who started the flow.
func (s *Server) handleCallback(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if errCode := c.Query("error"); errCode != "" {
		// user denied the consent screen, or the provider refused
		c.JSON(http.StatusBadRequest, gin.H{"error": errCode})
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code or state"})
		return
	}

	owner, stateProvider, err := s.state.Consume(ctx, state)
	if err != nil || stateProvider != provider {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}

	tokens, err := s.oauth.ExchangeCode(ctx, provider, code)
	if err != nil {
		s.log.Warn(ctx, "code exchange failed", "provider", provider, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	if err := s.tokens.Store(ctx, owner, provider, tokens); err != nil {
		s.fail(c, err)
		return
	}

	// a fresh connection resolves any standing alerts for this provider
	if err := s.notify.ClearProvider(ctx, owner, provider); err != nil {
		s.log.Warn(ctx, "error clearing notifications on reconnect", "provider", provider, "error", err)
	}

	s.log.Info(ctx, "integration connected", "user_id", owner, "provider", provider)
	c.JSON(http.StatusOK, gin.H{"provider": provider, "connected": true})
}

// handleDisconnect revokes the provider grant (best effort) and removes the
// credential together with everything the provider contributed, atomically.
func (s *Server) handleDisconnect(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	if ts, err := s.tokens.Get(ctx, uid, provider); err == nil && ts != nil {
		if err := s.oauth.Revoke(ctx, provider, ts.AccessToken); err != nil {
			s.log.Warn(ctx, "token revocation failed", "provider", provider, "error", err)
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(txCtx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Credentials(tx).Clear(txCtx, uid, provider); err != nil {
			return err
		}
		if err := s.repos.Activities(tx).DeleteByProvider(txCtx, uid, provider); err != nil {
			return err
		}
		if err := s.repos.SyncLogs(tx).DeleteByProvider(txCtx, uid, provider); err != nil {
			return err
		}
		return s.repos.Notifications(tx).DeleteByProvider(txCtx, uid, provider)
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.log.Info(ctx, "integration disconnected", "user_id", uid, "provider", provider)
	c.JSON(http.StatusOK, gin.H{"provider": provider, "connected": false})
}
