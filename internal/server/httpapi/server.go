// Package httpapi exposes the integration service over HTTP: OAuth connect
// and callback flows, sync triggers, health, notifications, and the
// productivity summary.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/health"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/notify"
	"github.com/devlens/devlens/internal/server/oauth"
	"github.com/devlens/devlens/internal/server/ratelimit"
	"github.com/devlens/devlens/internal/server/repositories/repomanager"
	"github.com/devlens/devlens/internal/server/summary"
	"github.com/devlens/devlens/internal/server/syncer"
	"github.com/devlens/devlens/internal/server/tokenstore"
)

type Server struct {
	addr          string
	sessionSecret []byte

	db      *sql.DB
	repos   repomanager.RepositoryManager
	tokens  *tokenstore.Store
	oauth   *oauth.Manager
	state   *oauth.StateManager
	syncer  *syncer.Orchestrator
	health  *health.Monitor
	notify  *notify.Service
	summary *summary.Service
	limiter *ratelimit.Limiter
	log     logging.Logger
}

type Deps struct {
	Addr          string
	SessionSecret []byte
	DB            *sql.DB
	Repos         repomanager.RepositoryManager
	Tokens        *tokenstore.Store
	OAuth         *oauth.Manager
	State         *oauth.StateManager
	Syncer        *syncer.Orchestrator
	Health        *health.Monitor
	Notify        *notify.Service
	Summary       *summary.Service
	Limiter       *ratelimit.Limiter
	Log           logging.Logger
}

func NewServer(d Deps) *Server {
	return &Server{
		addr:          d.Addr,
		sessionSecret: d.SessionSecret,
		db:            d.DB,
		repos:         d.Repos,
		tokens:        d.Tokens,
		oauth:         d.OAuth,
		state:         d.State,
		syncer:        d.Syncer,
		health:        d.Health,
		notify:        d.Notify,
		summary:       d.Summary,
		limiter:       d.Limiter,
		log:           d.Log,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// the callback is hit by a provider redirect, so it cannot carry a
	// bearer token; the state token identifies the user instead
	r.GET("/api/integrations/:provider/callback", s.handleCallback)

	api := r.Group("/api", s.authMiddleware())
	{
		api.GET("/integrations", s.rateLimit(ratelimit.ClassDefault), s.handleListIntegrations)
		api.GET("/integrations/:provider/authorize", s.rateLimit(ratelimit.ClassDefault), s.handleAuthorize)
		api.POST("/integrations/:provider/disconnect", s.rateLimit(ratelimit.ClassDefault), s.handleDisconnect)

		api.POST("/sync", s.rateLimit(ratelimit.ClassSync), s.handleSyncAll)
		api.POST("/sync/:provider", s.rateLimit(ratelimit.ClassSync), s.handleSyncProvider)
		api.GET("/sync/:provider/status", s.rateLimit(ratelimit.ClassDefault), s.handleSyncStatus)

		api.GET("/health/integrations", s.rateLimit(ratelimit.ClassDefault), s.handleHealthAll)
		api.GET("/health/integrations/:provider", s.rateLimit(ratelimit.ClassDefault), s.handleHealthProvider)

		api.GET("/notifications", s.rateLimit(ratelimit.ClassDefault), s.handleListNotifications)
		api.GET("/notifications/unread-count", s.rateLimit(ratelimit.ClassDefault), s.handleUnreadCount)
		api.POST("/notifications/:id/read", s.rateLimit(ratelimit.ClassDefault), s.handleMarkRead)
		api.POST("/notifications/read-all", s.rateLimit(ratelimit.ClassDefault), s.handleMarkAllRead)

		api.GET("/summary", s.rateLimit(ratelimit.ClassSummary), s.handleSummary)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// providerParam parses and validates the :provider path parameter. On
// failure it writes the 400 response and returns false.
func providerParam(c *gin.Context) (models.Provider, bool) {
	p := models.Provider(c.Param("provider"))
	if !p.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return "", false
	}
	return p, true
}
