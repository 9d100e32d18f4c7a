package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devlens/devlens/internal/common"
)

// parseWindow converts the optional ?days= query into a duration; empty
// means the service default.
func parseWindow(days string) (time.Duration, error) {
	if days == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(days)
	if err != nil || n < 1 || n > 90 {
		return 0, errors.New("days out of range")
	}
	return time.Duration(n) * 24 * time.Hour, nil
}

// fail maps a service error onto an HTTP response without leaking internals.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, common.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "provider not connected"})
	case errors.Is(err, common.ErrReauthRequired):
		c.JSON(http.StatusConflict, gin.H{"error": "reauthorization required"})
	case errors.Is(err, common.ErrProviderDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not configured"})
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		// unexpected errors collapse to ErrInternal so no internals leak
		s.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrInternal.Error()})
	}
}

// handleSyncAll triggers a sync of every connected provider and waits for
// the results.
func (s *Server) handleSyncAll(c *gin.Context) {
	results, err := s.syncer.SyncAll(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleSyncProvider(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	res := s.syncer.SyncProvider(c.Request.Context(), userID(c), provider)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

func (s *Server) handleSyncStatus(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	st, err := s.syncer.Status(c.Request.Context(), userID(c), provider)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleHealthAll(c *gin.Context) {
	reports, err := s.health.CheckAll(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": reports})
}

func (s *Server) handleHealthProvider(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}

	report, err := s.health.Check(c.Request.Context(), userID(c), provider)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := s.notify.List(c.Request.Context(), userID(c), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	count, err := s.notify.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	if err := s.notify.MarkRead(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	if err := s.notify.MarkAllRead(c.Request.Context(), userID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSummary(c *gin.Context) {
	window, err := parseWindow(c.Query("days"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
		return
	}

	out, err := s.summary.Build(c.Request.Context(), userID(c), window)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
