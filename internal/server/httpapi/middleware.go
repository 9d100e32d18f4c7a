package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/server/auth"
	"github.com/devlens/devlens/internal/server/ratelimit"
)

const userIDKey = "user_id"

// authMiddleware verifies the Bearer JWT and stores the user id in the
// request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.sessionSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// rateLimit enforces the per-user fixed-window budget for the action class.
func (s *Server) rateLimit(class ratelimit.Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		retryAfter, err := s.limiter.Allow(c.Request.Context(), userID(c), class)
		if err != nil {
			if errors.Is(err, common.ErrRateLimited) {
				secs := int(retryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				c.Header("Retry-After", strconv.Itoa(secs))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
				return
			}
			s.log.Error(c.Request.Context(), "rate limiter failure", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Next()
	}
}
