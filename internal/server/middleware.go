package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncTokenRequired guards the status-sync fallback. The endpoint rewrites
// payment state without a gateway signature, so it stays closed unless a
// token is configured and presented.
func (s *Server) SyncTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := strings.TrimSpace(s.cfg.SyncToken)
		if configured == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Sync-Token"))
		want := sha256.Sum256([]byte(configured))
		got := sha256.Sum256([]byte(provided))
		if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
			AbortWithError(c, ErrForbidden)
			return
		}

		c.Next()
	}
}

// WebhookRateLimit throttles notification delivery per source address.
// Denied requests get 429 so the gateway backs off and retries.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		key := "webhook:" + c.ClientIP()
		allowed, err := s.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// A broken limiter must not drop payment notifications.
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "webhook")
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error: errorPayload{Type: "rate_limited", Message: "too many requests"},
			})
			return
		}

		c.Next()
	}
}
