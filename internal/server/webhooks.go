package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	webhookdomain "github.com/tipdrop/tipdrop/internal/webhook/domain"
)

// HandlePaymentWebhook ingests a Midtrans notification. Anything other
// than 200 makes the gateway redeliver, so the handler answers 200 for
// every outcome that must not be retried, including unknown orders.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhookSvc.ProcessNotification(c.Request.Context(), payload); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SyncTipStatus is the operator fallback for lost notifications. Same
// settlement semantics as the webhook, authenticated by sync token
// instead of the gateway signature.
func (s *Server) SyncTipStatus(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req webhookdomain.SyncStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhookSvc.SyncStatus(c.Request.Context(), orderID, req); err != nil {
		AbortWithError(c, err)
		return
	}

	tip, err := s.tipSvc.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tip})
}
