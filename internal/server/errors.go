package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	payoutdomain "github.com/tipdrop/tipdrop/internal/payout/domain"
	qrdomain "github.com/tipdrop/tipdrop/internal/qrcode/domain"
	staffdomain "github.com/tipdrop/tipdrop/internal/staff/domain"
	tipdomain "github.com/tipdrop/tipdrop/internal/tip/domain"
	venuedomain "github.com/tipdrop/tipdrop/internal/venue/domain"
	webhookdomain "github.com/tipdrop/tipdrop/internal/webhook/domain"
	"github.com/tipdrop/tipdrop/pkg/db"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrForbidden      = errors.New("forbidden")
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, webhookdomain.ErrInvalidPayload),
		errors.Is(err, tipdomain.ErrInvalidAmount),
		errors.Is(err, tipdomain.ErrInvalidRecipient),
		errors.Is(err, qrdomain.ErrUnknownType),
		errors.Is(err, qrdomain.ErrRecipientNotAllowed):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return http.StatusForbidden, errorPayload{
			Type:    "invalid_signature",
			Message: "signature verification failed",
		}
	case errors.Is(err, venuedomain.ErrPaymentConfig):
		// Credential trouble on a webhook must not look retryable to the
		// gateway, so it maps below the 5xx range.
		return http.StatusForbidden, errorPayload{
			Type:    "payment_config_error",
			Message: "payment configuration error",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, payoutdomain.ErrNothingToPay):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "resource already exists",
		}
	case errors.Is(err, venuedomain.ErrBlocked):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "venue_blocked",
			Message: err.Error(),
		}
	case errors.Is(err, tipdomain.ErrChargeFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "charge_failed",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, tipdomain.ErrNotFound),
		errors.Is(err, venuedomain.ErrNotFound),
		errors.Is(err, staffdomain.ErrNotFound),
		errors.Is(err, qrdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog labels handler errors for the request log without
// leaking internals into the access log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "internal", payload.Type
	case status == http.StatusForbidden:
		return "forbidden", payload.Type
	case status == http.StatusNotFound:
		return "not_found", payload.Type
	default:
		return "client", payload.Type
	}
}
