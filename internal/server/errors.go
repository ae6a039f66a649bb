package server

import (
	"errors"
	"net/http"

	billingdomain "github.com/devmarvs/backoffice/internal/billing/domain"
	clientdomain "github.com/devmarvs/backoffice/internal/client/domain"
	followupdomain "github.com/devmarvs/backoffice/internal/followup/domain"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	packdomain "github.com/devmarvs/backoffice/internal/pack/domain"
	reminderdomain "github.com/devmarvs/backoffice/internal/reminder/domain"
	templatedomain "github.com/devmarvs/backoffice/internal/template/domain"
	workeventdomain "github.com/devmarvs/backoffice/internal/workevent/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
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

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}

	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}

	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}

	case isConflictError(err):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}

	case errors.Is(err, billingdomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: err.Error()}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, workeventdomain.ErrInvalidType),
		errors.Is(err, workeventdomain.ErrInvalidStartAt),
		errors.Is(err, workeventdomain.ErrInvalidDuration),
		errors.Is(err, workeventdomain.ErrInvalidRate),
		errors.Is(err, workeventdomain.ErrInvalidCurrency),
		errors.Is(err, clientdomain.ErrInvalidName),
		errors.Is(err, packdomain.ErrInvalidTitle),
		errors.Is(err, packdomain.ErrInvalidTotal),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidLine),
		errors.Is(err, invoicedomain.ErrNoRecipient),
		errors.Is(err, followupdomain.ErrInvalidStatus),
		errors.Is(err, templatedomain.ErrInvalidType),
		errors.Is(err, templatedomain.ErrInvalidBody),
		errors.Is(err, billingdomain.ErrInvalidProvider),
		errors.Is(err, billingdomain.ErrInvalidSignature),
		errors.Is(err, billingdomain.ErrInvalidPayload),
		errors.Is(err, billingdomain.ErrInvalidSub):
		return true
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, packdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, followupdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, followupdomain.ErrInvalidTransition),
		errors.Is(err, packdomain.ErrTotalBelowUsed),
		errors.Is(err, billingdomain.ErrNotPayable),
		errors.Is(err, reminderdomain.ErrSweepRunning):
		return true
	}
	return false
}
