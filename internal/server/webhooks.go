package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleBillingWebhook ingests provider deliveries. Replays are acknowledged
// with 200 so the provider stops retrying; processing failures return 500 so
// it retries later.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := c.GetRawData()
	if err != nil {
		s.metrics.RecordWebhookEvent(provider, "rejected")
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	signature := c.GetHeader("Stripe-Signature")

	result, err := s.billingSvc.ProcessWebhook(c.Request.Context(), provider, payload, signature)
	if err != nil {
		s.metrics.RecordWebhookEvent(provider, "failed")
		s.log.Warn("webhook processing failed",
			zap.String("provider", provider),
			zap.Error(err))
		AbortWithError(c, err)
		return
	}

	outcome := "processed"
	if result.Duplicate {
		outcome = "duplicate"
	}
	s.metrics.RecordWebhookEvent(provider, outcome)

	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"duplicate": result.Duplicate,
		"kind":      result.Kind,
	})
}
