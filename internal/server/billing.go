package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type billingCheckoutRequest struct {
	Email string `json:"email"`
}

func (s *Server) CreateBillingCheckout(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req billingCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session, err := s.billingSvc.CreateCheckoutSession(c.Request.Context(), userID, req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": session})
}

func (s *Server) BillingStatus(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	provider := c.DefaultQuery("provider", "stripe")
	sub, err := s.billingSvc.SubscriptionStatus(c.Request.Context(), userID, provider)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "inactive"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

type paypalConfirmRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

func (s *Server) ConfirmPayPalBilling(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req paypalConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sub, err := s.billingSvc.ConfirmPayPalSubscription(c.Request.Context(), userID, req.SubscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) BillingManageURL(c *gin.Context) {
	if _, ok := mustUserID(c); !ok {
		return
	}

	url, err := s.billingSvc.ManageURL()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
}
