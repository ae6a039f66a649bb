package server

import (
	"net/http"

	followupdomain "github.com/devmarvs/backoffice/internal/followup/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListFollowUps(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var status *followupdomain.Status
	if raw := c.Query("status"); raw != "" {
		parsed := followupdomain.Status(raw)
		if !parsed.Valid() {
			AbortWithError(c, followupdomain.ErrInvalidStatus)
			return
		}
		status = &parsed
	}

	followUps, err := s.followUpSvc.List(c.Request.Context(), userID, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": followUps})
}

type transitionFollowUpRequest struct {
	To string `json:"to"`
}

func (s *Server) TransitionFollowUp(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	followUpID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req transitionFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	followUp, err := s.followUpSvc.Transition(c.Request.Context(), userID, followUpID, followupdomain.Status(req.To))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": followUp})
}
