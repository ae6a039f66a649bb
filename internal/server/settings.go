package server

import (
	"net/http"

	settingsdomain "github.com/devmarvs/backoffice/internal/settings/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetSettings(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	current, err := s.settingsSvc.Get(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": current})
}

func (s *Server) UpdateSettings(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req settingsdomain.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	updated, err := s.settingsSvc.Update(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}
