package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) RunReminderSweep(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	result, err := s.reminderSvc.RunForUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordRemindersCreated(result.Created)
	c.JSON(http.StatusOK, gin.H{"data": result})
}
