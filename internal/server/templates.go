package server

import (
	"net/http"

	templatedomain "github.com/devmarvs/backoffice/internal/template/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListTemplates(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	templates, err := s.templateSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": templates})
}

type upsertTemplateRequest struct {
	Subject *string `json:"subject"`
	Body    string  `json:"body"`
}

func (s *Server) UpsertTemplate(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req upsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	tmpl, err := s.templateSvc.Upsert(c.Request.Context(), userID,
		templatedomain.TemplateType(c.Param("type")), req.Subject, req.Body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}
