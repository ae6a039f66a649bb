package server

import (
	"net/http"

	clientdomain "github.com/devmarvs/backoffice/internal/client/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateClient(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req clientdomain.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	created, err := s.clientSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (s *Server) ListClients(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	clients, err := s.clientSvc.List(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": clients})
}

func (s *Server) GetClientByID(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := parseIDParam(c)
	if !ok {
		return
	}

	found, err := s.clientSvc.GetByID(c.Request.Context(), userID, clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": found})
}
