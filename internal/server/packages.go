package server

import (
	"net/http"

	packdomain "github.com/devmarvs/backoffice/internal/pack/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreatePackage(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req packdomain.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	pkg, err := s.packSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": pkg})
}

func (s *Server) ListPackages(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := parseIDQuery(c, "client_id")
	if !ok {
		return
	}

	pkgs, err := s.packSvc.List(c.Request.Context(), userID, clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pkgs})
}

func (s *Server) GetPackageByID(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	packageID, ok := parseIDParam(c)
	if !ok {
		return
	}

	pkg, err := s.packSvc.GetByID(c.Request.Context(), userID, packageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pkg})
}

func (s *Server) UpdatePackage(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	packageID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req packdomain.UpdatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	pkg, err := s.packSvc.Update(c.Request.Context(), userID, packageID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pkg})
}
