package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	workeventdomain "github.com/devmarvs/backoffice/internal/workevent/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) LogWorkEvent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req workeventdomain.LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.workEventSvc.Log(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordWorkEvent(string(result.WorkEvent.Type))
	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListWorkEvents(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req workeventdomain.ListRequest
	if from, ok := parseTimeQuery(c, "from"); ok {
		req.From = from
	} else {
		return
	}
	if to, ok := parseTimeQuery(c, "to"); ok {
		req.To = to
	} else {
		return
	}
	if clientID, ok := parseIDQuery(c, "client_id"); ok {
		req.ClientID = clientID
	} else {
		return
	}

	events, err := s.workEventSvc.List(c.Request.Context(), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

// parseTimeQuery reads an optional RFC 3339 query parameter. The second
// return is false only when the value is present but malformed, in which case
// the request has already been aborted.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return nil, false
	}
	return &parsed, true
}

func parseIDQuery(c *gin.Context, name string) (*snowflake.ID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return nil, false
	}
	return &id, true
}

func parseIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return id, true
}
