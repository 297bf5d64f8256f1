package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	decomposedomain "github.com/smallbiznis/taskforge/internal/decompose/domain"
)

func (s *Server) DecomposeTask(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Body is optional: an empty request decomposes the task as stored.
	var req decomposedomain.Request
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
			return
		}
	}

	node, err := s.decomposesvc.Decompose(c.Request.Context(), ownerID(c), id, req, planHint(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, node)
}

func (s *Server) GetQuota(c *gin.Context) {
	snapshot, err := s.quotasvc.Snapshot(c.Request.Context(), ownerID(c), planHint(c), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
