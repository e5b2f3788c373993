package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listConflicts returns a user's conflicts, open ones unless status=all.
func (s *Server) listConflicts(c *gin.Context) {
	userID := c.Query("user")
	if userID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "user query parameter is required"})
		return
	}
	includeResolved := c.DefaultQuery("status", "open") == "all"

	found, err := s.conflicts.ListUserConflicts(c.Request.Context(), userID, includeResolved)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) getConflict(c *gin.Context) {
	conflict, err := s.conflicts.GetConflict(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conflict)
}

type resolveRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// resolveConflict applies an operator decision to an escalated conflict.
func (s *Server) resolveConflict(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	resolved, err := s.conflicts.ResolveManually(c.Request.Context(), c.Param("id"), *req.Accept, operatorID(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}
