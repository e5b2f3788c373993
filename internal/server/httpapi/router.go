package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offpay/chainsync/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Router assembles the gin engine. Device-facing endpoints are open (record
// signatures authenticate the content); everything that mutates other users'
// state requires an operator token.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.POST("/devices", s.registerDevice)
	api.POST("/operators/register", s.registerOperator)
	api.POST("/operators/login", s.loginOperator)

	api.POST("/users/:userID/sync", s.syncBatch)
	api.GET("/users/:userID/chain/validate", s.validateChain)
	api.GET("/users/:userID/chain/status", s.chainStatus)

	op := api.Group("", s.requireOperator())
	op.POST("/users/:userID/chain/repair", s.repairChain)
	op.DELETE("/devices/:userID", s.revokeDevice)
	op.GET("/conflicts", s.listConflicts)
	op.GET("/conflicts/:id", s.getConflict)
	op.POST("/conflicts/:id/resolve", s.resolveConflict)
	op.POST("/audit/reports", s.exportReport)
	op.GET("/audit/reports/*key", s.reportDownloadURL)

	return r
}

// abortWithError maps sentinel errors onto HTTP status codes and writes the
// JSON error body.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrorNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrorAlreadyExists),
		errors.Is(err, common.ErrSyncInProgress),
		errors.Is(err, common.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, common.ErrChainInvalidated):
		status = http.StatusLocked
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed",
			"path", c.FullPath(), "error", err.Error())
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}
