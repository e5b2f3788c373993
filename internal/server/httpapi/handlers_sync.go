package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offpay/chainsync/internal/server/models"
)

type syncRequest struct {
	Records []*models.OfflineTransactionRecord `json:"records" binding:"required"`
}

// syncBatch submits one device batch and returns the full sync report.
func (s *Server) syncBatch(c *gin.Context) {
	userID := c.Param("userID")

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.sync.SyncBatch(c.Request.Context(), userID, req.Records)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// validateChain runs the read-only chain diagnostic over pending records.
func (s *Server) validateChain(c *gin.Context) {
	result, err := s.sync.ValidateChainOnly(c.Request.Context(), c.Param("userID"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// chainStatus returns the user's chain metadata.
func (s *Server) chainStatus(c *gin.Context) {
	meta, err := s.sync.ChainStatus(c.Request.Context(), c.Param("userID"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

type repairRequest struct {
	AnchorHash string `json:"anchor_hash" binding:"required"`
}

// repairChain re-anchors an invalidated chain. Operator only.
func (s *Server) repairChain(c *gin.Context) {
	userID := c.Param("userID")

	var req repairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.sync.RepairChain(c.Request.Context(), userID, req.AnchorHash); err != nil {
		s.abortWithError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "chain repaired via api",
		"user_id", userID, "operator_id", operatorID(c))
	c.Status(http.StatusNoContent)
}
