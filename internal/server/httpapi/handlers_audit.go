package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/offpay/chainsync/internal/server/services"
)

type exportReportRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type exportReportResponse struct {
	Key       string                   `json:"key"`
	UploadURL string                   `json:"upload_url"`
	Report    *services.ConflictReport `json:"report"`
}

// exportReport builds the user's conflict report and returns it together
// with a presigned PUT URL; the audit tooling uploads the serialized report
// itself.
func (s *Server) exportReport(c *gin.Context) {
	var req exportReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.audit.BuildReport(c.Request.Context(), req.UserID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	key, url, err := s.audit.GetPresignedPutUrl(c.Request.Context(), req.UserID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, exportReportResponse{Key: key, UploadURL: url, Report: report})
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

// reportDownloadURL presigns a GET for a previously exported report. The key
// is a path wildcard because storage keys contain slashes.
func (s *Server) reportDownloadURL(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "report key is required"})
		return
	}

	url, err := s.audit.GetPresignedGetUrl(c.Request.Context(), key)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, downloadURLResponse{URL: url})
}
