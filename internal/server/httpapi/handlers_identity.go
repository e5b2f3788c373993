package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerDeviceRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	PublicKey  []byte `json:"public_key" binding:"required"`
	PayloadKey []byte `json:"payload_key"`
}

// registerDevice stores a wallet device's key material.
func (s *Server) registerDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	d, err := s.devices.Register(c.Request.Context(), req.UserID, req.PublicKey, req.PayloadKey)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "device registered", "user_id", req.UserID)
	c.JSON(http.StatusCreated, d)
}

// revokeDevice invalidates a user's device key. Operator only.
func (s *Server) revokeDevice(c *gin.Context) {
	userID := c.Param("userID")

	if err := s.devices.Revoke(c.Request.Context(), userID); err != nil {
		s.abortWithError(c, err)
		return
	}

	s.logger.Warn(c.Request.Context(), "device revoked",
		"user_id", userID, "operator_id", operatorID(c))
	c.Status(http.StatusNoContent)
}

type credentialsRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerOperatorResponse struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

func (s *Server) registerOperator(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	op, err := s.operators.Register(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerOperatorResponse{ID: op.ID, Login: op.Login})
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) loginOperator(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	token, err := s.operators.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token})
}
