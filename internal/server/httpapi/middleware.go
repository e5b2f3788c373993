package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/offpay/chainsync/internal/common"
	"github.com/offpay/chainsync/internal/server/auth"
)

const operatorIDKey = "operator_id"

// requireOperator validates the bearer token and stores the operator ID in
// the request context for handlers that record who decided what.
func (s *Server) requireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader(common.AccessTokenHeaderName), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing access token"})
			return
		}

		operatorID, err := auth.GetOperatorIDFromToken(token, []byte(s.config.SecretKey))
		if err != nil {
			s.abortWithError(c, err)
			return
		}

		c.Set(operatorIDKey, operatorID)
		c.Next()
	}
}

func operatorID(c *gin.Context) string {
	return c.GetString(operatorIDKey)
}
