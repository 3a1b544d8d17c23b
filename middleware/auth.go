package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"aaisaheb/utils"

	"github.com/gin-gonic/gin"
)

// LocalTokenAuth guards the control API with a shared bearer token.
// An empty token disables the check.
func LocalTokenAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		provided := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or missing token", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
