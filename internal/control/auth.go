package control

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lavahost/soundnode/internal/apierror"
)

// authMiddleware rejects requests whose Authorization header does not
// match the configured shared secret, comparing in constant time. An
// empty configured password disables authentication entirely.
func authMiddleware(password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if password == "" {
			c.Next()
			return
		}

		got := c.GetHeader("Authorization")
		if got == "" {
			writeError(c, http.StatusUnauthorized, "missing Authorization header")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(password)) != 1 {
			writeError(c, http.StatusForbidden, "invalid credentials")
			c.Abort()
			return
		}
		c.Next()
	}
}

// writeError renders the node's standard error envelope.
func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, apierror.New(status, message, c.Request.URL.Path))
}

// abortWithError renders err's status (or 500 if err does not carry one)
// through the standard error envelope and stops the handler chain.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if apiErr, ok := err.(*apierror.APIError); ok {
		status = apiErr.Status
	}
	writeError(c, status, err.Error())
	c.Abort()
}
