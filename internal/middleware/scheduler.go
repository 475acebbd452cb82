package middleware

import (
	"crypto/subtle" // Constant time comparison
	"net/http"      // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// SchedulerHeader carries the shared secret of the external tick trigger
const SchedulerHeader = "X-Scheduler-Secret"

// SchedulerSecretMiddleware admits requests carrying the scheduler secret.
// An empty secret disables the route.
func SchedulerSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(SchedulerHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Invalid scheduler secret"})
			return
		}
		c.Next()
	}
}
