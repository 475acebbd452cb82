package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"lottery_system/internal/domain" // Identity
	"lottery_system/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys shared with the handlers
const (
	UserIDKey    = "userID"     // Authenticated user id
	IdentityKey  = "identity"   // domain.Identity of the caller
	RequestIDKey = "request_id" // Correlation id of the request
)

// JWTAuthMiddleware validates JWT tokens and extracts user information
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string and parse it
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Invalid or expired token"})
			return
		}
		c.Set(UserIDKey, claims.UserID)                            // Store userID in context
		c.Set(IdentityKey, domain.Identity{UserID: claims.UserID}) // Admin rights are granted by AdminOnlyMiddleware
		c.Next()                                                   // Proceed to the next handler
	}
}
