package middleware

import (
	"net/http" // HTTP status codes

	"lottery_system/internal/config" // Admin id list
	"lottery_system/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// AdminOnlyMiddleware checks the user's role from the database on each request.
// Users listed in ADMIN_IDS are admins whatever their role.
func AdminOnlyMiddleware(db *gorm.DB, rules config.Lottery) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(UserIDKey) // Get userID from context
		// Check if userID exists in context
		if userID == 0 {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "code": "UNAUTHORIZED", "error": "Unauthorized"})
			return
		}
		if !rules.IsAdminID(userID) {
			var user domain.User // Fetch user from database
			if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil || user.Role != domain.RoleAdmin {
				// If user not found or not an admin, abort with forbidden status
				logrus.WithField("user_id", userID).Warn("Admin access denied")
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "code": "FORBIDDEN", "error": "Admin access required"})
				return
			}
		}
		c.Set(IdentityKey, domain.Identity{UserID: userID, IsAdmin: true}) // Verified admin
		c.Next()                                                           // If admin, proceed to the next handler
	}
}
