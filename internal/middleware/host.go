package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDKey holds the authenticated host's profile id in the gin context.
const UserIDKey = "user_id"

// HostIdentity reads the host profile id from X-User-ID, which the upstream
// auth proxy sets after verifying the host's session.
func HostIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the host id set by HostIdentity.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
