package access

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireCapability rejects requests whose token role lacks op. It runs
// after auth.AuthMiddleware, which stores the role under "user_role".
func RequireCapability(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found"})
			c.Abort()
			return
		}

		roleStr, ok := raw.(string)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid role type"})
			c.Abort()
			return
		}

		role, ok := ParseRole(roleStr)
		if !ok || !Allows(role, op) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions", "kind": "Unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
