package middleware

import (
	"log/slog"
	"net/http"

	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/rbac"
	"github.com/gin-gonic/gin"
)

// Authorize is the second-stage check behind the authentication middleware:
// it compares the authenticated role against the rbac policy table for the
// given resource family and action. 401 (no identity) and 403 (insufficient
// role) stay distinct so clients can tell re-login from access-denied.
func Authorize(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.ClaimsFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		allowed, err := rbac.Can(claims.Role, resource, action)
		if err != nil {
			slog.Error("RBAC check failed", "error", err, "resource", resource, "action", action)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}
