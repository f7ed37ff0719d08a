package middlewares

import (
	"net/http"

	"github.com/geocoder89/taskhub/internal/policy"
	"github.com/gin-gonic/gin"
)

// RequireAdmin gates the user-management routes. The role check runs before
// any target lookup, so a non-admin probing /users/:id learns nothing about
// which ids exist.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFromContext(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Missing identity context",
			})
			return
		}

		if err := policy.CanManageAccounts(caller); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Admin role required",
			})
			return
		}
		c.Next()
	}
}
