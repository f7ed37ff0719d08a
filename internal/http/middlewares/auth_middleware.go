package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/domain/account"
	"github.com/geocoder89/taskhub/internal/policy"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth resolves the caller identity from the bearer token. Every
// failure mode here (missing, malformed, expired, bad signature) is a 401,
// never conflated with an authorization denial.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Missing or invalid Authorization header",
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Missing or invalid access token",
			})
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired access token",
			})
			return
		}

		// Stash useful bits of identity on the context
		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxUsernameKey, claims.Username)
		c.Set(ctxRoleKey, claims.Role)

		c.Next()
	}
}

// CallerFromContext recovers the identity RequireAuth stashed, so handlers
// don't need to know the magic keys.
func CallerFromContext(c *gin.Context) (policy.Caller, bool) {
	idVal, ok := c.Get(ctxUserIDKey)
	if !ok {
		return policy.Caller{}, false
	}

	id, ok := idVal.(int64)
	if !ok {
		return policy.Caller{}, false
	}

	roleVal, ok := c.Get(ctxRoleKey)
	if !ok {
		return policy.Caller{}, false
	}

	role, ok := roleVal.(string)
	if !ok {
		return policy.Caller{}, false
	}

	return policy.Caller{ID: id, Role: account.Role(role)}, true
}
