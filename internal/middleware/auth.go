package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adventuretrack/atsite/internal/auth"
)

// Context keys for the validated claims.
const (
	ContextKeyService  = "service"
	ContextKeyInternal = "internal"
)

// AuthMiddleware validates the Bearer service token on every request
// in the group and stores its claims in the request context. Requests
// without a valid token never reach a handler.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyService, claims.Service)
		c.Set(ContextKeyInternal, claims.Internal)
		c.Next()
	}
}

// GetService returns the calling service's name, or "" if unset.
func GetService(c *gin.Context) string {
	val, exists := c.Get(ContextKeyService)
	if !exists {
		return ""
	}
	service, ok := val.(string)
	if !ok {
		return ""
	}
	return service
}

// IsInternal reports whether the caller holds the internal claim that
// permits unredacted reads.
func IsInternal(c *gin.Context) bool {
	val, exists := c.Get(ContextKeyInternal)
	if !exists {
		return false
	}
	internal, ok := val.(bool)
	return ok && internal
}
