package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Sirojiddin1dev/carinfopro/pkg/response"
)

const (
	UserIDKey     = "user_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// IdentityResolver resolves a bearer token to an account id.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// AuthMiddleware authenticates requests against an IdentityResolver.
type AuthMiddleware struct {
	resolver IdentityResolver
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(resolver IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		userID, err := m.resolver.Resolve(c.Request.Context(), token)
		if err != nil || userID == "" {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth sets the user id when a valid bearer token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := BearerToken(c); ok {
			if userID, err := m.resolver.Resolve(c.Request.Context(), token); err == nil && userID != "" {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
