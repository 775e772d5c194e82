package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushub/campushub-api/internal/service"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
	"github.com/campushub/campushub-api/pkg/response"
)

// Context keys set by the auth middleware.
const (
	ContextIdentityKey = "currentIdentity"
	ContextClaimsKey   = "currentClaims"
)

// Auth protects routes by requiring a valid access token. The token is only
// the entry ticket: the user row is re-fetched on every request so
// deactivation and deletion take effect immediately, not at token expiry.
// Each authenticated request also bumps the user's last-login stamp.
func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, appErr := bearerToken(c)
		if appErr != nil {
			response.Error(c, appErr)
			c.Abort()
			return
		}

		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		identity, err := authService.LoadIdentity(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		go authService.TouchLastLogin(identity.ID)

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present but never
// blocks the request.
func OptionalAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, appErr := bearerToken(c)
		if appErr != nil {
			c.Next()
			return
		}

		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			c.Next()
			return
		}

		identity, err := authService.LoadIdentity(c.Request.Context(), claims.UserID)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, *appErrors.Error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", appErrors.ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", appErrors.Clone(appErrors.ErrInvalidToken, "malformed authorization header")
	}
	return parts[1], nil
}
