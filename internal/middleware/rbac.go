package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/campushub/campushub-api/internal/models"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
	"github.com/campushub/campushub-api/pkg/response"
)

// Identity returns the identity placed on the context by Auth, or nil when
// the request is unauthenticated.
func Identity(c *gin.Context) *models.Identity {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return nil
	}
	identity, ok := value.(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireRoles allows the request only when the caller holds one of the
// listed roles. The 403 body carries both the required and actual roles so
// clients can explain the denial.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return requireRoles(roles, "")
}

// RequireRolesOrSelf additionally lets the caller through when the route
// parameter names their own user id, regardless of role.
func RequireRolesOrSelf(param string, roles ...models.UserRole) gin.HandlerFunc {
	return requireRoles(roles, param)
}

func requireRoles(roles []models.UserRole, selfParam string) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		identity := Identity(c)
		if identity == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[identity.Role]; ok {
			c.Next()
			return
		}

		if selfParam != "" {
			if targetID := c.Param(selfParam); targetID != "" && targetID == identity.ID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.WithDetails(appErrors.ErrForbidden, gin.H{
			"required_roles": roles,
			"actual_role":    identity.Role,
		}))
		c.Abort()
	}
}
