package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/response"
)

// Role groups accepted by RBAC in addition to concrete role names.
const (
	GroupCVO = "@cvo"
	GroupCMD = "@cmd"
)

// RBAC enforces role-based access control for routes. super_admin always passes.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{})
	allowCVO, allowCMD := false, false
	for _, a := range allowed {
		switch a {
		case GroupCVO:
			allowCVO = true
		case GroupCMD:
			allowCMD = true
		default:
			allowedRoles[models.UserRole(a)] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		_, listed := allowedRoles[claims.Role]
		switch {
		case claims.Role == models.RoleSuperAdmin, listed,
			allowCVO && claims.Role.IsCVO(),
			allowCMD && claims.Role.IsCMD():
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
