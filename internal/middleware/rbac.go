package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rd-studio-media-api/internal/models"
	appErrors "github.com/noah-isme/rd-studio-media-api/pkg/errors"
	"github.com/noah-isme/rd-studio-media-api/pkg/response"
)

// RBAC enforces role-based access control for routes. It must run after JWT.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" cannot perform this action"))
		c.Abort()
	}
}

// RequireMediaWriter allows the roles that manage media collections.
func RequireMediaWriter() gin.HandlerFunc {
	return RBAC(models.MediaWriterRoles...)
}
