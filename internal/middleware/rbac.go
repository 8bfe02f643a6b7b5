package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-workorder-api/internal/service"
	appErrors "github.com/noah-isme/facility-workorder-api/pkg/errors"
	"github.com/noah-isme/facility-workorder-api/pkg/response"
)

// ContextPermissionsKey is the gin context key storing the resolved set.
const ContextPermissionsKey = "permissions"

// PermissionResolver loads effective permissions for a caller.
type PermissionResolver interface {
	Resolve(ctx context.Context, userID, hospitalID string) *service.PermissionSet
}

// RequirePermission allows the request when the caller holds every key in
// the active hospital. It must run after HospitalScope.
func RequirePermission(resolver PermissionResolver, keys ...string) gin.HandlerFunc {
	return permissionGuard(resolver, func(set *service.PermissionSet) bool {
		return set.HasAllPermissions(keys...)
	})
}

// RequireAnyPermission allows the request when the caller holds at least one key.
func RequireAnyPermission(resolver PermissionResolver, keys ...string) gin.HandlerFunc {
	return permissionGuard(resolver, func(set *service.PermissionSet) bool {
		return set.HasAnyPermission(keys...)
	})
}

func permissionGuard(resolver PermissionResolver, allowed func(*service.PermissionSet) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		set := PermissionsFromContext(c)
		if set == nil {
			set = resolver.Resolve(c.Request.Context(), claims.UserID, HospitalFromContext(c))
			c.Set(ContextPermissionsKey, set)
		}
		if err := set.Err(); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "permissions unavailable, please retry"))
			c.Abort()
			return
		}
		if !allowed(set) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// PermissionsFromContext returns the set resolved earlier in the chain, or nil.
func PermissionsFromContext(c *gin.Context) *service.PermissionSet {
	value, exists := c.Get(ContextPermissionsKey)
	if !exists {
		return nil
	}
	set, _ := value.(*service.PermissionSet)
	return set
}
