package middleware

import (
	"Storefront/internal/pkg/capability"
	"Storefront/internal/pkg/consts"
	"Storefront/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// CheckRoles 检查当前会话的角色是否在允许列表中
func CheckRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Capabilities(c).RoleAllowed(requiredRoles) {
			response.Fail(c, response.Forbidden, "权限不足：无权访问该资源")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CheckPermissions 按 mode 检查一组权限点，ModeAny 满足其一即可，ModeAll 需全部满足
func CheckPermissions(mode capability.Mode, perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Capabilities(c).Check(mode, perms) {
			response.Fail(c, response.Forbidden, "权限不足：无权执行该操作")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Capabilities 读取 AuthMiddleware 注入的权限快照，缺失时为空集合
func Capabilities(c *gin.Context) *capability.Set {
	if v, ok := c.Get(consts.CtxCapabilities); ok {
		if caps, ok := v.(*capability.Set); ok {
			return caps
		}
	}
	return capability.Empty()
}
