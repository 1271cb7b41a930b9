package middleware

import (
	"Storefront/internal/pkg/consts"
	"Storefront/internal/pkg/logger"
	"Storefront/internal/pkg/response"
	"Storefront/internal/service"
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 校验视图携带的令牌属于当前会话，并注入会话的权限快照
func AuthMiddleware(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		sess, err := sessions.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		caps := sess.Capabilities
		c.Set(consts.CtxUserID, sess.UserID)
		if role, ok := caps.Role(); ok {
			c.Set(consts.CtxRole, role)
		}
		c.Set(consts.CtxCapabilities, caps)

		newCtx := context.WithValue(c.Request.Context(), logger.UserIDKey, sess.UserID)
		c.Request = c.Request.WithContext(newCtx)

		c.Next()
	}
}
