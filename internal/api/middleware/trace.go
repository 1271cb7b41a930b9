package middleware

import (
	"Storefront/internal/pkg/logger"
	"context"

	"github.com/gin-gonic/gin"
)

const traceHeader = "X-Trace-ID"

// TraceMiddleware 沿用视图传入的 trace_id，缺失时生成 view 前缀的新值
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(traceHeader); traceID != "" {
			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
		} else {
			ctx = logger.WithTrace(ctx, "view")
		}
		traceID := logger.TraceID(ctx)

		c.Set(logger.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(traceHeader, traceID)
		c.Next()
	}
}
