package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ojcore/pkg/utils/contextkey"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"
	userIDHeader    = "X-User-Id"
)

// TraceContextMiddleware ensures trace/request/user id are in context and response headers.
// The user id header is trusted as set by the upstream gateway.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := headerOrNew(c, traceIDHeader)
		requestID := headerOrNew(c, requestIDHeader)

		ctx := c.Request.Context()
		ctx = bind(c, ctx, contextkey.TraceID, traceIDHeader, traceID)
		ctx = bind(c, ctx, contextkey.RequestID, requestIDHeader, requestID)
		if userID := strings.TrimSpace(c.GetHeader(userIDHeader)); userID != "" {
			ctx = bind(c, ctx, contextkey.UserID, userIDHeader, userID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func headerOrNew(c *gin.Context, header string) string {
	if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
		return v
	}
	return uuid.NewString()
}

func bind(c *gin.Context, ctx context.Context, key interface{ String() string }, header, value string) context.Context {
	c.Set(key.String(), value)
	c.Writer.Header().Set(header, value)
	return context.WithValue(ctx, key, value)
}
