package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	applogger "project-selector/backend/pkg/logger"
)

const requestIDKey = "request_id"

// 外部传入的追踪 ID 最大长度
const requestIDMaxLen = 64

// RequestID 请求追踪 ID 中间件
// 沿用调用方的 X-Request-ID（仅限可打印 ASCII），否则生成 UUID。
// ID 同时写入 gin.Context 与 request context，调用求解服务时会原样转发。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(applogger.RequestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}

		c.Set(requestIDKey, rid)
		c.Request = c.Request.WithContext(applogger.WithRequestID(c.Request.Context(), rid))
		c.Header(applogger.RequestIDHeader, rid)

		c.Next()
	}
}

func validRequestID(rid string) bool {
	if rid == "" || len(rid) > requestIDMaxLen {
		return false
	}
	for i := 0; i < len(rid); i++ {
		if rid[i] < 0x21 || rid[i] > 0x7e {
			return false
		}
	}
	return true
}
