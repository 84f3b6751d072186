package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"project-selector/backend/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// 处理器自行读取请求体时（如求解回调）应自己识别 *http.MaxBytesError；
// 这里兜底处理通过 c.Error 上报、尚未写响应的情况。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() || c.Writer.Written() {
			return
		}
		var tooLarge *http.MaxBytesError
		for _, e := range c.Errors {
			if errors.As(e.Err, &tooLarge) {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
				return
			}
		}
	}
}
