package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// BodyLimit 全局请求体大小限制中间件
// maxBytes: 允许的最大请求体字节数（如 5<<20 = 5MB）
// 声明长度超限时直接拒绝；未声明长度时由 MaxBytesReader 在读取时截断，
// 绑定阶段得到 *http.MaxBytesError 并返回 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
