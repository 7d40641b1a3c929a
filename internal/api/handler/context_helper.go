package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// 上下文键，由 middleware.JWTAuth 注入
const (
	ctxUserID   = "user_id"
	ctxTokenJTI = "token_jti"
	ctxTokenExp = "token_exp"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(ctxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// tokenClaims 当前 Access Token 的 jti 与过期时间，用于登出
func tokenClaims(c *gin.Context) (string, time.Time) {
	return c.GetString(ctxTokenJTI), c.GetTime(ctxTokenExp)
}

// pathID 读取并校验 UUID 路径参数，非法时写入 400
func pathID(c *gin.Context, name string, code int) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(c, code, "无效的资源 ID")
		return "", false
	}
	return id, true
}
