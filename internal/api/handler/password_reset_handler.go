package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/service"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// PasswordResetHandler 密码重置 HTTP 处理器
type PasswordResetHandler struct {
	resetSvc service.PasswordResetService
}

// NewPasswordResetHandler 创建 PasswordResetHandler
func NewPasswordResetHandler(resetSvc service.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{resetSvc: resetSvc}
}

// Request 申请重置，无论邮箱是否注册都返回相同结果
// POST /api/password-reset/request
func (h *PasswordResetHandler) Request(c *gin.Context) {
	var req dto.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 16000, err)
		return
	}

	if err := h.resetSvc.RequestReset(c.Request.Context(), req.Email); err != nil {
		handlePasswordResetError(c, err)
		return
	}

	response.OK(c, gin.H{"message": "如果该邮箱已注册，重置链接已发送"})
}

// Verify 校验重置令牌
// GET /api/password-reset/verify/:token
func (h *PasswordResetHandler) Verify(c *gin.Context) {
	result, err := h.resetSvc.VerifyToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		handlePasswordResetError(c, err)
		return
	}

	response.OK(c, result)
}

// Reset 使用令牌设置新密码
// POST /api/password-reset/reset/:token
func (h *PasswordResetHandler) Reset(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 16000, err)
		return
	}

	if err := h.resetSvc.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		handlePasswordResetError(c, err)
		return
	}

	response.OK(c, gin.H{"message": "密码已重置，请使用新密码登录"})
}

func handlePasswordResetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidResetToken):
		response.BadRequest(c, 16001, err.Error())
	case errors.Is(err, service.ErrResetEmailFailed):
		response.Error(c, http.StatusInternalServerError, 16002, err.Error())
	default:
		handleCommonError(c, 16000, err)
	}
}
