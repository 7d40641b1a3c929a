package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/service"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// SettingsHandler 用户设置 HTTP 处理器
type SettingsHandler struct {
	settingsSvc service.SettingsService
}

// NewSettingsHandler 创建 SettingsHandler
func NewSettingsHandler(settingsSvc service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsSvc: settingsSvc}
}

// Get 完整设置，首次访问时创建默认值
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.settingsSvc.Get(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// Update 部分更新设置，费率变化时重算已有记录
// PUT /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.SettingsPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.Update(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// UpdateKey 更新单个设置项，key 支持点号路径
// PUT /api/settings/:key
func (h *SettingsHandler) UpdateKey(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.UpdateKey(c.Request.Context(), userID, c.Param("key"), req.Value)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// ── 费率 ──

// GetPayRate 默认费率
// GET /api/settings/pay-rate
func (h *SettingsHandler) GetPayRate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.settingsSvc.GetPayRate(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// UpdatePayRate 修改默认费率并重算记录
// PUT /api/settings/pay-rate
func (h *SettingsHandler) UpdatePayRate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdatePayRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.UpdatePayRate(c.Request.Context(), userID, *req.PayRate)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// ── 通知 ──

// GetNotifications 通知偏好
// GET /api/settings/notifications
func (h *SettingsHandler) GetNotifications(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.settingsSvc.GetNotifications(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// UpdateNotifications 修改通知偏好
// PUT /api/settings/notifications
func (h *SettingsHandler) UpdateNotifications(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.NotificationsPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.UpdateNotifications(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// ── 颜色 ──

// GetColors 分类配色
// GET /api/settings/colors
func (h *SettingsHandler) GetColors(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.settingsSvc.GetColors(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// UpdateColors 合并修改分类配色
// PUT /api/settings/colors
func (h *SettingsHandler) UpdateColors(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.UpdateColors(c.Request.Context(), userID, req)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// ── 加班 ──

// GetOvertime 加班规则
// GET /api/settings/overtime
func (h *SettingsHandler) GetOvertime(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.settingsSvc.GetOvertime(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// UpdateOvertime 修改加班规则
// PUT /api/settings/overtime
func (h *SettingsHandler) UpdateOvertime(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.OvertimePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.UpdateOvertime(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// CalculatePay 按加班规则试算
// POST /api/settings/calculate-pay
func (h *SettingsHandler) CalculatePay(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CalculatePayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.CalculatePay(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// ── 重置 / 导入导出 ──

// Reset 恢复默认设置，保留个人信息
// POST /api/settings/reset
func (h *SettingsHandler) Reset(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.settingsSvc.Reset(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// Export 导出设置
// GET /api/settings/export
func (h *SettingsHandler) Export(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.settingsSvc.Export(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}

// Import 导入设置
// POST /api/settings/import
func (h *SettingsHandler) Import(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.ImportSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 14000, err)
		return
	}

	result, err := h.settingsSvc.Import(c.Request.Context(), userID, req.Settings)
	if err != nil {
		handleCommonError(c, 14000, err)
		return
	}

	response.OK(c, result)
}
