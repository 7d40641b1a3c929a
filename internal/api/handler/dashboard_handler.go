package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/service"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// DashboardHandler 仪表盘 HTTP 处理器
type DashboardHandler struct {
	dashboardSvc service.DashboardService
}

// NewDashboardHandler 创建 DashboardHandler
func NewDashboardHandler(dashboardSvc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// Overview 今日/本周/本月合计、最近记录与提醒
// GET /api/dashboard/overview
func (h *DashboardHandler) Overview(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.dashboardSvc.Overview(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, 15000, err)
		return
	}

	response.OK(c, result)
}

// Weekly 周汇总
// GET /api/dashboard/weekly?start_date=
func (h *DashboardHandler) Weekly(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.WeeklySummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 15000, err)
		return
	}

	result, err := h.dashboardSvc.Weekly(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommonError(c, 15000, err)
		return
	}

	response.OK(c, result)
}

// Monthly 月汇总
// GET /api/dashboard/monthly?year=&month=
func (h *DashboardHandler) Monthly(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.MonthlySummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 15000, err)
		return
	}

	result, err := h.dashboardSvc.Monthly(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommonError(c, 15000, err)
		return
	}

	response.OK(c, result)
}

// Insights 最近 N 天的效率洞察
// GET /api/dashboard/insights?days=30
func (h *DashboardHandler) Insights(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.PeriodDaysRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 15000, err)
		return
	}

	result, err := h.dashboardSvc.Insights(c.Request.Context(), userID, req.GetDays())
	if err != nil {
		handleCommonError(c, 15000, err)
		return
	}

	response.OK(c, result)
}

// AlarmStats 提醒统计
// GET /api/dashboard/alarms/stats?days=30
func (h *DashboardHandler) AlarmStats(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.PeriodDaysRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 15000, err)
		return
	}

	result, err := h.dashboardSvc.AlarmStats(c.Request.Context(), userID, req.GetDays())
	if err != nil {
		handleCommonError(c, 15000, err)
		return
	}

	response.OK(c, result)
}
