package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/service"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// AlarmHandler 提醒模块 HTTP 处理器
type AlarmHandler struct {
	alarmSvc service.AlarmService
}

// NewAlarmHandler 创建 AlarmHandler
func NewAlarmHandler(alarmSvc service.AlarmService) *AlarmHandler {
	return &AlarmHandler{alarmSvc: alarmSvc}
}

// List 提醒列表
// GET /api/alarms?status=&type=&timesheet_entry_id=&upcoming=&hours_ahead=
func (h *AlarmHandler) List(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.AlarmListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 13000, err)
		return
	}

	alarms, err := h.alarmSvc.List(c.Request.Context(), userID, &req)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarms)
}

// Triggerable 当前应当弹出的提醒
// GET /api/alarms/triggerable
func (h *AlarmHandler) Triggerable(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	alarms, err := h.alarmSvc.Triggerable(c.Request.Context(), userID)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarms)
}

// Upcoming 未来 N 小时内的提醒
// GET /api/alarms/upcoming?hours_ahead=24
func (h *AlarmHandler) Upcoming(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpcomingAlarmRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 13000, err)
		return
	}

	alarms, err := h.alarmSvc.Upcoming(c.Request.Context(), userID, req.GetHoursAhead())
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarms)
}

// ByEntry 某条工时记录的提醒
// GET /api/alarms/entry/:entryId
func (h *AlarmHandler) ByEntry(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entryId", 13000)
	if !ok {
		return
	}

	alarms, err := h.alarmSvc.ByEntry(c.Request.Context(), userID, entryID)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarms)
}

// Get 提醒详情
// GET /api/alarms/:id
func (h *AlarmHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 13000)
	if !ok {
		return
	}

	alarm, err := h.alarmSvc.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarm)
}

// Create 创建提醒
// POST /api/alarms
func (h *AlarmHandler) Create(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13000, err)
		return
	}

	alarm, err := h.alarmSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.Created(c, alarm)
}

// Update 更新提醒
// PUT /api/alarms/:id
func (h *AlarmHandler) Update(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 13000)
	if !ok {
		return
	}
	var req dto.UpdateAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13000, err)
		return
	}

	alarm, err := h.alarmSvc.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarm)
}

// Delete 删除提醒
// DELETE /api/alarms/:id
func (h *AlarmHandler) Delete(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 13000)
	if !ok {
		return
	}

	if err := h.alarmSvc.Delete(c.Request.Context(), userID, id); err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, gin.H{"id": id})
}

// Trigger 触发提醒
// POST /api/alarms/:id/trigger
func (h *AlarmHandler) Trigger(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 13000)
	if !ok {
		return
	}

	alarm, err := h.alarmSvc.Trigger(c.Request.Context(), userID, id)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarm)
}

// Dismiss 关闭提醒，周期提醒会生成下一次
// POST /api/alarms/:id/dismiss
func (h *AlarmHandler) Dismiss(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 13000)
	if !ok {
		return
	}

	result, err := h.alarmSvc.Dismiss(c.Request.Context(), userID, id)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, result)
}

// Snooze 稍后提醒
// POST /api/alarms/:id/snooze
func (h *AlarmHandler) Snooze(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 13000)
	if !ok {
		return
	}
	// 请求体可省略，默认 5 分钟
	var req dto.SnoozeAlarmRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, 13000, err)
			return
		}
	}

	alarm, err := h.alarmSvc.Snooze(c.Request.Context(), userID, id, req.Minutes)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarm)
}

// Reactivate 重新激活
// POST /api/alarms/:id/reactivate
func (h *AlarmHandler) Reactivate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 13000)
	if !ok {
		return
	}

	alarm, err := h.alarmSvc.Reactivate(c.Request.Context(), userID, id)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, alarm)
}

// BulkDismiss 批量关闭
// PATCH /api/alarms/bulk/dismiss
func (h *AlarmHandler) BulkDismiss(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.BulkDismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 13000, err)
		return
	}

	result, err := h.alarmSvc.BulkDismiss(c.Request.Context(), userID, req.AlarmIDs)
	if err != nil {
		handleAlarmError(c, err)
		return
	}

	response.OK(c, result)
}

func handleAlarmError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlarmNotFound):
		response.NotFound(c, 13001, err.Error())
	case errors.Is(err, service.ErrEntryNotFound):
		response.NotFound(c, 12001, err.Error())
	case errors.Is(err, service.ErrAlarmConflict):
		response.Error(c, http.StatusConflict, 13002, err.Error())
	case errors.Is(err, model.ErrAlarmNotActive), errors.Is(err, model.ErrAlarmCannotSnooze):
		response.Error(c, http.StatusConflict, 13003, err.Error())
	case errors.Is(err, model.ErrAlarmNotDue):
		response.BadRequest(c, 13004, err.Error())
	case errors.Is(err, model.ErrInvalidSnooze):
		response.ValidationFailed(c, 13000, []string{err.Error()})
	default:
		handleCommonError(c, 13000, err)
	}
}
