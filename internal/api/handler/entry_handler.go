package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/service"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// EntryHandler 工时记录 HTTP 处理器
type EntryHandler struct {
	entrySvc service.TimesheetService
}

// NewEntryHandler 创建 EntryHandler
func NewEntryHandler(entrySvc service.TimesheetService) *EntryHandler {
	return &EntryHandler{entrySvc: entrySvc}
}

// List 工时记录列表（分页）
// GET /api/timesheet-entries?start_date=&end_date=&project=&category=&status=&page=&limit=&sort_by=&sort_order=
func (h *EntryHandler) List(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.EntryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, 12000, err)
		return
	}

	items, total, err := h.entrySvc.List(c.Request.Context(), userID, &req)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.OKPage(c, items, total, req.GetPage(), req.GetLimit())
}

// Calendar 日历视图事件
// GET /api/timesheet-entries/calendar?start_date=&end_date=
func (h *EntryHandler) Calendar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var q dto.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, 12000, err)
		return
	}
	from, to, err := parseRange(q)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	events, err := h.entrySvc.Calendar(c.Request.Context(), userID, from, to)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.OK(c, events)
}

// Totals 区间合计，不传日期时统计全部记录
// GET /api/timesheet-entries/totals?start_date=&end_date=
func (h *EntryHandler) Totals(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	from, to, ok := bindOptionalRange(c)
	if !ok {
		return
	}

	totals, err := h.entrySvc.Totals(c.Request.Context(), userID, from, to)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.OK(c, totals)
}

// ProjectSummary 按项目汇总
// GET /api/timesheet-entries/projects/summary?start_date=&end_date=
func (h *EntryHandler) ProjectSummary(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	from, to, ok := bindOptionalRange(c)
	if !ok {
		return
	}

	items, err := h.entrySvc.ProjectSummary(c.Request.Context(), userID, from, to)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.OK(c, items)
}

// Get 工时记录详情
// GET /api/timesheet-entries/:id
func (h *EntryHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 12000)
	if !ok {
		return
	}

	entry, err := h.entrySvc.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.OK(c, entry)
}

// Create 创建工时记录，可同时创建提醒
// POST /api/timesheet-entries
func (h *EntryHandler) Create(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 12000, err)
		return
	}

	result, err := h.entrySvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.Created(c, result)
}

// Update 更新工时记录
// PUT /api/timesheet-entries/:id
func (h *EntryHandler) Update(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 12000)
	if !ok {
		return
	}
	var req dto.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 12000, err)
		return
	}

	entry, err := h.entrySvc.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.OK(c, entry)
}

// Delete 删除工时记录及其提醒
// DELETE /api/timesheet-entries/:id
func (h *EntryHandler) Delete(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", 12000)
	if !ok {
		return
	}

	if err := h.entrySvc.Delete(c.Request.Context(), userID, id); err != nil {
		handleEntryError(c, err)
		return
	}

	response.OK(c, gin.H{"id": id})
}

// BulkUpdate 批量修改状态、分类、项目或描述
// PATCH /api/timesheet-entries/bulk
func (h *EntryHandler) BulkUpdate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.BulkUpdateEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 12000, err)
		return
	}

	result, err := h.entrySvc.BulkUpdate(c.Request.Context(), userID, &req)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.OK(c, result)
}

// ImportICS 从 iCalendar 文件导入工时记录
// POST /api/timesheet-entries/import
//
// multipart/form-data: file=<.ics>，可选 project/category/status
func (h *EntryHandler) ImportICS(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var opts dto.ImportICSOptions
	if err := c.ShouldBind(&opts); err != nil {
		bindFailed(c, 12000, err)
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 12201, "请上传 ICS 文件")
		return
	}
	defer file.Close()

	result, err := h.entrySvc.ImportICS(c.Request.Context(), userID, file, &opts)
	if err != nil {
		handleEntryError(c, err)
		return
	}

	response.Created(c, result)
}

// ── 辅助 ──

// parseRange 解析必填日期区间
func parseRange(q dto.DateRangeQuery) (time.Time, time.Time, error) {
	from, to, err := service.ParseOptionalRange(dto.OptionalDateRangeQuery{
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from == nil || to == nil {
		return time.Time{}, time.Time{}, pkgerrors.NewValidationError("start_date 与 end_date 均不能为空")
	}
	return *from, *to, nil
}

// bindOptionalRange 绑定并解析可选日期区间，失败时写入 400
func bindOptionalRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	var q dto.OptionalDateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, 12000, err)
		return nil, nil, false
	}
	from, to, err := service.ParseOptionalRange(q)
	if err != nil {
		handleEntryError(c, err)
		return nil, nil, false
	}
	return from, to, true
}

func handleEntryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEntryNotFound):
		response.NotFound(c, 12001, err.Error())
	default:
		handleCommonError(c, 12000, err)
	}
}
