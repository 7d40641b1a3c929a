package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/service"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportXLSX 导出工时记录为 Excel
// GET /api/timesheet-entries/export?start_date=&end_date=
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
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
		handleExportError(c, err)
		return
	}

	buf, filename, err := h.exportSvc.ExportEntriesXLSX(c.Request.Context(), userID, from, to)
	if err != nil {
		handleExportError(c, err)
		return
	}

	writeAttachment(c, filename, mimeXLSX, buf)
}

// ExportICS 导出工时记录为 iCalendar，可直接导入日历应用
// GET /api/timesheet-entries/calendar.ics?start_date=&end_date=
func (h *ExportHandler) ExportICS(c *gin.Context) {
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
		handleExportError(c, err)
		return
	}

	buf, filename, err := h.exportSvc.ExportEntriesICS(c.Request.Context(), userID, from, to)
	if err != nil {
		handleExportError(c, err)
		return
	}

	writeAttachment(c, filename, mimeICS, buf)
}

// writeAttachment 设置下载响应头并写出文件内容
func writeAttachment(c *gin.Context, filename, mime string, buf *bytes.Buffer) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, mime, buf.Bytes())
}

func handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoEntries):
		response.NotFound(c, 12101, err.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 12102, err.Error())
	default:
		handleCommonError(c, 12000, err)
	}
}
