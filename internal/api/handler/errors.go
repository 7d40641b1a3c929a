package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

// handleCommonError 各模块未单独映射的错误统一在这里兜底
// code 为模块的通用校验错误码
func handleCommonError(c *gin.Context, code int, err error) {
	if ve, ok := pkgerrors.AsValidation(err); ok {
		response.ValidationFailed(c, code, ve.Fields)
		return
	}
	if errors.Is(err, pkgerrors.ErrInvalidID) {
		response.BadRequest(c, code, err.Error())
		return
	}
	if ctxErr := c.Request.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		response.Error(c, http.StatusServiceUnavailable, 50003, "请求已取消或超时")
		return
	}
	response.InternalErrorWithDetails(c, err)
}
