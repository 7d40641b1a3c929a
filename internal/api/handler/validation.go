package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/pkg/response"
)

var registerOnce sync.Once

// RegisterValidators 为 gin 默认校验器注册自定义规则
// 字段名取 json/form 标签，错误信息与请求体字段保持一致
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return model.IsHHMM(fl.Field().String())
		})
	})
}

// bindFailed 将绑定/校验错误转换为逐字段信息并写入 400 响应
func bindFailed(c *gin.Context, code int, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ValidationFailed(c, code, bindingMessages(err))
}

func bindingMessages(err error) []string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldMessage(fe))
		}
		return msgs
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return []string{"请求体不是合法的 JSON"}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []string{fmt.Sprintf("%s: 类型错误，期望 %s", typeErr.Field, typeErr.Type.String())}
	}
	return []string{err.Error()}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + ": 不能为空"
	case "email":
		return field + ": 邮箱格式无效"
	case "min", "gte":
		return fmt.Sprintf("%s: 不能小于 %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s: 不能大于 %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: 必须是 [%s] 之一", field, fe.Param())
	case "datetime":
		return field + ": 日期格式应为 YYYY-MM-DD"
	case "uuid":
		return field + ": 无效的 ID"
	case "hexcolor":
		return field + ": 颜色格式应为 #RRGGBB"
	case "hhmm":
		return field + ": 时间格式应为 HH:MM"
	case "eqfield":
		return field + ": 两次输入不一致"
	default:
		return fmt.Sprintf("%s: 未通过 %s 校验", field, fe.Tag())
	}
}
