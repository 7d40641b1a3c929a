package errors

import (
	"errors"
	"strings"
)

// ErrInvalidID 路径参数中的资源 ID 格式非法
var ErrInvalidID = errors.New("无效的资源 ID")

// ValidationError 输入校验失败，携带逐字段的错误信息
type ValidationError struct {
	Fields []string
}

// NewValidationError 创建校验错误
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "参数校验失败"
	}
	return "参数校验失败: " + strings.Join(e.Fields, "; ")
}

// Add 追加一条字段错误
func (e *ValidationError) Add(msg string) {
	e.Fields = append(e.Fields, msg)
}

// OrNil 没有字段错误时返回 nil，便于逐项收集后统一返回
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidation 判断 err 链中是否包含 ValidationError
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
