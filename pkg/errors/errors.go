// Package errors 提供统一的错误处理框架
// 领域内的预期结果（取消资格、无法安置、空操作）不属于错误
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown       Code = "UNKNOWN"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeTimeout       Code = "TIMEOUT"
	CodeRateLimited   Code = "RATE_LIMITED"

	// 派工引擎相关
	CodeInvalidSettings  Code = "INVALID_SETTINGS"
	CodeInvalidState     Code = "INVALID_STATE"
	CodeUnknownOperation Code = "UNKNOWN_OPERATION"

	// 外部协作方
	CodeGeocodeFailed Code = "GEOCODE_FAILED"

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// statusByCode 错误码对应的HTTP状态码，未列出的为 500
var statusByCode = map[Code]int{
	CodeInvalidInput:     http.StatusBadRequest,
	CodeValidationFail:   http.StatusBadRequest,
	CodeInvalidSettings:  http.StatusBadRequest,
	CodeInvalidState:     http.StatusBadRequest,
	CodeUnknownOperation: http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeAlreadyExists:    http.StatusConflict,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeTimeout:          http.StatusGatewayTimeout,
	CodeGeocodeFailed:    http.StatusBadGateway,
}

func codeToHTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func asApp(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is 错误链中是否有指定错误码的 AppError
func Is(err error, code Code) bool {
	appErr, ok := asApp(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码，非 AppError 返回 CodeUnknown
func GetCode(err error) Code {
	if appErr, ok := asApp(err); ok {
		return appErr.Code
	}
	return CodeUnknown
}

// From 取出错误链中的 AppError，普通错误包装为内部错误
func From(err error) *AppError {
	if appErr, ok := asApp(err); ok {
		return appErr
	}
	return Wrap(err, CodeInternal, "内部错误")
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	if appErr, ok := asApp(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// 预定义错误
var (
	ErrNilState  = New(CodeInvalidState, "当日状态为空")
	ErrNilRoster = New(CodeInvalidState, "代表名单为空")
)

// InvalidInput 创建输入无效错误
func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

// NotFound 创建资源不存在错误
func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// InvalidSettings 创建设置无效错误
func InvalidSettings(details string) *AppError {
	return New(CodeInvalidSettings, "派工设置无效").WithDetails(details)
}

// UnknownOperation 创建未知操作错误
func UnknownOperation(op string) *AppError {
	return New(CodeUnknownOperation, fmt.Sprintf("未知操作 '%s'", op))
}

// GeocodeFailed 创建坐标解析失败错误
func GeocodeFailed(address string, cause error) *AppError {
	return Wrap(cause, CodeGeocodeFailed, fmt.Sprintf("地址 '%s' 坐标解析失败", address))
}

// ValidationErrors 验证错误集合
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ValidationError 单个验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	return fmt.Sprintf("验证失败: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Add 添加验证错误
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors 检查是否有错误
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError 转换为 AppError
func (ve *ValidationErrors) ToAppError() *AppError {
	err := New(CodeValidationFail, "验证失败")
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	return err
}
