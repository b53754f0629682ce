// Package errors 定义了带错误码的业务错误。
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 应用业务错误
type AppError struct {
	Code    ErrCode // 业务错误码
	Message string  // 错误消息
	Err     error   // 底层错误，可为空
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的业务错误
func New(code ErrCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf 创建新的业务错误（格式化消息）
func Newf(code ErrCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 用错误码包装底层错误
func Wrap(code ErrCode, err error, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// GetAppError 沿错误链查找业务错误，找不到返回 nil
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Is 判断错误链中是否包含指定错误码
func Is(err error, code ErrCode) bool {
	for err != nil {
		appErr := GetAppError(err)
		if appErr == nil {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// Retryable 判断错误是否可重试。非业务错误一律视为不可重试。
func Retryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code.Retryable()
}

// CodeOf 返回错误链中最外层的错误码，非业务错误返回 ErrInternalError
func CodeOf(err error) ErrCode {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ErrInternalError
}
