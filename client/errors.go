package client

import "fmt"

// Error 客户端错误
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 错误码定义
const (
	ErrCodeNetwork         = 1000 // 网络错误
	ErrCodeTimeout         = 1001 // 超时错误
	ErrCodeInvalidResponse = 1002 // 无效响应
	ErrCodeRPCError        = 1003 // JSON-RPC错误
	ErrCodeNotSupported    = 1004 // 不支持的操作
	ErrCodeReverted        = 1005 // 调用回滚
)

// NewNetworkError 创建网络错误
func NewNetworkError(err error) *Error {
	return &Error{
		Code:    ErrCodeNetwork,
		Message: "network error",
		Err:     err,
	}
}

// NewTimeoutError 创建超时错误
func NewTimeoutError() *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: "request timeout",
	}
}

// NewInvalidResponseError 创建无效响应错误
func NewInvalidResponseError(message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidResponse,
		Message: message,
	}
}

// NewRPCError 创建JSON-RPC错误
func NewRPCError(code int, message string, data interface{}) *Error {
	return &Error{
		Code:    ErrCodeRPCError,
		Message: fmt.Sprintf("RPC error [%d]: %s, data: %v", code, message, data),
	}
}

// NewRevertedError 创建调用回滚错误
//
// 区别于普通 RPC 错误：回滚是合约层面的确定性失败，重试无意义。
func NewRevertedError(message string, data interface{}) *Error {
	return &Error{
		Code:    ErrCodeReverted,
		Message: fmt.Sprintf("%s, data: %v", message, data),
	}
}

// NewNotSupportedError 创建不支持的操作错误
func NewNotSupportedError(operation string) *Error {
	return &Error{
		Code:    ErrCodeNotSupported,
		Message: fmt.Sprintf("operation not supported: %s", operation),
	}
}
