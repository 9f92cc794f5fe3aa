package types

import (
	"errors"
	"fmt"
)

// ErrorKind 引擎错误分类
type ErrorKind string

const (
	// ErrKindUnsupportedOperation 代币标准 × 操作组合不受支持
	ErrKindUnsupportedOperation ErrorKind = "UNSUPPORTED_OPERATION"
	// ErrKindInsufficientBalance 余额不足
	ErrKindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	// ErrKindInsufficientLiquidity 聚合器流动性不足
	ErrKindInsufficientLiquidity ErrorKind = "INSUFFICIENT_LIQUIDITY"
	// ErrKindInvalidToken 无效代币
	ErrKindInvalidToken ErrorKind = "INVALID_TOKEN"
	// ErrKindInvalidAmount 金额解析阶段被拒绝（非数字 / 多小数点 / NFT 非整数数量）
	ErrKindInvalidAmount ErrorKind = "INVALID_AMOUNT"
	// ErrKindApprovalNotEffective 授权交易确认后额度仍不足
	ErrKindApprovalNotEffective ErrorKind = "APPROVAL_NOT_EFFECTIVE"
	// ErrKindPermitOwnerMismatch permit 消息 owner 与上下文所有者不一致（致命，绝不自动纠正）
	ErrKindPermitOwnerMismatch ErrorKind = "PERMIT_OWNER_MISMATCH"
	// ErrKindUserRejected 用户拒绝签名/交易
	ErrKindUserRejected ErrorKind = "USER_REJECTED"
	// ErrKindOnChainFailure 交易已确认但回滚
	ErrKindOnChainFailure ErrorKind = "ON_CHAIN_FAILURE"
	// ErrKindConfirmationTimeout 确认等待超时（交易可能仍会上链）
	ErrKindConfirmationTimeout ErrorKind = "CONFIRMATION_TIMEOUT"
	// ErrKindNetworkError 网络/RPC 错误
	ErrKindNetworkError ErrorKind = "NETWORK_ERROR"
)

// EngineError 引擎统一错误类型
//
// 构建器和协议层错误不经修改向上传播，由编排层翻译为用户文案。
type EngineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause=%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Retryable 是否可以用相同输入立即重试
//
// 仅 UserRejected 和 ConfirmationTimeout 两类安全；其余要求用户
// 修改请求或视为该次操作的致命错误。
func (e *EngineError) Retryable() bool {
	return e.Kind == ErrKindUserRejected || e.Kind == ErrKindConfirmationTimeout
}

// NewError 创建引擎错误
func NewError(kind ErrorKind, format string, args ...interface{}) *EngineError {
	return &EngineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError 包装底层错误为引擎错误
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *EngineError {
	return &EngineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// AsEngineError 检查错误链中是否包含 EngineError
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// KindOf 提取错误分类；非引擎错误一律归为 NetworkError 之外的未知，
// 调用方应在边界处先用 WrapError 归类
func KindOf(err error) ErrorKind {
	if engineErr, ok := AsEngineError(err); ok {
		return engineErr.Kind
	}
	return ""
}

// IsKind 检查错误是否属于指定分类
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
