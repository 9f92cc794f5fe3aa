package client

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig 重试配置
//
// 只作用于传输层读请求；已广播的交易绝不自动重发。
type RetryConfig struct {
	// MaxRetries 最大重试次数
	MaxRetries int
	// InitialDelay 初始延迟（毫秒）
	InitialDelay int
	// MaxDelay 最大延迟（毫秒）
	MaxDelay int
	// BackoffMultiplier 退避倍数
	BackoffMultiplier float64
	// Retryable 判断错误是否可重试的函数
	Retryable func(error) bool
	// OnRetry 重试前的回调函数
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1000,
		MaxDelay:          10000,
		BackoffMultiplier: 2.0,
		Retryable:         isRetryableError,
		OnRetry:           nil,
	}
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// 网络错误（连接失败、超时等）
	if netErr, ok := err.(net.Error); ok {
		if netErr.Timeout() {
			return true
		}
	}

	// DNS 错误
	if _, ok := err.(*net.DNSError); ok {
		return true
	}

	// HTTP 错误（通过错误消息判断）
	errMsg := err.Error()
	for _, substr := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"timeout",
		"ECONNREFUSED",
		"ENOTFOUND",
	} {
		if strings.Contains(errMsg, substr) {
			return true
		}
	}

	return false
}

// isRetryableHTTPError 判断 HTTP 响应错误是否可重试
func isRetryableHTTPError(statusCode int) bool {
	// HTTP 5xx 错误（服务器错误）
	if statusCode >= 500 && statusCode < 600 {
		return true
	}
	// HTTP 429 错误（请求过多）
	if statusCode == 429 {
		return true
	}
	return false
}

// withRetry 带重试的函数执行器（指数退避）
func withRetry(ctx context.Context, fn func() error, config *RetryConfig) error {
	if config == nil || config.MaxRetries <= 0 {
		return fn()
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Duration(config.InitialDelay) * time.Millisecond
	expo.MaxInterval = time.Duration(config.MaxDelay) * time.Millisecond
	if config.BackoffMultiplier > 1 {
		expo.Multiplier = config.BackoffMultiplier
	}

	operation := func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		// 不可重试的错误直接终止退避循环
		if config.Retryable != nil && !config.Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(config.MaxRetries + 1)),
	}
	if config.OnRetry != nil {
		attempt := 0
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) {
			attempt++
			config.OnRetry(attempt, err)
		}))
	}

	_, err := backoff.Retry(ctx, operation, opts...)
	return err
}
