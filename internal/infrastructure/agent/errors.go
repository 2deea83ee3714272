// Package agent 提供多智能体 LLM 客户端
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransientError 瞬时错误，可退避后重试
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient agent error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError 致命错误，重试无意义
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal agent error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Classify 将底层调用错误归类为瞬时或致命
// 超时与限流按瞬时处理，认证与参数错误按致命处理
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var te *TransientError
	var fe *FatalError
	if errors.As(err, &te) || errors.As(err, &fe) {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "temporarily unavailable"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "overloaded"):
		return &TransientError{Err: err}
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "context length"),
		strings.Contains(msg, "model not found"):
		return &FatalError{Err: err}
	default:
		// 未知错误按瞬时处理，交给有限重试兜底
		return &TransientError{Err: err}
	}
}

// IsTransient 检查错误是否可重试
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsFatal 检查错误是否致命
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
