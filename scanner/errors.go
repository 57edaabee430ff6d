// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorCode is a coarse classification usable as a process exit reason.
type ErrorCode string

const (
	// ErrCodeTimeout indicates the scan was cut short by deadline or cancellation.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeDenied indicates missing privileges for raw packet access.
	ErrCodeDenied ErrorCode = "DENIED"
	// ErrCodeNetUnreach indicates the target network is unreachable.
	ErrCodeNetUnreach ErrorCode = "NETUNREACH"
	// ErrCodeHostUnreach indicates the next hop is unreachable.
	ErrCodeHostUnreach ErrorCode = "HOSTUNREACH"
	// ErrCodeInvalidRequest indicates bad parameters from the caller.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeUnknown is the catch-all for unclassified errors.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// ScanError is a classified scan failure.
type ScanError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ScanError) Error() string {
	return e.Message
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// InvalidConfigError marks a configuration the engine refused to run with.
type InvalidConfigError struct {
	Err error
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid scan configuration: %s", e.Err)
}

func (e *InvalidConfigError) Unwrap() error {
	return e.Err
}

// ClassifyError inspects an error chain and returns a ScanError with the
// appropriate code.
func ClassifyError(err error) *ScanError {
	if err == nil {
		return nil
	}

	var confErr *InvalidConfigError
	if errors.As(err, &confErr) {
		return &ScanError{Code: ErrCodeInvalidRequest, Message: err.Error(), Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ScanError{Code: ErrCodeTimeout, Message: err.Error(), Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Timeout() {
		return &ScanError{Code: ErrCodeTimeout, Message: err.Error(), Err: err}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classifyErrno(errno, err)
	}

	return &ScanError{Code: ErrCodeUnknown, Message: err.Error(), Err: err}
}

func classifyErrno(errno syscall.Errno, original error) *ScanError {
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return &ScanError{Code: ErrCodeDenied, Message: original.Error(), Err: original}
	case syscall.ENETUNREACH, syscall.ENETDOWN:
		return &ScanError{Code: ErrCodeNetUnreach, Message: original.Error(), Err: original}
	case syscall.EHOSTUNREACH:
		return &ScanError{Code: ErrCodeHostUnreach, Message: original.Error(), Err: original}
	case syscall.ETIMEDOUT:
		return &ScanError{Code: ErrCodeTimeout, Message: original.Error(), Err: original}
	default:
		return &ScanError{Code: ErrCodeUnknown, Message: original.Error(), Err: original}
	}
}
