// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package log is a small logging facade so sweep can be embedded in hosts
// that bring their own logger. The defaults write to the standard library
// logger; hosts replace the function fields via SetLogger.
package log

import (
	"fmt"
	stdlog "log"
	"sync/atomic"
)

// Level is a log severity. Higher levels are more verbose.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// ParseLevel converts a lowercase level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "error":
		return LevelError, nil
	case "warn":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

var level atomic.Int32

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel sets the maximum severity that gets emitted.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// GetLevel returns the current maximum severity.
func GetLevel() Level {
	return Level(level.Load())
}

// Logger holds the pluggable logging functions.
type Logger struct {
	Tracef func(format string, args ...interface{})
	Debugf func(format string, args ...interface{})
	Infof  func(format string, args ...interface{})
	Warnf  func(format string, args ...interface{})
	Errorf func(format string, args ...interface{})
}

var logger = Logger{
	Tracef: defaultPrintf("[TRACE] "),
	Debugf: defaultPrintf("[DEBUG] "),
	Infof:  defaultPrintf("[INFO] "),
	Warnf:  defaultPrintf("[WARN] "),
	Errorf: defaultPrintf("[ERROR] "),
}

// SetLogger replaces the logging functions. Nil fields silence that level.
func SetLogger(l Logger) {
	logger = l
}

func Tracef(format string, args ...interface{}) {
	if GetLevel() >= LevelTrace && logger.Tracef != nil {
		logger.Tracef(format, args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if GetLevel() >= LevelDebug && logger.Debugf != nil {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if GetLevel() >= LevelInfo && logger.Infof != nil {
		logger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if GetLevel() >= LevelWarn && logger.Warnf != nil {
		logger.Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if GetLevel() >= LevelError && logger.Errorf != nil {
		logger.Errorf(format, args...)
	}
}

func defaultPrintf(prefix string) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		stdlog.Printf(prefix+format, args...)
	}
}
