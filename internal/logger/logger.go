// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Niseyuki - FFmpeg 字幕压制编码核心

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Level is the lowest severity a logger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

type defaultLogger struct {
	prefix string
	level  Level
	out    *log.Logger
}

// New logs at info level through the standard logger.
func New(prefix string) Logger {
	return &defaultLogger{prefix: prefix, level: LevelInfo, out: log.Default()}
}

// NewWithLevel writes to w, dropping records below level.
func NewWithLevel(prefix string, level Level, w io.Writer) Logger {
	return &defaultLogger{
		prefix: prefix,
		level:  level,
		out:    log.New(w, "", log.LstdFlags),
	}
}

// OpenFile opens path for appending, to be combined with stderr as a sink.
func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func (l *defaultLogger) logf(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.out.Printf("["+level.String()+"] "+l.prefix+format, args...)
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

type nopLogger struct{}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Warn(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
func (nopLogger) Debug(format string, args ...interface{}) {}
