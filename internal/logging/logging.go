// File: internal/logging/logging.go
// Package logging provides the structured logger factory for hioload-relay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

// NewLogger creates a structured logger writing to stderr.
// Supported levels: debug, info, warn, error. Supported formats: text, json.
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	return slog.New(newHandler(format, w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewDynamicLogger creates a logger whose level follows lv, so it can be
// changed on a running process.
func NewDynamicLogger(lv *slog.LevelVar, format string, w io.Writer) *slog.Logger {
	return slog.New(newHandler(format, w, &slog.HandlerOptions{Level: lv}))
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level is one ParseLevel recognizes.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// ValidFormat reports whether format is text or json.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	}
	return false
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LogPanic records a recovered panic value with its stack.
func LogPanic(logger *slog.Logger, goroutine string, r any) {
	logger.Error("panic recovered",
		KeyGoroutine, goroutine,
		KeyPanic, fmt.Sprint(r),
		KeyStack, string(debug.Stack()))
}

// Common attribute keys for consistent logging.
const (
	KeyComponent = "component"
	KeyTransport = "transport"
	KeyPump      = "pump"
	KeyPort      = "port"
	KeyLocalAddr = "local_addr"
	KeyRemote    = "remote_addr"
	KeySession   = "session_id"
	KeyReason    = "reason"
	KeyCPU       = "cpu"
	KeyError     = "error"
	KeyCount     = "count"
	KeyGoroutine = "goroutine"
	KeyPanic     = "panic"
	KeyStack     = "stack"
)
