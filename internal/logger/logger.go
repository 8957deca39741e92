// Package logger provides leveled printf-style logging on top of the standard
// log package. A package-level default logger keeps call sites terse; tests
// can redirect output with SetOutput.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents a logging severity
type Level int32

const (
	// DebugLevel logs are voluminous and usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs need attention but not individual review.
	WarnLevel
	// ErrorLevel logs indicate a failed operation.
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

var (
	level atomic.Int32
	out   = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

// Init configures the default logger. Format "text" adds caller file:line;
// any other format keeps plain timestamped lines.
func Init(levelStr, format string) {
	level.Store(int32(ParseLevel(levelStr)))

	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	out.SetFlags(flags)
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	out.SetOutput(w)
}

func emit(l Level, format string, args ...any) {
	if Level(level.Load()) > l {
		return
	}
	_ = out.Output(3, fmt.Sprintf("["+l.String()+"] "+format, args...))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...any) { emit(DebugLevel, format, args...) }

// Info logs a message at InfoLevel
func Info(format string, args ...any) { emit(InfoLevel, format, args...) }

// Warn logs a message at WarnLevel
func Warn(format string, args ...any) { emit(WarnLevel, format, args...) }

// Error logs a message at ErrorLevel
func Error(format string, args ...any) { emit(ErrorLevel, format, args...) }

// Fatal logs a message and exits.
func Fatal(format string, args ...any) {
	_ = out.Output(2, fmt.Sprintf("[FATAL] "+format, args...))
	os.Exit(1)
}
