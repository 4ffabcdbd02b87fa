// Package logger provides the leveled logging used throughout stationcast.
// It wraps the standard `log` package and drops messages below the configured level.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel is a type representing the logging level.
type LogLevel int32

const (
	// LevelDebug is used for per-row and per-partition diagnostics.
	LevelDebug LogLevel = iota
	// LevelInfo is used for step progress and run summaries.
	LevelInfo
	// LevelWarn is used for recoverable data problems (dropped rows, empty partitions).
	LevelWarn
	// LevelError is used for step and job failures.
	LevelError
	// LevelFatal is used right before the process exits.
	LevelFatal
)

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

// logLevel holds the current threshold. Messages below it are discarded.
var logLevel atomic.Int32

func init() {
	logLevel.Store(int32(LevelInfo))
}

// ParseLevel converts a level name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL") into a LogLevel.
// "TRACE" is accepted as an alias of DEBUG. The second return value is false for unknown names.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL", "SILENT":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// SetLogLevel sets the global log level.
// An unknown value falls back to INFO and reports the fallback on standard output.
func SetLogLevel(level string) {
	lvl, ok := ParseLevel(level)
	if !ok {
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
	}
	logLevel.Store(int32(lvl))
}

// Level returns the current global log level.
func Level() LogLevel {
	return LogLevel(logLevel.Load())
}

// IsDebugEnabled reports whether DEBUG messages are currently emitted.
// Callers use it to skip building expensive debug output.
func IsDebugEnabled() bool {
	return Level() <= LevelDebug
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func logf(level LogLevel, format string, v ...interface{}) {
	if Level() > level {
		return
	}
	log.Printf("["+level.String()+"] "+format, v...)
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	logf(LevelDebug, format, v...)
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	logf(LevelInfo, format, v...)
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	logf(LevelWarn, format, v...)
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	logf(LevelError, format, v...)
}

// Fatalf outputs a FATAL level log message and terminates the process with os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
