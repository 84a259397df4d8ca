// Package logger provides the leveled logger shared by every flightfeed component.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level is a logging severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// Logger writes printf-style messages at or above a configured level.
type Logger struct {
	level       Level
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// New creates a logger writing info/debug to stdout and warn/error to stderr.
// Unknown level names fall back to info.
func New(level string) *Logger {
	return NewWithWriters(level, os.Stdout, os.Stderr)
}

// NewWithWriters creates a logger with explicit output streams.
func NewWithWriters(level string, out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		level:       ParseLevel(level),
		debugLogger: log.New(out, "[DEBUG] ", flags),
		infoLogger:  log.New(out, "[INFO] ", flags),
		warnLogger:  log.New(errOut, "[WARN] ", flags),
		errorLogger: log.New(errOut, "[ERROR] ", flags),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewWithWriters("error", io.Discard, io.Discard)
}

// ParseLevel maps a level name (case-insensitive) to a Level.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// ValidLevel reports whether level is one of the recognised names.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.level
}

func (l *Logger) output(level Level, logger *log.Logger, format string, v ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	logger.Output(3, fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.output(DEBUG, l.debugLogger, format, v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.output(INFO, l.infoLogger, format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.output(WARN, l.warnLogger, format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.output(ERROR, l.errorLogger, format, v...)
}
