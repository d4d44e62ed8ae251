// Package logging provides structured logging for archive runs
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zoomarc/zoomarc/internal/config"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

type contextKey string

// RunIDKey is the context key carrying the run identifier.
const RunIDKey contextKey = "run_id"

// NewRunID mints the identifier stamped on every log line of one run.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// WithRunID attaches a run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// Logger defines the interface for logging operations
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})

	DebugWithContext(ctx context.Context, format string, args ...interface{})
	InfoWithContext(ctx context.Context, format string, args ...interface{})
	WarnWithContext(ctx context.Context, format string, args ...interface{})
	ErrorWithContext(ctx context.Context, format string, args ...interface{})

	WithFields(level LogLevel, message string, fields map[string]interface{})

	GetLevel() LogLevel
	SetLevel(level LogLevel)
	SetOutput(w io.Writer)
	Close() error
}

// loggerImpl implements the Logger interface
type loggerImpl struct {
	level      LogLevel
	jsonFormat bool
	writers    []io.Writer
	fileHandle *os.File
}

// logEntry is the wire shape of one JSON log line
type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	RunID     string    `json:"run_id,omitempty"`
}

// NewLogger creates a Logger from the logging configuration
func NewLogger(cfg config.LoggingConfig) (Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := &loggerImpl{
		level:      level,
		jsonFormat: cfg.JSONFormat,
		writers:    []io.Writer{},
	}

	if cfg.Console {
		logger.writers = append(logger.writers, os.Stdout)
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		logger.fileHandle = file
		logger.writers = append(logger.writers, file)
	}

	return logger, nil
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *loggerImpl) log(level LogLevel, ctx context.Context, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC(),
		Level:     strings.ToUpper(level.String()),
		Message:   fmt.Sprintf(format, args...),
	}

	if ctx != nil {
		if runID, ok := ctx.Value(RunIDKey).(string); ok {
			entry.RunID = runID
		}
	}

	l.writeEntry(entry)
}

func (l *loggerImpl) writeEntry(entry logEntry) {
	var output string

	if l.jsonFormat {
		data, _ := json.Marshal(entry)
		output = string(data) + "\n"
	} else {
		timestamp := entry.Timestamp.Format("2006-01-02T15:04:05Z")
		if entry.RunID != "" {
			output = fmt.Sprintf("%s [%s] [%s] %s\n", timestamp, entry.Level, entry.RunID, entry.Message)
		} else {
			output = fmt.Sprintf("%s [%s] %s\n", timestamp, entry.Level, entry.Message)
		}
	}

	for _, writer := range l.writers {
		writer.Write([]byte(output))
	}
}

// WithFields logs a message with structured key/value fields attached
func (l *loggerImpl) WithFields(level LogLevel, message string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	timestamp := time.Now().UTC()
	levelStr := strings.ToUpper(level.String())

	var output string
	if l.jsonFormat {
		entryMap := map[string]interface{}{
			"timestamp": timestamp,
			"level":     levelStr,
			"message":   message,
		}
		for key, value := range fields {
			entryMap[key] = value
		}
		data, _ := json.Marshal(entryMap)
		output = string(data) + "\n"
	} else {
		fieldStr := ""
		if len(fields) > 0 {
			var pairs []string
			for key, value := range fields {
				pairs = append(pairs, fmt.Sprintf("%s=%v", key, value))
			}
			fieldStr = " " + strings.Join(pairs, " ")
		}
		output = fmt.Sprintf("%s [%s] %s%s\n", timestamp.Format("2006-01-02T15:04:05Z"), levelStr, message, fieldStr)
	}

	for _, writer := range l.writers {
		writer.Write([]byte(output))
	}
}

// Debug logs a debug message
func (l *loggerImpl) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, nil, format, args...)
}

// Info logs an info message
func (l *loggerImpl) Info(format string, args ...interface{}) {
	l.log(InfoLevel, nil, format, args...)
}

// Warn logs a warning message
func (l *loggerImpl) Warn(format string, args ...interface{}) {
	l.log(WarnLevel, nil, format, args...)
}

// Error logs an error message
func (l *loggerImpl) Error(format string, args ...interface{}) {
	l.log(ErrorLevel, nil, format, args...)
}

// DebugWithContext logs a debug message with context
func (l *loggerImpl) DebugWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(DebugLevel, ctx, format, args...)
}

// InfoWithContext logs an info message with context
func (l *loggerImpl) InfoWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(InfoLevel, ctx, format, args...)
}

// WarnWithContext logs a warning message with context
func (l *loggerImpl) WarnWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(WarnLevel, ctx, format, args...)
}

// ErrorWithContext logs an error message with context
func (l *loggerImpl) ErrorWithContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ErrorLevel, ctx, format, args...)
}

// GetLevel returns the current log level
func (l *loggerImpl) GetLevel() LogLevel {
	return l.level
}

// SetLevel changes the log level
func (l *loggerImpl) SetLevel(level LogLevel) {
	l.level = level
}

// SetOutput replaces all writers with the given one
func (l *loggerImpl) SetOutput(w io.Writer) {
	l.writers = []io.Writer{w}
}

// Close releases the log file handle if one is open
func (l *loggerImpl) Close() error {
	if l.fileHandle != nil {
		return l.fileHandle.Close()
	}
	return nil
}
