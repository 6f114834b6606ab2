package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Logger provides leveled, structured logging
// This abstraction allows swapping logging implementations
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	// WithFields returns a logger that appends fields to every entry
	WithFields(fields map[string]interface{}) Logger

	// WithContext returns a logger carrying the request ID found in ctx, if any
	WithContext(ctx context.Context) Logger
}

// defaultLogger writes "[LEVEL] message map[k:v]" lines through the standard log package
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	min         Level
	fields      map[string]interface{}
}

// NewDefaultLogger creates a logger writing errors and warnings to stderr,
// everything else to stdout. Every level is enabled.
func NewDefaultLogger() Logger {
	return NewDefaultLoggerLevel(LevelDebug)
}

// NewDefaultLoggerLevel is NewDefaultLogger dropping entries below min
func NewDefaultLoggerLevel(min Level) Logger {
	return NewDefaultLoggerTo(os.Stdout, os.Stderr, min)
}

// NewDefaultLoggerTo writes errors and warnings to errOut and everything
// else to out, dropping entries below min
func NewDefaultLoggerTo(out, errOut io.Writer, min Level) Logger {
	return &defaultLogger{
		errorLogger: log.New(errOut, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		warnLogger:  log.New(errOut, "[WARN] ", log.LstdFlags|log.Lshortfile),
		infoLogger:  log.New(out, "[INFO] ", log.LstdFlags|log.Lshortfile),
		debugLogger: log.New(out, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
		min:         min,
	}
}

func (l *defaultLogger) output(level Level, target *log.Logger, msg string) {
	if level < l.min {
		return
	}
	if len(l.fields) > 0 {
		msg = fmt.Sprintf("%s %v", msg, l.fields)
	}
	_ = target.Output(3, msg)
}

func (l *defaultLogger) Error(args ...interface{}) {
	l.output(LevelError, l.errorLogger, fmt.Sprint(args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.output(LevelError, l.errorLogger, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warn(args ...interface{}) {
	l.output(LevelWarn, l.warnLogger, fmt.Sprint(args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.output(LevelWarn, l.warnLogger, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Info(args ...interface{}) {
	l.output(LevelInfo, l.infoLogger, fmt.Sprint(args...))
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.output(LevelInfo, l.infoLogger, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(args ...interface{}) {
	l.output(LevelDebug, l.debugLogger, fmt.Sprint(args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.output(LevelDebug, l.debugLogger, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) WithFields(fields map[string]interface{}) Logger {
	clone := *l
	clone.fields = mergeFields(l.fields, fields)
	return &clone
}

func (l *defaultLogger) WithContext(ctx context.Context) Logger {
	if id := GetRequestID(ctx); id != "" {
		return l.WithFields(map[string]interface{}{"request_id": id})
	}
	return l
}

// Level orders log severities
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (lv Level) String() string {
	switch lv {
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

// ParseLevel maps "debug", "info", "warn" or "error" to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// jsonLogger emits one JSON object per entry
type jsonLogger struct {
	out    *log.Logger
	min    Level
	fields map[string]interface{}
}

type jsonEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewJSONLoggerTo creates a JSON logger writing entries at or above min to w
func NewJSONLoggerTo(w io.Writer, min Level) Logger {
	return &jsonLogger{
		out: log.New(w, "", 0),
		min: min,
	}
}

func (l *jsonLogger) write(level Level, msg string) {
	if level < l.min {
		return
	}
	entry := jsonEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
		Fields:    l.fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		// Unencodable field values: fall back to their string form.
		entry.Fields = stringifyFields(l.fields)
		data, _ = json.Marshal(entry)
	}
	_ = l.out.Output(3, string(data))
}

func (l *jsonLogger) Error(args ...interface{}) { l.write(LevelError, fmt.Sprint(args...)) }
func (l *jsonLogger) Errorf(format string, args ...interface{}) {
	l.write(LevelError, fmt.Sprintf(format, args...))
}
func (l *jsonLogger) Warn(args ...interface{}) { l.write(LevelWarn, fmt.Sprint(args...)) }
func (l *jsonLogger) Warnf(format string, args ...interface{}) {
	l.write(LevelWarn, fmt.Sprintf(format, args...))
}
func (l *jsonLogger) Info(args ...interface{}) { l.write(LevelInfo, fmt.Sprint(args...)) }
func (l *jsonLogger) Infof(format string, args ...interface{}) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}
func (l *jsonLogger) Debug(args ...interface{}) { l.write(LevelDebug, fmt.Sprint(args...)) }
func (l *jsonLogger) Debugf(format string, args ...interface{}) {
	l.write(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *jsonLogger) WithFields(fields map[string]interface{}) Logger {
	clone := *l
	clone.fields = mergeFields(l.fields, fields)
	return &clone
}

func (l *jsonLogger) WithContext(ctx context.Context) Logger {
	if id := GetRequestID(ctx); id != "" {
		return l.WithFields(map[string]interface{}{"request_id": id})
	}
	return l
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Error(...interface{}) {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warn(...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) Info(...interface{}) {}
func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Debug(...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
func (n nopLogger) WithFields(map[string]interface{}) Logger { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }

func mergeFields(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func stringifyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = fmt.Sprint(v)
	}
	return out
}
