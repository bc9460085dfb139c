package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// StructuredLogger is a console core.Logger: text or JSON lines to an
// io.Writer (os.Stdout by default), gated by a minimum level, with
// persistent fields accumulated through WithComponent. Grounded on
// gomind's own ProductionLogger (core/config.go) convention of a
// dependency-free logger every component can construct without pulling
// in a third-party logging library, scaled to this package's doc'd
// map[string]interface{} contract instead of gomind's variadic one.
type StructuredLogger struct {
	mu     sync.Mutex
	level  LogLevel
	json   bool
	out    *os.File
	fields map[string]interface{}
}

// NewStructuredLogger builds a logger reading LOG_LEVEL ("debug",
// "info", "warn", "error") and LOG_FORMAT ("json", "text") from the
// environment, defaulting to info/text.
func NewStructuredLogger() *StructuredLogger {
	format := os.Getenv("LOG_FORMAT")
	return &StructuredLogger{
		level: parseLevel(GetLogLevel()),
		json:  format == "json",
		out:   os.Stdout,
	}
}

// NewDefaultLogger returns a Logger for callers that only need the
// core.Logger contract and don't care about the concrete type.
func NewDefaultLogger() Logger {
	return NewStructuredLogger()
}

func (l *StructuredLogger) Info(msg string, fields map[string]interface{}) {
	l.emit(InfoLevel, msg, fields)
}
func (l *StructuredLogger) Error(msg string, fields map[string]interface{}) {
	l.emit(ErrorLevel, msg, fields)
}
func (l *StructuredLogger) Warn(msg string, fields map[string]interface{}) {
	l.emit(WarnLevel, msg, fields)
}
func (l *StructuredLogger) Debug(msg string, fields map[string]interface{}) {
	l.emit(DebugLevel, msg, fields)
}

func (l *StructuredLogger) InfoWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.emit(InfoLevel, msg, fields)
}
func (l *StructuredLogger) ErrorWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.emit(ErrorLevel, msg, fields)
}
func (l *StructuredLogger) WarnWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.emit(WarnLevel, msg, fields)
}
func (l *StructuredLogger) DebugWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.emit(DebugLevel, msg, fields)
}

// WithComponent returns a logger that prefixes every line with a
// "component" field, satisfying core.ComponentAwareLogger so the same
// logger instance can be threaded through every package while its log
// lines still carry their origin (e.g. "protocol/runner").
func (l *StructuredLogger) WithComponent(component string) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		merged[k] = v
	}
	merged["component"] = component
	return &StructuredLogger{level: l.level, json: l.json, out: l.out, fields: merged}
}

// SetLevel changes the minimum level a line must meet to be emitted.
func (l *StructuredLogger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = parseLevel(level)
}

func (l *StructuredLogger) emit(level LogLevel, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	if l.json {
		l.writeJSON(level, msg, merged)
		return
	}
	l.writeText(level, msg, merged)
}

func (l *StructuredLogger) writeJSON(level LogLevel, msg string, fields map[string]interface{}) {
	line := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level.String(),
		"msg":   msg,
	}
	for k, v := range fields {
		line[k] = v
	}
	body, err := json.Marshal(line)
	if err != nil {
		fmt.Fprintf(l.out, "{\"level\":\"ERROR\",\"msg\":%q}\n", "logger: marshal failed: "+err.Error())
		return
	}
	fmt.Fprintln(l.out, string(body))
}

func (l *StructuredLogger) writeText(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339))
	b.WriteString(" [" + level.String() + "] ")
	b.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	fmt.Fprintln(l.out, b.String())
}

// GetLogLevel reads LOG_LEVEL from the environment, defaulting to
// "info" when unset.
func GetLogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
