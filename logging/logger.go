// Package logging provides the structured audit log for support access.
// Every committed audit trail entry and every refused verification is
// mirrored here as a JSON line so that log pipelines see the same history
// the request records hold.
package logging

import (
	"encoding/json"
	"io"
	"sync"
)

// Logger defines the interface for emitting support access audit events.
type Logger interface {
	// LogSupportAccess logs a support access lifecycle or verification event.
	LogSupportAccess(entry SupportAccessLogEntry)
}

// JSONLogger implements Logger with JSON Lines output.
// Each entry is written as a single line of JSON suitable for log aggregation.
type JSONLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewJSONLogger creates a new JSONLogger that writes to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{writer: w}
}

// LogSupportAccess writes the entry as a single line of JSON.
func (l *JSONLogger) LogSupportAccess(entry SupportAccessLogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Write(append(data, '\n'))
}

// NopLogger implements Logger but discards all entries.
type NopLogger struct{}

// NewNopLogger creates a new NopLogger that discards all entries.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// LogSupportAccess discards the entry.
func (l *NopLogger) LogSupportAccess(entry SupportAccessLogEntry) {}

// MultiLogger fans each entry out to every wrapped logger in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	var filtered []Logger
	for _, l := range loggers {
		if l != nil {
			filtered = append(filtered, l)
		}
	}
	return &MultiLogger{loggers: filtered}
}

// LogSupportAccess forwards the entry to every wrapped logger.
func (m *MultiLogger) LogSupportAccess(entry SupportAccessLogEntry) {
	for _, l := range m.loggers {
		l.LogSupportAccess(entry)
	}
}
