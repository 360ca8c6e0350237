// Package trace provides the optional logging hook used by the AST builder
// and the code generator. Nothing is logged unless a Logger is configured.
package trace

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Logger receives one trace line per call. Values are joined with spaces.
type Logger interface {
	LogLine(values ...any)
}

type prefixLogger struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

// PrefixLogger returns a logger that writes lines to w prefixed by prefix,
// e.g. "[TRACE] ". It is safe for concurrent use.
func PrefixLogger(w io.Writer, prefix string) Logger {
	return &prefixLogger{w: w, prefix: prefix}
}

func (l *prefixLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, l.prefix+joinValues(values))
}

// BufferedLogger keeps every line in memory. Tests use it to assert on the
// stages a transpilation went through.
type BufferedLogger struct {
	mu    sync.Mutex
	lines []string
}

// NewBufferedLogger creates an empty BufferedLogger.
func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{}
}

func (l *BufferedLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, joinValues(values))
}

// String returns the captured lines, each terminated by a newline.
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sb strings.Builder
	for _, line := range l.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Lines returns a copy of the captured lines.
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Reset drops everything captured so far.
func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
}

type nullLogger struct{}

func (nullLogger) LogLine(values ...any) {}

// NullLogger returns a logger that discards all output.
func NullLogger() Logger {
	return nullLogger{}
}

// OrNull returns l, or a NullLogger when l is nil.
func OrNull(l Logger) Logger {
	if l == nil {
		return NullLogger()
	}
	return l
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
