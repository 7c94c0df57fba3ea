package logger

import (
	"strings"
	"sync"
)

// Log levels accepted in config.yml (log_level).
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output formats accepted in config.yml (log_format).
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call decides level and format;
// later calls return the same instance regardless of the arguments.
func Get(level, format string) *Logger {
	once.Do(func() {
		globalLogger = New(level, format)
	})
	return globalLogger
}

// New builds an independent logger, e.g. for a component that wants its own level.
func New(level, format string) *Logger {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return newZapLogger(norm(level), norm(format))
}

// Named returns a child logger tagged with a component name and optional key/value context.
func (l *Logger) Named(component string, kv ...interface{}) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component).With(kv...)}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}
