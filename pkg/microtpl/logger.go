package microtpl

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel orders log severities; a logger drops entries below its level.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
	LogOff
)

var levelNames = [...]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogWarn:  "WARN",
	LogError: "ERROR",
	LogOff:   "OFF",
}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel maps a configuration string to a level. Unknown values
// fall back to info.
func ParseLogLevel(s string) LogLevel {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return LogWarn
	}
	for level, name := range levelNames {
		if name == s {
			return LogLevel(level)
		}
	}
	return LogInfo
}

// Fields are key/value pairs appended to every line of a logger.
type Fields map[string]interface{}

// Logger writes leveled lines with sorted key=value fields. Loggers derived
// through WithField share the writer, level and lock of their parent.
type Logger struct {
	sink   *logSink
	fields Fields
}

type logSink struct {
	mu    sync.Mutex
	out   io.Writer
	level LogLevel
}

// NewLogger returns a logger writing to w; a nil w discards output.
func NewLogger(w io.Writer, level LogLevel) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{sink: &logSink{out: w, level: level}}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

func (l *Logger) Level() LogLevel {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

// IsDebugMode reports whether debug entries are written. Callers check it
// before building expensive fields.
func (l *Logger) IsDebugMode() bool {
	return l.Level() <= LogDebug
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for _, src := range []Fields{l.fields, fields} {
		for k, v := range src {
			merged[k] = v
		}
	}
	return &Logger{sink: l.sink, fields: merged}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.write(LogDebug, format, args) }
func (l *Logger) Info(format string, args ...interface{})  { l.write(LogInfo, format, args) }
func (l *Logger) Warn(format string, args ...interface{})  { l.write(LogWarn, format, args) }
func (l *Logger) Error(format string, args ...interface{}) { l.write(LogError, format, args) }

func (l *Logger) write(level LogLevel, format string, args []interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if level < l.sink.level {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] ", time.Now().Format("2006-01-02 15:04:05"), level)
	fmt.Fprintf(&b, format, args...)

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
	}
	b.WriteByte('\n')

	io.WriteString(l.sink.out, b.String())
}

var (
	logMu      sync.RWMutex
	logDefault *Logger
	logOnce    sync.Once
)

// GetLogger returns the package logger. It writes to stderr at the level of
// the global configuration until SetLogger replaces it.
func GetLogger() *Logger {
	logOnce.Do(func() {
		l := NewLogger(os.Stderr, ParseLogLevel(GetGlobalConfig().LogLevel))
		logMu.Lock()
		if logDefault == nil {
			logDefault = l
		}
		logMu.Unlock()
	})
	logMu.RLock()
	defer logMu.RUnlock()
	return logDefault
}

func SetLogger(logger *Logger) {
	GetLogger()
	logMu.Lock()
	logDefault = logger
	logMu.Unlock()
}

func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

func WithFields(fields Fields) *Logger {
	return GetLogger().WithFields(fields)
}

// UpdateLoggerFromConfig applies the global configuration's log level to
// the package logger.
func UpdateLoggerFromConfig() {
	GetLogger().SetLevel(ParseLogLevel(GetGlobalConfig().LogLevel))
}
