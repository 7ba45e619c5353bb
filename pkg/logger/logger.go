package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes structured logs through zerolog. Warn and error lines are
// also handed to the collector when one is attached.
type Logger struct {
	zl   zerolog.Logger
	sink *sink
}

// sink is shared by a logger and every child made with With, so attaching
// or removing a collector affects all of them.
type sink struct {
	mu        sync.RWMutex
	collector *LogCollector
}

type Config struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
	Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"` // stdout, stderr, or file path
	TimeFormat string `yaml:"time_format"`
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}
	return NewWithWriter(out), nil
}

// NewWithWriter builds a JSON logger on w. Tests use it to capture output.
func NewWithWriter(w io.Writer) *Logger {
	zl := zerolog.New(w).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()
	return &Logger{zl: zl, sink: &sink{}}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), sink: &sink{}}
}

// With returns a child logger that always carries fields.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		if f.Value != nil {
			ctx = ctx.Interface(f.Key, f.Value)
		}
	}
	return &Logger{zl: ctx.Logger(), sink: l.sink}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(l.zl.Debug(), msg, fields) }

func (l *Logger) Info(msg string, fields ...Field) { l.write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.write(l.zl.Warn(), msg, fields)
	l.collect("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.write(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) write(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

func (l *Logger) collect(level, msg string, fields []Field) {
	l.sink.mu.RLock()
	c := l.sink.collector
	l.sink.mu.RUnlock()
	if c == nil {
		return
	}

	// collect -> Warn/Error -> caller
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.LastIndex(file, "FinProfile/"); i >= 0 {
			file = file[i+len("FinProfile/"):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if f.Value != nil {
			m[f.Key] = f.Value
		}
	}
	c.AddLog(level, msg, m, caller)
}

// AddCollector starts aggregating warn and error logs, replacing any
// collector already attached.
func (l *Logger) AddCollector(config *CollectionConfig) {
	next := NewLogCollector(config)
	l.sink.mu.Lock()
	prev := l.sink.collector
	l.sink.collector = next
	l.sink.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// RemoveCollector detaches the collector and flushes what it holds.
func (l *Logger) RemoveCollector() {
	l.sink.mu.Lock()
	prev := l.sink.collector
	l.sink.collector = nil
	l.sink.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Field is a typed key/value attached to a log line. Value is what the
// collector and With record; apply writes it to an event.
type Field struct {
	Key   string
	Value interface{}
	apply func(*zerolog.Event)
}

func String(key, v string) Field {
	return Field{Key: key, Value: v, apply: func(e *zerolog.Event) { e.Str(key, v) }}
}

func Strings(key string, v []string) Field { return String(key, strings.Join(v, ", ")) }

func Int(key string, v int) Field {
	return Field{Key: key, Value: v, apply: func(e *zerolog.Event) { e.Int(key, v) }}
}

func Int64(key string, v int64) Field {
	return Field{Key: key, Value: v, apply: func(e *zerolog.Event) { e.Int64(key, v) }}
}

func Float64(key string, v float64) Field {
	return Field{Key: key, Value: v, apply: func(e *zerolog.Event) { e.Float64(key, v) }}
}

func Bool(key string, v bool) Field {
	return Field{Key: key, Value: v, apply: func(e *zerolog.Event) { e.Bool(key, v) }}
}

func Time(key string, v time.Time) Field {
	return Field{Key: key, Value: v, apply: func(e *zerolog.Event) { e.Time(key, v) }}
}

// Duration is logged in milliseconds.
func Duration(key string, v time.Duration) Field { return Int64(key, v.Milliseconds()) }

// Error logs err under "error". A nil error adds nothing.
func Error(err error) Field {
	f := Field{Key: "error", apply: func(e *zerolog.Event) { e.Err(err) }}
	if err != nil {
		f.Value = err.Error()
	}
	return f
}

func Any(key string, v interface{}) Field {
	return Field{Key: key, Value: v, apply: func(e *zerolog.Event) { e.Interface(key, v) }}
}
