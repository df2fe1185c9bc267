// Package zlog adapts internal/logging.Logger onto github.com/rs/zerolog,
// following the field-mapping idiom of the teacher's logiface-zerolog
// backend: each structured Field is translated to the most specific zerolog
// typed setter available, falling back to Interface for anything else.
package zlog

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
)

// Logger implements logging.Logger on top of a zerolog.Logger.
type Logger struct {
	zl     zerolog.Logger
	fields []logging.Field
}

// New constructs a zlog.Logger writing to w. level sets the minimum level
// passed through to zerolog; records below it are dropped before any field
// work happens.
func New(w io.Writer, level logging.Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(w).With().Timestamp().Logger().Level(toZerolog(level))
	return &Logger{zl: zl}
}

func toZerolog(l logging.Level) zerolog.Level {
	switch l {
	case logging.LevelTrace:
		return zerolog.TraceLevel
	case logging.LevelInfo:
		return zerolog.InfoLevel
	case logging.LevelNotice:
		return zerolog.InfoLevel
	case logging.LevelWarning:
		return zerolog.WarnLevel
	case logging.LevelError:
		return zerolog.ErrorLevel
	case logging.LevelCritical:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Enabled implements logging.Logger.
func (l *Logger) Enabled(level logging.Level) bool {
	return l.zl.GetLevel() <= toZerolog(level)
}

// With implements logging.Logger.
func (l *Logger) With(fields ...logging.Field) logging.Logger {
	return &Logger{zl: l.zl, fields: append(append([]logging.Field(nil), l.fields...), fields...)}
}

// Log implements logging.Logger.
func (l *Logger) Log(level logging.Level, msg string, fields ...logging.Field) {
	if !l.Enabled(level) {
		return
	}
	ev := l.zl.WithLevel(toZerolog(level))
	for _, f := range append(l.fields, fields...) {
		ev = applyField(ev, f)
	}
	ev.Msg(msg)
}

func applyField(ev *zerolog.Event, f logging.Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return ev.Str(f.Key, v)
	case int:
		return ev.Int(f.Key, v)
	case int32:
		return ev.Int32(f.Key, v)
	case int64:
		return ev.Int64(f.Key, v)
	case uint32:
		return ev.Uint32(f.Key, v)
	case uint64:
		return ev.Uint64(f.Key, v)
	case float64:
		return ev.Float64(f.Key, v)
	case bool:
		return ev.Bool(f.Key, v)
	case time.Duration:
		return ev.Dur(f.Key, v)
	case time.Time:
		return ev.Time(f.Key, v)
	case error:
		return ev.AnErr(f.Key, v)
	default:
		return ev.Interface(f.Key, v)
	}
}
