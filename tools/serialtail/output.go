package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"kconsole/kernel/klog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives the records that pass the filters.
type Sink interface {
	Emit(rec Record) error
	Sync() error
}

// Filter drops records above maxLevel and, if noRaw is set, raw records.
type Filter struct {
	MaxLevel klog.Level
	NoRaw    bool
}

// Allow reports whether rec should be emitted.
func (f Filter) Allow(rec Record) bool {
	if rec.Level == levelRaw {
		return !f.NoRaw
	}
	return rec.Level <= f.MaxLevel
}

// textSink writes "LEVEL message" lines.
type textSink struct {
	w          io.Writer
	timestamps bool
	now        func() time.Time
}

func newTextSink(w io.Writer, timestamps bool) *textSink {
	return &textSink{w: w, timestamps: timestamps, now: time.Now}
}

func (s *textSink) Emit(rec Record) error {
	var prefix string
	if s.timestamps {
		prefix = s.now().Format(time.RFC3339Nano) + " "
	}

	_, err := fmt.Fprintf(s.w, "%s%-5s %s\n", prefix, strings.ToUpper(rec.LevelName()), rec.Message)
	return err
}

func (s *textSink) Sync() error { return nil }

// jsonSink writes one zap JSON entry per record. The kernel level is kept in
// the "klevel" field since zap has no trace level.
type jsonSink struct {
	logger *zap.Logger
}

func newJSONSink(w io.Writer, timestamps bool) *jsonSink {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.MessageKey = "msg"
	if timestamps {
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	} else {
		encCfg.TimeKey = zapcore.OmitKey
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel)
	return &jsonSink{logger: zap.New(core)}
}

func zapLevel(level klog.Level) zapcore.Level {
	switch level {
	case klog.LevelError:
		return zapcore.ErrorLevel
	case klog.LevelWarn:
		return zapcore.WarnLevel
	case klog.LevelDebug, klog.LevelTrace:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (s *jsonSink) Emit(rec Record) error {
	if ce := s.logger.Check(zapLevel(rec.Level), rec.Message); ce != nil {
		ce.Write(zap.String("klevel", rec.LevelName()))
	}
	return nil
}

func (s *jsonSink) Sync() error { return s.logger.Sync() }
