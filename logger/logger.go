// Package logger defines the runtime's structured logging contract and a
// default zap-backed implementation: a small key-value Logger interface
// any structured logging library can satisfy, plus a ready-to-use
// default.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging contract every runtime component takes
// as a constructor dependency. Key-value pairs follow the variadic
// convention used across the pack (slog, zap's SugaredLogger, logrus).
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LineSink is a mutex-guarded io.Writer wrapper ensuring concurrent writers
// never interleave partial lines, the Go analogue of the original
// vaf::OutputSyncStream. It implements zapcore.WriteSyncer.
type LineSink struct {
	mu  sync.Mutex
	out zapcore.WriteSyncer
}

// NewLineSink wraps a WriteSyncer with a mutex. New builds one over
// os.Stderr when it is given a nil sink.
func NewLineSink(out zapcore.WriteSyncer) *LineSink {
	return &LineSink{out: out}
}

func (s *LineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Write(p)
}

func (s *LineSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Sync()
}

// zapLogger adapts zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a default Logger writing leveled, structured lines to sink
// (or stderr if sink is nil) through zap's console encoder.
func New(sink *LineSink, level zapcore.Level) Logger {
	if sink == nil {
		sink = NewLineSink(zapcore.AddSync(os.Stderr))
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), sink, level)
	return &zapLogger{sugar: zap.New(core).Sugar()}
}

func (l *zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

var (
	defaultOnce sync.Once
	defaultLog  Logger
)

// Default returns a process-wide convenience Logger. Components that accept
// a Logger via constructor injection should not need this; it exists for
// leaf packages (like dataptr's fatal-dereference path) with no sane way to
// thread one through.
func Default() Logger {
	defaultOnce.Do(func() {
		defaultLog = New(nil, zapcore.InfoLevel)
	})
	return defaultLog
}

// SetDefault overrides the process-wide convenience Logger, primarily for
// tests that want to capture its output.
func SetDefault(l Logger) {
	defaultLog = l
}
