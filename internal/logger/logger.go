package logger

import (
	"os"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface components depend on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// S is the package-level sugared logger available after Init.
var S *zap.SugaredLogger

// Init builds a zap SugaredLogger using settings from config.
func Init(cfg *config.Config) (Logger, error) {
	var level zapcore.Level
	switch cfg.LogLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	S = logger.Sugar()
	return &zapObjLogger{base: logger}, nil
}

// Close flushes any buffered loggers.
func Close() error {
	if S == nil {
		return nil
	}
	return S.Sync()
}

// zapObjLogger logs the given object as a single structured field named `key`.
type zapObjLogger struct {
	base *zap.Logger
}

func (l *zapObjLogger) InfoObj(msg, key string, obj interface{}) {
	l.base.Info(msg, zap.Any(key, obj))
}

func (l *zapObjLogger) DebugObj(msg, key string, obj interface{}) {
	l.base.Debug(msg, zap.Any(key, obj))
}

func (l *zapObjLogger) WarnObj(msg, key string, obj interface{}) {
	l.base.Warn(msg, zap.Any(key, obj))
}

func (l *zapObjLogger) ErrorObj(msg, key string, obj interface{}) {
	l.base.Error(msg, zap.Any(key, obj))
}

// Package-level helpers mirroring the Logger interface for call sites that
// do not carry an injected logger.
func InfoObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Info(msg, zap.Any(key, obj))
}

func DebugObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Debug(msg, zap.Any(key, obj))
}

func WarnObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Warn(msg, zap.Any(key, obj))
}

func ErrorObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Error(msg, zap.Any(key, obj))
}

// NopLogger discards all log output.
type NopLogger struct{}

func (*NopLogger) InfoObj(string, string, interface{})  {}
func (*NopLogger) DebugObj(string, string, interface{}) {}
func (*NopLogger) WarnObj(string, string, interface{})  {}
func (*NopLogger) ErrorObj(string, string, interface{}) {}
