package monitoring

import "go.uber.org/zap"

// Sink receives operational metrics and errors from pipeline components.
// Implementations must be fire-and-forget: they never block the caller and
// never return an error.
type Sink interface {
	RecordMetric(name string, value float64, labels map[string]string)
	LogError(message, errorType, component string, context map[string]any)
}

// ZapSink emits metrics and errors through a zap logger.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink wraps the given logger; a nil logger yields a no-op zap core.
func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapSink{log: log}
}

func (s *ZapSink) RecordMetric(name string, value float64, labels map[string]string) {
	fields := make([]zap.Field, 0, len(labels)+2)
	fields = append(fields, zap.String("metric", name), zap.Float64("value", value))
	for k, v := range labels {
		fields = append(fields, zap.String(k, v))
	}
	s.log.Debug("metric recorded", fields...)
}

func (s *ZapSink) LogError(message, errorType, component string, context map[string]any) {
	fields := []zap.Field{
		zap.String("error_type", errorType),
		zap.String("component", component),
	}
	if len(context) > 0 {
		fields = append(fields, zap.Any("context", context))
	}
	s.log.Error(message, fields...)
}

// Nop discards everything; used in tests and as the default sink.
type Nop struct{}

func (Nop) RecordMetric(string, float64, map[string]string) {}
func (Nop) LogError(string, string, string, map[string]any) {}

// Ensure returns a usable sink even when the caller passed nil.
func Ensure(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}
