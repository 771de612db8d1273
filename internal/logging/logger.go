package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds the structured logger used across the service.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// WithOperation enriches the logger with the operation name and, when known,
// the identifier of the record or request being worked on.
func WithOperation(logger *zap.Logger, operation, id string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if id != "" {
		fields = append(fields, zap.String("id", id))
	}
	return logger.With(fields...)
}
