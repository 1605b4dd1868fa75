// Package notify delivers payment lifecycle notifications. The sink is
// a display collaborator: the portal only tells it to create, update, or
// resolve a notification keyed by a correlation id.
package notify

import (
	"context"

	"portal-svc/middleware"

	"go.uber.org/zap"
)

type Sink interface {
	// Create starts a new notification under the correlation id.
	Create(ctx context.Context, correlationID, message, description string)
	// Update replaces the notification's content in place.
	Update(ctx context.Context, correlationID, message, description string)
	// Resolve finishes the notification as a success or an error. The
	// caller guarantees exactly one Resolve per correlation id.
	Resolve(ctx context.Context, correlationID string, success bool, message, description string)
}

// LogSink renders notifications into the service log. It is the fallback
// when no notification broker is configured, and the sink of choice in
// tests.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Create(ctx context.Context, correlationID, message, description string) {
	middleware.RecordNotificationSent("create")
	s.logger.Info("Notification created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("correlation_id", correlationID),
		zap.String("message", message),
		zap.String("description", description),
	)
}

func (s *LogSink) Update(ctx context.Context, correlationID, message, description string) {
	middleware.RecordNotificationSent("update")
	s.logger.Info("Notification updated",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("correlation_id", correlationID),
		zap.String("message", message),
		zap.String("description", description),
	)
}

func (s *LogSink) Resolve(ctx context.Context, correlationID string, success bool, message, description string) {
	if success {
		middleware.RecordNotificationSent("resolve_success")
		s.logger.Info("Notification resolved",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.String("correlation_id", correlationID),
			zap.String("message", message),
			zap.String("description", description),
		)
		return
	}
	middleware.RecordNotificationSent("resolve_error")
	s.logger.Warn("Notification resolved with error",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("correlation_id", correlationID),
		zap.String("message", message),
		zap.String("description", description),
	)
}
