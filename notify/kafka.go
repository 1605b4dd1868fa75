package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"portal-svc/middleware"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// NotificationEvent is the wire shape published for a notification
// service to render.
type NotificationEvent struct {
	CorrelationID string `json:"correlation_id"`
	EventType     string `json:"event_type"` // notification_create, notification_update, notification_resolve
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Description   string `json:"description"`
}

func InitProducer(logger *zap.Logger) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	brokers := []string{getEnv("KAFKA_BROKER", "localhost:9092")}

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized")
	return producer, nil
}

// KafkaSink publishes notification lifecycle events to a topic; the
// notification service consumes them and handles display. Publish
// failures are logged and dropped, notifications must never block a
// payment.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewKafkaSink(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func (s *KafkaSink) Create(ctx context.Context, correlationID, message, description string) {
	middleware.RecordNotificationSent("create")
	s.publish(ctx, NotificationEvent{
		CorrelationID: correlationID,
		EventType:     "notification_create",
		Message:       message,
		Description:   description,
	})
}

func (s *KafkaSink) Update(ctx context.Context, correlationID, message, description string) {
	middleware.RecordNotificationSent("update")
	s.publish(ctx, NotificationEvent{
		CorrelationID: correlationID,
		EventType:     "notification_update",
		Message:       message,
		Description:   description,
	})
}

func (s *KafkaSink) Resolve(ctx context.Context, correlationID string, success bool, message, description string) {
	if success {
		middleware.RecordNotificationSent("resolve_success")
	} else {
		middleware.RecordNotificationSent("resolve_error")
	}
	s.publish(ctx, NotificationEvent{
		CorrelationID: correlationID,
		EventType:     "notification_resolve",
		Success:       success,
		Message:       message,
		Description:   description,
	})
}

func (s *KafkaSink) publish(ctx context.Context, event NotificationEvent) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal notification event", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.CorrelationID),
		Value: sarama.StringEncoder(eventJSON),
	}

	// Inject trace context into Kafka message headers
	propagator := otel.GetTextMapPropagator()
	carrier := make(saramaHeaderCarrier, 0)
	propagator.Inject(ctx, &carrier)
	msg.Headers = []sarama.RecordHeader(carrier)

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		s.logger.Error("Failed to publish notification event",
			zap.String("correlation_id", event.CorrelationID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Notification event published",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("correlation_id", event.CorrelationID),
		zap.String("event_type", event.EventType),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}

// saramaHeaderCarrier implements the TextMapCarrier interface for Kafka headers
type saramaHeaderCarrier []sarama.RecordHeader

func (c saramaHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *saramaHeaderCarrier) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{
		Key:   []byte(key),
		Value: []byte(value),
	})
}

func (c saramaHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
