package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
)

const (
	schemaVersion  = "1.0"
	alertTopic     = "security.alert"
	alertEventType = "lingua.security.alert"
)

// AlertPublisher implements port.AlertPublisher using Kafka.
type AlertPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAlertPublisher constructs a Kafka-backed alert publisher.
func NewAlertPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AlertPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type alertEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   alertPayload     `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type alertPayload struct {
	AuditLogID    string         `json:"audit_log_id"`
	AuditType     string         `json:"audit_type"`
	Result        string         `json:"result"`
	Severity      string         `json:"severity"`
	IPAddress     string         `json:"ip_address,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	Resource      string         `json:"resource,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Details       map[string]any `json:"details,omitempty"`
}

// PublishSecurityAlert enqueues a critical audit event on the alert topic, keyed by user.
func (p *AlertPublisher) PublishSecurityAlert(ctx context.Context, event domain.AuditEvent) error {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	envelope := alertEnvelope{
		EventID:   uuid.NewString(),
		EventType: alertEventType,
		UserID:    event.UserID,
		Timestamp: time.Now().UTC(),
		Version:   schemaVersion,
		Payload: alertPayload{
			AuditLogID:    event.ID,
			AuditType:     string(event.Type),
			Result:        string(event.Result),
			Severity:      string(event.Severity),
			IPAddress:     event.IPAddress,
			UserAgent:     event.UserAgent,
			Resource:      event.Resource,
			CorrelationID: event.CorrelationID,
			OccurredAt:    occurredAt.UTC(),
			Details:       event.Details,
		},
		Metadata: p.metadata(ctx),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal alert envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(alertTopic),
		Value: sarama.ByteEncoder(bytes),
	}
	if event.UserID != "" {
		message.Key = sarama.StringEncoder(event.UserID)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AlertPublisher) metadata(ctx context.Context) envelopeMetadata {
	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}
	return metadata
}

var _ port.AlertPublisher = (*AlertPublisher)(nil)
