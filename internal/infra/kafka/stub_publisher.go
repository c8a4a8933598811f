package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/logger"
)

// StubAlertPublisher logs alerts instead of sending them to Kafka. Used when no brokers are configured.
type StubAlertPublisher struct {
	logger *zap.Logger
}

// NewStubAlertPublisher constructs a development-friendly alert publisher.
func NewStubAlertPublisher(log *zap.Logger) *StubAlertPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubAlertPublisher{logger: log}
}

// PublishSecurityAlert logs the alert at warn level.
func (p *StubAlertPublisher) PublishSecurityAlert(_ context.Context, event domain.AuditEvent) error {
	p.logger.Warn("Stub security alert published",
		zap.String("topic", alertTopic),
		zap.String("log_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
		zap.String("user_id", event.UserID),
		zap.String("ip", logger.MaskIP(event.IPAddress)),
		zap.Time("occurred_at", event.OccurredAt.UTC()),
	)
	return nil
}

var _ port.AlertPublisher = (*StubAlertPublisher)(nil)
