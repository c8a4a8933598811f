package port

import (
	"context"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

// AlertPublisher delivers critical audit events to the on-call alerting pipeline.
type AlertPublisher interface {
	PublishSecurityAlert(ctx context.Context, event domain.AuditEvent) error
}
