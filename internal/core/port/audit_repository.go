package port

import (
	"context"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

// AuditRepository is the append-only audit sink. Events are never updated or deleted through it.
type AuditRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) error
	// Search returns matching events newest first, honouring filter limit and offset.
	Search(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error)
}
