package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
)

// AuditRepository is an append-only in-memory audit sink.
type AuditRepository struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewAuditRepository constructs an empty repository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Append implements port.AuditRepository.
func (r *AuditRepository) Append(_ context.Context, event domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}

// Search implements port.AuditRepository.
func (r *AuditRepository) Search(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	r.mu.RLock()
	matched := make([]domain.AuditEvent, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		if matches(filter, r.events[i]) {
			matched = append(matched, r.events[i])
		}
	}
	r.mu.RUnlock()

	// Walking backwards keeps later appends first among equal timestamps.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []domain.AuditEvent{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Len returns the number of stored events.
func (r *AuditRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func matches(filter domain.AuditFilter, event domain.AuditEvent) bool {
	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}
	if filter.IPAddress != "" && event.IPAddress != filter.IPAddress {
		return false
	}
	if filter.Since != nil && event.OccurredAt.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && event.OccurredAt.After(*filter.Until) {
		return false
	}
	if len(filter.Types) > 0 && !containsType(filter.Types, event.Type) {
		return false
	}
	if len(filter.Severities) > 0 && !containsSeverity(filter.Severities, event.Severity) {
		return false
	}
	return true
}

func containsType(types []domain.AuditEventType, t domain.AuditEventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsSeverity(severities []domain.AuditSeverity, s domain.AuditSeverity) bool {
	for _, candidate := range severities {
		if candidate == s {
			return true
		}
	}
	return false
}

var _ port.AuditRepository = (*AuditRepository)(nil)
