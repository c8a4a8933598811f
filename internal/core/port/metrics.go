package port

import (
	"time"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

// SecurityMetrics receives counters from the security services.
type SecurityMetrics interface {
	ObserveFailedAttempt(level domain.ThreatLevel)
	ObserveLockout(reason domain.LockoutReason, permanent bool)
	ObserveAuditEvent(eventType domain.AuditEventType, severity domain.AuditSeverity)
	ObserveAuditPersistFailure()
	ObservePasswordHash(operation string, elapsed time.Duration)
}

// NopSecurityMetrics discards every observation.
type NopSecurityMetrics struct{}

func (NopSecurityMetrics) ObserveFailedAttempt(domain.ThreatLevel) {}
func (NopSecurityMetrics) ObserveLockout(domain.LockoutReason, bool) {}
func (NopSecurityMetrics) ObserveAuditEvent(domain.AuditEventType, domain.AuditSeverity) {}
func (NopSecurityMetrics) ObserveAuditPersistFailure() {}
func (NopSecurityMetrics) ObservePasswordHash(string, time.Duration) {}
