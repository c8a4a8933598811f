package domain

import (
	"strings"
	"time"
)

// AuditEventType enumerates recorded security-relevant actions.
type AuditEventType string

const (
	// Authentication.
	AuditLoginSuccess          AuditEventType = "login_success"
	AuditLoginFailure          AuditEventType = "login_failure"
	AuditLogout                AuditEventType = "logout"
	AuditRegistration          AuditEventType = "registration"
	AuditPasswordChange        AuditEventType = "password_change"
	AuditPasswordResetRequest  AuditEventType = "password_reset_request"
	AuditPasswordResetComplete AuditEventType = "password_reset_complete"

	// Session.
	AuditSessionCreated AuditEventType = "session_created"
	AuditSessionExpired AuditEventType = "session_expired"
	AuditSessionRevoked AuditEventType = "session_revoked"

	// Security.
	AuditAccountLocked       AuditEventType = "account_locked"
	AuditAccountUnlocked     AuditEventType = "account_unlocked"
	AuditSuspiciousActivity  AuditEventType = "suspicious_activity"
	AuditBruteForceDetected  AuditEventType = "brute_force_detected"
	AuditRateLimitExceeded   AuditEventType = "rate_limit_exceeded"
	AuditPermissionDenied    AuditEventType = "permission_denied"
	AuditMFAEnabled          AuditEventType = "mfa_enabled"
	AuditMFADisabled         AuditEventType = "mfa_disabled"
	AuditPasswordPolicyBreak AuditEventType = "password_policy_violation"

	// OAuth.
	AuditOAuthLogin        AuditEventType = "oauth_login"
	AuditOAuthLink         AuditEventType = "oauth_link"
	AuditOAuthUnlink       AuditEventType = "oauth_unlink"
	AuditOAuthTokenRefresh AuditEventType = "oauth_token_refresh"

	// Profile.
	AuditProfileUpdate AuditEventType = "profile_update"
	AuditEmailChange   AuditEventType = "email_change"
	AuditDataExport    AuditEventType = "data_export"
	AuditDataDeletion  AuditEventType = "data_deletion"

	// Admin.
	AuditAdminAction     AuditEventType = "admin_action"
	AuditUserRoleChange  AuditEventType = "user_role_change"
	AuditUserDeleted     AuditEventType = "user_deleted"
	AuditUserImpersonate AuditEventType = "user_impersonation"
)

var defaultAuditSeverity = map[AuditEventType]AuditSeverity{
	AuditLoginSuccess:          AuditSeverityLow,
	AuditLoginFailure:          AuditSeverityMedium,
	AuditLogout:                AuditSeverityLow,
	AuditRegistration:          AuditSeverityLow,
	AuditPasswordChange:        AuditSeverityMedium,
	AuditPasswordResetRequest:  AuditSeverityMedium,
	AuditPasswordResetComplete: AuditSeverityMedium,

	AuditSessionCreated: AuditSeverityLow,
	AuditSessionExpired: AuditSeverityLow,
	AuditSessionRevoked: AuditSeverityMedium,

	AuditAccountLocked:       AuditSeverityHigh,
	AuditAccountUnlocked:     AuditSeverityMedium,
	AuditSuspiciousActivity:  AuditSeverityHigh,
	AuditBruteForceDetected:  AuditSeverityCritical,
	AuditRateLimitExceeded:   AuditSeverityMedium,
	AuditPermissionDenied:    AuditSeverityHigh,
	AuditMFAEnabled:          AuditSeverityMedium,
	AuditMFADisabled:         AuditSeverityHigh,
	AuditPasswordPolicyBreak: AuditSeverityLow,

	AuditOAuthLogin:        AuditSeverityLow,
	AuditOAuthLink:         AuditSeverityMedium,
	AuditOAuthUnlink:       AuditSeverityMedium,
	AuditOAuthTokenRefresh: AuditSeverityLow,

	AuditProfileUpdate: AuditSeverityLow,
	AuditEmailChange:   AuditSeverityMedium,
	AuditDataExport:    AuditSeverityMedium,
	AuditDataDeletion:  AuditSeverityHigh,

	AuditAdminAction:     AuditSeverityMedium,
	AuditUserRoleChange:  AuditSeverityHigh,
	AuditUserDeleted:     AuditSeverityHigh,
	AuditUserImpersonate: AuditSeverityCritical,
}

// IsValid reports whether t is a known event type.
func (t AuditEventType) IsValid() bool {
	_, ok := defaultAuditSeverity[t]
	return ok
}

// DefaultSeverity returns the severity recorded for t when the caller does not override it.
func (t AuditEventType) DefaultSeverity() AuditSeverity {
	if severity, ok := defaultAuditSeverity[t]; ok {
		return severity
	}
	return AuditSeverityMedium
}

// IsSecurityFlagged reports whether t counts toward a user's security event tally.
func (t AuditEventType) IsSecurityFlagged() bool {
	switch t {
	case AuditAccountLocked, AuditSuspiciousActivity, AuditBruteForceDetected,
		AuditRateLimitExceeded, AuditPermissionDenied, AuditMFADisabled:
		return true
	default:
		return false
	}
}

// AuditResult is the outcome recorded for an event.
type AuditResult string

const (
	AuditResultSuccess  AuditResult = "success"
	AuditResultFailure  AuditResult = "failure"
	AuditResultError    AuditResult = "error"
	AuditResultDetected AuditResult = "detected"
)

// IsValid reports whether r is one of the known results.
func (r AuditResult) IsValid() bool {
	switch r {
	case AuditResultSuccess, AuditResultFailure, AuditResultError, AuditResultDetected:
		return true
	default:
		return false
	}
}

// AuditSeverity classifies how urgently an event needs attention.
type AuditSeverity string

const (
	AuditSeverityLow      AuditSeverity = "low"
	AuditSeverityMedium   AuditSeverity = "medium"
	AuditSeverityHigh     AuditSeverity = "high"
	AuditSeverityCritical AuditSeverity = "critical"
)

// IsValid reports whether s is one of the known severities.
func (s AuditSeverity) IsValid() bool {
	switch s {
	case AuditSeverityLow, AuditSeverityMedium, AuditSeverityHigh, AuditSeverityCritical:
		return true
	default:
		return false
	}
}

// ParseAuditSeverity normalises text into a severity, reporting false when unknown.
func ParseAuditSeverity(value string) (AuditSeverity, bool) {
	severity := AuditSeverity(strings.ToLower(strings.TrimSpace(value)))
	return severity, severity.IsValid()
}

// Audit event categories tagged by the convenience wrappers.
const (
	AuditCategoryAuthentication = "authentication"
	AuditCategorySecurity       = "security"
	AuditCategoryAdmin          = "admin"
)

// AuditEvent is an immutable, append-only audit record.
type AuditEvent struct {
	ID            string
	Type          AuditEventType
	Result        AuditResult
	Severity      AuditSeverity
	UserID        string
	SessionID     string
	IPAddress     string
	UserAgent     string
	Resource      string
	Details       map[string]any
	Metadata      map[string]any
	CorrelationID string
	OccurredAt    time.Time
}

// AuditActor is the identity and network context of whoever triggered an event.
type AuditActor struct {
	UserID    string
	SessionID string
	IPAddress string
	UserAgent string
}

// AuditEntry is the caller-supplied input to the audit logger.
// Severity and CorrelationID are optional.
type AuditEntry struct {
	Type          AuditEventType
	Result        AuditResult
	Severity      AuditSeverity
	UserID        string
	SessionID     string
	IPAddress     string
	UserAgent     string
	Resource      string
	Details       map[string]any
	Metadata      map[string]any
	CorrelationID string
}

// AuditFilter narrows an audit search. Zero fields are ignored.
type AuditFilter struct {
	Types      []AuditEventType
	UserID     string
	IPAddress  string
	Severities []AuditSeverity
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// UserActivitySummary aggregates a user's recent audit trail.
type UserActivitySummary struct {
	UserID         string
	PeriodDays     int
	TotalEvents    int
	EventCounts    map[AuditEventType]int
	LoginAttempts  int
	FailedLogins   int
	UniqueIPs      []string
	SecurityEvents int
	LastActivity   *time.Time
}
