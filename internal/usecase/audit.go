package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/logger"
)

const (
	defaultAuditSearchLimit   = 100
	maxAuditSearchLimit       = 1000
	defaultSummaryWindow      = 1000
	defaultSummaryPeriodDays  = 30
	auditDetailOriginalType   = "original_event_type"
	auditDetailOriginalResult = "original_result"
	auditDetailCategory       = "event_category"
)

// ErrAuditRepositoryMissing is returned when the audit logger has no sink configured.
var ErrAuditRepositoryMissing = errors.New("audit repository not configured")

// AuditLogger records security-relevant events and mirrors them to the structured log.
type AuditLogger struct {
	repo          port.AuditRepository
	alerts        port.AlertPublisher
	metrics       port.SecurityMetrics
	logger        *zap.Logger
	summaryWindow int
	now           func() time.Time
	newID         func() string
}

// NewAuditLogger constructs an AuditLogger backed by repo.
func NewAuditLogger(repo port.AuditRepository, logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{
		repo:          repo,
		metrics:       port.NopSecurityMetrics{},
		logger:        logger,
		summaryWindow: defaultSummaryWindow,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// WithAlertPublisher forwards critical events to publisher.
func (a *AuditLogger) WithAlertPublisher(publisher port.AlertPublisher) *AuditLogger {
	a.alerts = publisher
	return a
}

// WithMetrics wires audit counters.
func (a *AuditLogger) WithMetrics(metrics port.SecurityMetrics) *AuditLogger {
	if metrics != nil {
		a.metrics = metrics
	}
	return a
}

// WithClock overrides the internal clock for deterministic tests.
func (a *AuditLogger) WithClock(clock func() time.Time) *AuditLogger {
	if clock != nil {
		a.now = clock
	}
	return a
}

// WithSummaryWindow bounds how many events GetUserActivitySummary reads.
func (a *AuditLogger) WithSummaryWindow(n int) *AuditLogger {
	if n > 0 {
		a.summaryWindow = n
	}
	return a
}

// LogEvent normalises entry, persists it and returns the generated log id.
// A failed write is returned to the caller; alert delivery failures are only logged.
func (a *AuditLogger) LogEvent(ctx context.Context, entry domain.AuditEntry) (string, error) {
	ctx, span := tracer.Start(ctx, "audit.LogEvent")
	defer span.End()

	if a.repo == nil {
		return "", ErrAuditRepositoryMissing
	}

	event := a.normalise(ctx, entry)
	span.SetAttributes(
		attribute.String("audit.event_type", string(event.Type)),
		attribute.String("audit.severity", string(event.Severity)),
	)

	if err := a.repo.Append(ctx, event); err != nil {
		a.metrics.ObserveAuditPersistFailure()
		span.RecordError(err)
		logger.WithContext(ctx, a.logger).Error("audit event not persisted",
			zap.String("event_type", string(event.Type)),
			zap.String("log_id", event.ID),
			zap.Error(err),
		)
		return "", fmt.Errorf("persist audit event: %w", err)
	}

	a.metrics.ObserveAuditEvent(event.Type, event.Severity)
	a.mirror(ctx, event)

	if event.Severity == domain.AuditSeverityCritical && a.alerts != nil {
		if err := a.alerts.PublishSecurityAlert(ctx, event); err != nil {
			logger.WithContext(ctx, a.logger).Warn("security alert not delivered",
				zap.String("event_type", string(event.Type)),
				zap.String("log_id", event.ID),
				zap.Error(err),
			)
		}
	}

	return event.ID, nil
}

// LogAuthenticationEvent records a login, logout, registration or password event.
func (a *AuditLogger) LogAuthenticationEvent(ctx context.Context, eventType domain.AuditEventType, result domain.AuditResult, actor domain.AuditActor, details map[string]any) (string, error) {
	return a.LogEvent(ctx, domain.AuditEntry{
		Type:      eventType,
		Result:    result,
		UserID:    actor.UserID,
		SessionID: actor.SessionID,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		Resource:  "authentication",
		Details:   withCategory(details, domain.AuditCategoryAuthentication),
	})
}

// LogSecurityEvent records a detection such as a lockout or brute-force signal.
// An empty severity falls back to the event type's default.
func (a *AuditLogger) LogSecurityEvent(ctx context.Context, eventType domain.AuditEventType, severity domain.AuditSeverity, actor domain.AuditActor, details map[string]any) (string, error) {
	return a.LogEvent(ctx, domain.AuditEntry{
		Type:      eventType,
		Result:    domain.AuditResultDetected,
		Severity:  severity,
		UserID:    actor.UserID,
		SessionID: actor.SessionID,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		Resource:  "security",
		Details:   withCategory(details, domain.AuditCategorySecurity),
	})
}

// LogAdminAction records an administrative action taken by adminUserID against targetUserID.
func (a *AuditLogger) LogAdminAction(ctx context.Context, adminUserID, action, targetUserID string, actor domain.AuditActor, details map[string]any) (string, error) {
	merged := withCategory(details, domain.AuditCategoryAdmin)
	merged["action"] = action
	if targetUserID != "" {
		merged["target_user_id"] = targetUserID
	}
	return a.LogEvent(ctx, domain.AuditEntry{
		Type:      domain.AuditAdminAction,
		Result:    domain.AuditResultSuccess,
		UserID:    adminUserID,
		SessionID: actor.SessionID,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		Resource:  "admin",
		Details:   merged,
	})
}

// SearchAuditLogs returns matching events newest first. Storage errors yield an empty result.
func (a *AuditLogger) SearchAuditLogs(ctx context.Context, filter domain.AuditFilter) []domain.AuditEvent {
	ctx, span := tracer.Start(ctx, "audit.SearchAuditLogs")
	defer span.End()

	if a.repo == nil {
		return []domain.AuditEvent{}
	}

	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	events, err := a.repo.Search(ctx, filter)
	if err != nil {
		span.RecordError(err)
		logger.WithContext(ctx, a.logger).Error("audit search failed", zap.Error(err))
		return []domain.AuditEvent{}
	}
	if events == nil {
		return []domain.AuditEvent{}
	}
	return events
}

// GetUserActivitySummary aggregates the user's events over the last days days.
// Reads are bounded by the summary window; storage errors yield an empty summary.
func (a *AuditLogger) GetUserActivitySummary(ctx context.Context, userID string, days int) domain.UserActivitySummary {
	ctx, span := tracer.Start(ctx, "audit.GetUserActivitySummary")
	defer span.End()

	if days <= 0 {
		days = defaultSummaryPeriodDays
	}
	summary := domain.UserActivitySummary{
		UserID:      userID,
		PeriodDays:  days,
		EventCounts: map[domain.AuditEventType]int{},
		UniqueIPs:   []string{},
	}
	if a.repo == nil || strings.TrimSpace(userID) == "" {
		return summary
	}

	since := a.now().AddDate(0, 0, -days)
	events, err := a.repo.Search(ctx, domain.AuditFilter{
		UserID: userID,
		Since:  &since,
		Limit:  a.summaryWindow,
	})
	if err != nil {
		span.RecordError(err)
		logger.WithContext(ctx, a.logger).Error("audit summary failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return summary
	}

	ips := make(map[string]struct{})
	for _, event := range events {
		summary.TotalEvents++
		summary.EventCounts[event.Type]++

		switch event.Type {
		case domain.AuditLoginSuccess:
			summary.LoginAttempts++
		case domain.AuditLoginFailure:
			summary.LoginAttempts++
			summary.FailedLogins++
		}
		if event.Type.IsSecurityFlagged() {
			summary.SecurityEvents++
		}
		if event.IPAddress != "" {
			ips[event.IPAddress] = struct{}{}
		}
		if summary.LastActivity == nil || event.OccurredAt.After(*summary.LastActivity) {
			occurred := event.OccurredAt
			summary.LastActivity = &occurred
		}
	}

	for ip := range ips {
		summary.UniqueIPs = append(summary.UniqueIPs, ip)
	}
	sort.Strings(summary.UniqueIPs)
	return summary
}

func (a *AuditLogger) normalise(ctx context.Context, entry domain.AuditEntry) domain.AuditEvent {
	log := logger.WithContext(ctx, a.logger)
	details := copyMap(entry.Details)

	eventType := entry.Type
	if !eventType.IsValid() {
		log.Warn("unknown audit event type recorded as suspicious activity", zap.String("event_type", string(entry.Type)))
		details[auditDetailOriginalType] = string(entry.Type)
		eventType = domain.AuditSuspiciousActivity
	}

	result := entry.Result
	if !result.IsValid() {
		log.Warn("unknown audit result recorded as error", zap.String("result", string(entry.Result)))
		details[auditDetailOriginalResult] = string(entry.Result)
		result = domain.AuditResultError
	}

	severity := entry.Severity
	if !severity.IsValid() {
		if severity != "" {
			log.Warn("unknown audit severity replaced by default", zap.String("severity", string(entry.Severity)))
		}
		severity = eventType.DefaultSeverity()
	}

	correlationID := entry.CorrelationID
	if correlationID == "" {
		correlationID = logger.CorrelationIDFromContext(ctx)
	}
	if correlationID == "" {
		correlationID = a.newID()
	}

	return domain.AuditEvent{
		ID:            a.newID(),
		Type:          eventType,
		Result:        result,
		Severity:      severity,
		UserID:        entry.UserID,
		SessionID:     entry.SessionID,
		IPAddress:     entry.IPAddress,
		UserAgent:     entry.UserAgent,
		Resource:      entry.Resource,
		Details:       details,
		Metadata:      copyMap(entry.Metadata),
		CorrelationID: correlationID,
		OccurredAt:    a.now(),
	}
}

func (a *AuditLogger) mirror(ctx context.Context, event domain.AuditEvent) {
	level := zapcore.InfoLevel
	switch event.Severity {
	case domain.AuditSeverityHigh:
		level = zapcore.WarnLevel
	case domain.AuditSeverityCritical:
		level = zapcore.ErrorLevel
	}

	fields := []zap.Field{
		zap.String("log_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("result", string(event.Result)),
		zap.String("severity", string(event.Severity)),
		zap.String("correlation_id", event.CorrelationID),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip", logger.MaskIP(event.IPAddress)))
	}
	if email, ok := event.Details["email"].(string); ok && email != "" {
		fields = append(fields, zap.String("email", logger.MaskEmail(email)))
	}
	if event.Resource != "" {
		fields = append(fields, zap.String("resource", event.Resource))
	}

	a.logger.Log(level, "audit event", fields...)
}

func withCategory(details map[string]any, category string) map[string]any {
	merged := copyMap(details)
	merged[auditDetailCategory] = category
	return merged
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultAuditSearchLimit
	case limit > maxAuditSearchLimit:
		return maxAuditSearchLimit
	default:
		return limit
	}
}
