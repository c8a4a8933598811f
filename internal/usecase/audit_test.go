package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/logger"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/repository/memory"
)

type failingAuditRepository struct {
	appendErr error
	searchErr error
}

func (f failingAuditRepository) Append(context.Context, domain.AuditEvent) error {
	return f.appendErr
}

func (f failingAuditRepository) Search(context.Context, domain.AuditFilter) ([]domain.AuditEvent, error) {
	return nil, f.searchErr
}

type recordingAlertPublisher struct {
	events []domain.AuditEvent
	err    error
}

func (r *recordingAlertPublisher) PublishSecurityAlert(_ context.Context, event domain.AuditEvent) error {
	r.events = append(r.events, event)
	return r.err
}

type countingMetrics struct {
	failedAttempts  map[domain.ThreatLevel]int
	lockouts        map[domain.LockoutReason]int
	permanent       int
	auditEvents     int
	persistFailures int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		failedAttempts: make(map[domain.ThreatLevel]int),
		lockouts:       make(map[domain.LockoutReason]int),
	}
}

func (m *countingMetrics) ObserveFailedAttempt(level domain.ThreatLevel) { m.failedAttempts[level]++ }

func (m *countingMetrics) ObserveLockout(reason domain.LockoutReason, permanent bool) {
	m.lockouts[reason]++
	if permanent {
		m.permanent++
	}
}

func (m *countingMetrics) ObserveAuditEvent(domain.AuditEventType, domain.AuditSeverity) {
	m.auditEvents++
}

func (m *countingMetrics) ObserveAuditPersistFailure() { m.persistFailures++ }

func (m *countingMetrics) ObservePasswordHash(string, time.Duration) {}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestLogEventAppliesSeverityTableAndCorrelationID(t *testing.T) {
	repo := memory.NewAuditRepository()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	audit := NewAuditLogger(repo, zap.NewNop()).WithClock(fixedClock(now))

	ctx := logger.ContextWithCorrelationID(context.Background(), "req-42")
	id, err := audit.LogEvent(ctx, domain.AuditEntry{
		Type:   domain.AuditAccountLocked,
		Result: domain.AuditResultDetected,
		UserID: "user-123",
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a log id")
	}

	events := audit.SearchAuditLogs(context.Background(), domain.AuditFilter{UserID: "user-123"})
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	event := events[0]
	if event.ID != id || event.Severity != domain.AuditSeverityHigh {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.CorrelationID != "req-42" {
		t.Fatalf("expected correlation id from context, got %q", event.CorrelationID)
	}
	if !event.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v, got %v", now, event.OccurredAt)
	}
}

func TestLogEventGeneratesCorrelationIDAndHonoursOverride(t *testing.T) {
	repo := memory.NewAuditRepository()
	audit := NewAuditLogger(repo, nil)

	_, err := audit.LogEvent(context.Background(), domain.AuditEntry{
		Type:     domain.AuditLoginSuccess,
		Result:   domain.AuditResultSuccess,
		Severity: domain.AuditSeverityCritical,
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	event := audit.SearchAuditLogs(context.Background(), domain.AuditFilter{})[0]
	if event.CorrelationID == "" {
		t.Fatal("expected generated correlation id")
	}
	if event.Severity != domain.AuditSeverityCritical {
		t.Fatalf("expected explicit severity to win, got %s", event.Severity)
	}
}

func TestLogEventUnknownTypeFallsBackToSuspiciousActivity(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := memory.NewAuditRepository()
	audit := NewAuditLogger(repo, zap.New(core))

	_, err := audit.LogEvent(context.Background(), domain.AuditEntry{
		Type:   domain.AuditEventType("teleport_attempt"),
		Result: domain.AuditResult("maybe"),
	})
	if err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	event := audit.SearchAuditLogs(context.Background(), domain.AuditFilter{})[0]
	if event.Type != domain.AuditSuspiciousActivity {
		t.Fatalf("expected suspicious_activity, got %s", event.Type)
	}
	if event.Details[auditDetailOriginalType] != "teleport_attempt" {
		t.Fatalf("expected original type in details, got %v", event.Details)
	}
	if event.Result != domain.AuditResultError {
		t.Fatalf("expected error result fallback, got %s", event.Result)
	}
	if logs.FilterMessage("unknown audit event type recorded as suspicious activity").Len() != 1 {
		t.Fatal("expected a fallback warning")
	}
}

func TestLogEventPersistFailureIsFatal(t *testing.T) {
	metrics := newCountingMetrics()
	audit := NewAuditLogger(failingAuditRepository{appendErr: errors.New("disk full")}, nil).WithMetrics(metrics)

	id, err := audit.LogEvent(context.Background(), domain.AuditEntry{Type: domain.AuditLoginFailure, Result: domain.AuditResultFailure})
	if err == nil {
		t.Fatal("expected persistence failure to be returned")
	}
	if id != "" {
		t.Fatalf("expected no id on failure, got %q", id)
	}
	if metrics.persistFailures != 1 || metrics.auditEvents != 0 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestLogEventRequiresRepository(t *testing.T) {
	if _, err := NewAuditLogger(nil, nil).LogEvent(context.Background(), domain.AuditEntry{}); !errors.Is(err, ErrAuditRepositoryMissing) {
		t.Fatalf("expected ErrAuditRepositoryMissing, got %v", err)
	}
}

func TestLogEventMirrorsAtSeverityLevel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	audit := NewAuditLogger(memory.NewAuditRepository(), zap.New(core))
	ctx := context.Background()

	cases := []struct {
		eventType domain.AuditEventType
		want      zapcore.Level
	}{
		{domain.AuditLoginSuccess, zapcore.InfoLevel},
		{domain.AuditLoginFailure, zapcore.InfoLevel},
		{domain.AuditAccountLocked, zapcore.WarnLevel},
		{domain.AuditBruteForceDetected, zapcore.ErrorLevel},
	}
	for _, tc := range cases {
		if _, err := audit.LogEvent(ctx, domain.AuditEntry{
			Type:      tc.eventType,
			Result:    domain.AuditResultDetected,
			IPAddress: "192.168.1.100",
			Details:   map[string]any{"email": "john.doe@example.com"},
		}); err != nil {
			t.Fatalf("LogEvent returned error: %v", err)
		}
	}

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != len(cases) {
		t.Fatalf("expected %d mirrored entries, got %d", len(cases), len(entries))
	}
	for i, tc := range cases {
		if entries[i].Level != tc.want {
			t.Fatalf("%s: expected level %s, got %s", tc.eventType, tc.want, entries[i].Level)
		}
		fields := entries[i].ContextMap()
		if fields["ip"] != "192.168.*.*" || fields["email"] != "joh***@example.com" {
			t.Fatalf("expected masked fields, got %v", fields)
		}
	}
}

func TestLogEventCriticalTriggersAlert(t *testing.T) {
	alerts := &recordingAlertPublisher{err: errors.New("broker down")}
	audit := NewAuditLogger(memory.NewAuditRepository(), nil).WithAlertPublisher(alerts)
	ctx := context.Background()

	if _, err := audit.LogEvent(ctx, domain.AuditEntry{Type: domain.AuditLoginFailure, Result: domain.AuditResultFailure}); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}
	id, err := audit.LogEvent(ctx, domain.AuditEntry{Type: domain.AuditBruteForceDetected, Result: domain.AuditResultDetected})
	if err != nil {
		t.Fatalf("alert failure must not fail the write: %v", err)
	}

	if len(alerts.events) != 1 || alerts.events[0].ID != id {
		t.Fatalf("expected one alert for the critical event, got %+v", alerts.events)
	}
}

func TestConvenienceWrappersTagCategory(t *testing.T) {
	audit := NewAuditLogger(memory.NewAuditRepository(), nil)
	ctx := context.Background()
	actor := domain.AuditActor{UserID: "user-1", IPAddress: "10.0.0.1"}

	if _, err := audit.LogAuthenticationEvent(ctx, domain.AuditLoginFailure, domain.AuditResultFailure, actor, nil); err != nil {
		t.Fatalf("LogAuthenticationEvent returned error: %v", err)
	}
	if _, err := audit.LogSecurityEvent(ctx, domain.AuditBruteForceDetected, "", actor, map[string]any{"risk_score": 90}); err != nil {
		t.Fatalf("LogSecurityEvent returned error: %v", err)
	}
	if _, err := audit.LogAdminAction(ctx, "admin-1", "force_logout", "user-1", domain.AuditActor{}, nil); err != nil {
		t.Fatalf("LogAdminAction returned error: %v", err)
	}

	events := audit.SearchAuditLogs(ctx, domain.AuditFilter{})
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	byType := make(map[domain.AuditEventType]domain.AuditEvent)
	for _, event := range events {
		byType[event.Type] = event
	}
	if got := byType[domain.AuditLoginFailure].Details[auditDetailCategory]; got != domain.AuditCategoryAuthentication {
		t.Fatalf("expected authentication category, got %v", got)
	}
	security := byType[domain.AuditBruteForceDetected]
	if security.Details[auditDetailCategory] != domain.AuditCategorySecurity || security.Result != domain.AuditResultDetected {
		t.Fatalf("unexpected security event: %+v", security)
	}
	if security.Severity != domain.AuditSeverityCritical {
		t.Fatalf("expected table severity critical, got %s", security.Severity)
	}
	admin := byType[domain.AuditAdminAction]
	if admin.UserID != "admin-1" || admin.Details["action"] != "force_logout" || admin.Details["target_user_id"] != "user-1" {
		t.Fatalf("unexpected admin event: %+v", admin)
	}
}

func TestSearchAuditLogsDegradesToEmpty(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	audit := NewAuditLogger(failingAuditRepository{searchErr: errors.New("timeout")}, zap.New(core))

	events := audit.SearchAuditLogs(context.Background(), domain.AuditFilter{})
	if events == nil || len(events) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", events)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected the failure to be logged, got %d entries", logs.Len())
	}
}

func TestGetUserActivitySummary(t *testing.T) {
	repo := memory.NewAuditRepository()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-40 * 24 * time.Hour)
	audit := NewAuditLogger(repo, nil).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	record := func(eventType domain.AuditEventType, ip string) {
		t.Helper()
		if _, err := audit.LogEvent(ctx, domain.AuditEntry{Type: eventType, Result: domain.AuditResultSuccess, UserID: "user-1", IPAddress: ip}); err != nil {
			t.Fatalf("LogEvent returned error: %v", err)
		}
	}

	record(domain.AuditLoginFailure, "10.0.0.9")
	clock = now.Add(-2 * time.Hour)
	record(domain.AuditLoginFailure, "10.0.0.1")
	record(domain.AuditLoginFailure, "10.0.0.2")
	clock = now.Add(-time.Hour)
	record(domain.AuditAccountLocked, "10.0.0.2")
	record(domain.AuditLoginSuccess, "10.0.0.1")
	clock = now

	summary := audit.GetUserActivitySummary(ctx, "user-1", 7)
	if summary.TotalEvents != 4 {
		t.Fatalf("expected 4 events in window, got %d", summary.TotalEvents)
	}
	if summary.LoginAttempts != 3 || summary.FailedLogins != 2 {
		t.Fatalf("unexpected login tallies: %+v", summary)
	}
	if summary.SecurityEvents != 1 {
		t.Fatalf("expected one security event, got %d", summary.SecurityEvents)
	}
	if len(summary.UniqueIPs) != 2 || summary.UniqueIPs[0] != "10.0.0.1" {
		t.Fatalf("unexpected unique ips: %v", summary.UniqueIPs)
	}
	if summary.EventCounts[domain.AuditLoginFailure] != 2 {
		t.Fatalf("unexpected counts: %v", summary.EventCounts)
	}
	if summary.LastActivity == nil || !summary.LastActivity.Equal(now.Add(-time.Hour)) {
		t.Fatalf("unexpected last activity: %v", summary.LastActivity)
	}
}

func TestGetUserActivitySummaryDegradesOnError(t *testing.T) {
	audit := NewAuditLogger(failingAuditRepository{searchErr: errors.New("timeout")}, nil)

	summary := audit.GetUserActivitySummary(context.Background(), "user-1", 0)
	if summary.TotalEvents != 0 || summary.PeriodDays != defaultSummaryPeriodDays || summary.UserID != "user-1" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
