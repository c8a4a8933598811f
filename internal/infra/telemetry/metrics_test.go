package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

func TestSecurityMetricsRecordsObservations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewSecurityMetrics(SecurityMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create security metrics: %v", err)
	}

	metrics.ObserveFailedAttempt(domain.ThreatLevelHigh)
	metrics.ObserveFailedAttempt(domain.ThreatLevelHigh)
	metrics.ObserveFailedAttempt(domain.ThreatLevelLow)
	metrics.ObserveLockout(domain.LockoutReasonBruteForce, true)
	metrics.ObserveAuditEvent(domain.AuditAccountLocked, domain.AuditSeverityCritical)
	metrics.ObserveAuditPersistFailure()
	metrics.ObservePasswordHash("hash", 40*time.Millisecond)

	if got := testutil.ToFloat64(metrics.FailedAttempts.WithLabelValues("high")); got != 2 {
		t.Fatalf("expected 2 high threat attempts, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Lockouts.WithLabelValues("brute_force_attack", "true")); got != 1 {
		t.Fatalf("expected 1 permanent brute force lockout, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.AuditEvents.WithLabelValues("account_locked", "critical")); got != 1 {
		t.Fatalf("expected 1 critical audit event, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.AuditPersistFailures); got != 1 {
		t.Fatalf("expected 1 persist failure, got %f", got)
	}
	if samples := testutil.CollectAndCount(metrics.HashDuration); samples != 1 {
		t.Fatalf("expected one hash duration series, got %d", samples)
	}
}

func TestSecurityMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewSecurityMetrics(SecurityMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewSecurityMetrics(SecurityMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}

	second.ObserveAuditPersistFailure()
	if got := testutil.ToFloat64(first.AuditPersistFailures); got != 1 {
		t.Fatalf("expected shared collector, got %f", got)
	}
}

func TestSecurityMetricsRejectsConflictingCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lingua",
		Subsystem: "security",
		Name:      "failed_login_attempts_total",
		Help:      "Failed login attempts partitioned by assessed threat level.",
	}, []string{"threat_level"}))

	if _, err := NewSecurityMetrics(SecurityMetricsOptions{Registerer: registry}); err == nil {
		t.Fatal("expected type mismatch to be reported")
	}
}
