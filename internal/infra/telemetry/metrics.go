package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
)

// SecurityMetricsOptions configures the security collectors.
type SecurityMetricsOptions struct {
	Registerer  prometheus.Registerer
	Namespace   string
	HashBuckets []float64
}

// SecurityMetrics implements port.SecurityMetrics with Prometheus collectors.
type SecurityMetrics struct {
	FailedAttempts       *prometheus.CounterVec
	Lockouts             *prometheus.CounterVec
	AuditEvents          *prometheus.CounterVec
	AuditPersistFailures prometheus.Counter
	HashDuration         *prometheus.HistogramVec
}

// NewSecurityMetrics constructs the collectors and registers them. Collectors that are
// already registered under the same name are reused.
func NewSecurityMetrics(opts SecurityMetricsOptions) (*SecurityMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "lingua"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.HashBuckets
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2}
	}

	failed, err := RegisterOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "security",
		Name:      "failed_login_attempts_total",
		Help:      "Failed login attempts partitioned by assessed threat level.",
	}, []string{"threat_level"}))
	if err != nil {
		return nil, err
	}

	lockouts, err := RegisterOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "security",
		Name:      "account_lockouts_total",
		Help:      "Account locks partitioned by reason and permanence.",
	}, []string{"reason", "permanent"}))
	if err != nil {
		return nil, err
	}

	events, err := RegisterOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "events_total",
		Help:      "Audit events recorded partitioned by type and severity.",
	}, []string{"event_type", "severity"}))
	if err != nil {
		return nil, err
	}

	persistFailures, err := RegisterOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "persist_failures_total",
		Help:      "Audit events that could not be written to the audit sink.",
	}))
	if err != nil {
		return nil, err
	}

	hashDuration, err := RegisterOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "password",
		Name:      "hash_duration_seconds",
		Help:      "Latency of password hash and verify operations in seconds.",
		Buckets:   buckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}

	return &SecurityMetrics{
		FailedAttempts:       failed,
		Lockouts:             lockouts,
		AuditEvents:          events,
		AuditPersistFailures: persistFailures,
		HashDuration:         hashDuration,
	}, nil
}

// RegisterOrReuse registers collector, returning the already registered
// collector of the same type when one exists under the same descriptor.
func RegisterOrReuse[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return collector, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return collector, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return collector, nil
}

func (m *SecurityMetrics) ObserveFailedAttempt(level domain.ThreatLevel) {
	m.FailedAttempts.WithLabelValues(string(level)).Inc()
}

func (m *SecurityMetrics) ObserveLockout(reason domain.LockoutReason, permanent bool) {
	m.Lockouts.WithLabelValues(string(reason), strconv.FormatBool(permanent)).Inc()
}

func (m *SecurityMetrics) ObserveAuditEvent(eventType domain.AuditEventType, severity domain.AuditSeverity) {
	m.AuditEvents.WithLabelValues(string(eventType), string(severity)).Inc()
}

func (m *SecurityMetrics) ObserveAuditPersistFailure() {
	m.AuditPersistFailures.Inc()
}

func (m *SecurityMetrics) ObservePasswordHash(operation string, elapsed time.Duration) {
	m.HashDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

var _ port.SecurityMetrics = (*SecurityMetrics)(nil)
