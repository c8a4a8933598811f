package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/logger"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/repository"
)

const maxProgressiveMultiplier = 5

var (
	// ErrIdentityRequired indicates neither a user id nor an email was supplied.
	ErrIdentityRequired = errors.New("user id or email is required")
	// ErrLockoutStoreMissing indicates the service was built without storage.
	ErrLockoutStoreMissing = errors.New("lockout store not configured")
)

// LockoutService tracks failed authentication attempts and locks identities under attack.
type LockoutService struct {
	store   port.LockoutStore
	audit   *AuditLogger
	policy  domain.LockoutPolicy
	metrics port.SecurityMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewLockoutService constructs a LockoutService. The policy is validated up front.
func NewLockoutService(store port.LockoutStore, audit *AuditLogger, policy domain.LockoutPolicy, logger *zap.Logger) (*LockoutService, error) {
	if store == nil {
		return nil, ErrLockoutStoreMissing
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockoutService{
		store:   store,
		audit:   audit,
		policy:  policy,
		metrics: port.NopSecurityMetrics{},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithMetrics wires lockout counters.
func (s *LockoutService) WithMetrics(metrics port.SecurityMetrics) *LockoutService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *LockoutService) WithClock(clock func() time.Time) *LockoutService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Policy returns the active lockout policy.
func (s *LockoutService) Policy() domain.LockoutPolicy {
	return s.policy
}

// CheckAccountLockout returns the current lockout state for key, lifting
// expired temporary locks. Storage failures report a short synthetic lock.
func (s *LockoutService) CheckAccountLockout(ctx context.Context, key domain.LockoutKey, ipAddress string) (domain.LockoutInfo, error) {
	ctx, span := tracer.Start(ctx, "lockout.CheckAccountLockout")
	defer span.End()

	if key.IsZero() {
		return domain.LockoutInfo{}, ErrIdentityRequired
	}

	now := s.now()
	info, err := s.load(ctx, key)
	if err != nil {
		span.RecordError(err)
		logger.WithContext(ctx, s.logger).Error("lockout state unreadable, failing secure",
			zap.String("identity", maskedIdentity(key)),
			zap.String("ip", logger.MaskIP(ipAddress)),
			zap.Error(err),
		)
		return s.failSecure(key, now), nil
	}

	if info.Expired(now) {
		previous := info
		info = expireLock(info, now)
		if err := s.store.StoreLockoutInfo(ctx, info); err != nil {
			logger.WithContext(ctx, s.logger).Warn("persist lock expiry failed",
				zap.String("identity", maskedIdentity(key)),
				zap.Error(err),
			)
		}
		logger.WithContext(ctx, s.logger).Info("lock lifted",
			zap.String("identity", maskedIdentity(key)),
			zap.String("reason", "automatic_expiry"),
		)
		s.logSecurity(ctx, domain.AuditAccountUnlocked, domain.AuditSeverityLow, key, ipAddress, "", map[string]any{
			"reason":          "automatic_expiry",
			"previous_reason": string(previous.Reason),
			"locked_at":       formatTime(previous.LockedAt),
		})
	}

	span.SetAttributes(attribute.String("lockout.status", string(info.Status())))
	return info, nil
}

// RecordFailedAttempt registers a failed login for key and decides whether to lock it.
// Storage errors are logged and the last known state is returned.
func (s *LockoutService) RecordFailedAttempt(ctx context.Context, key domain.LockoutKey, ipAddress, userAgent, errorType string) (domain.LockoutInfo, error) {
	ctx, span := tracer.Start(ctx, "lockout.RecordFailedAttempt")
	defer span.End()

	if key.IsZero() {
		return domain.LockoutInfo{}, ErrIdentityRequired
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("identity", maskedIdentity(key)))
	now := s.now()
	attempt := domain.BruteForceAttempt{
		Timestamp: now,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ErrorType: errorType,
	}

	current, err := s.load(ctx, key)
	if err != nil {
		span.RecordError(err)
		log.Error("lockout state unreadable while recording failure", zap.Error(err))
		return s.failSecure(key, now), nil
	}

	expired := current.Expired(now)
	if expired {
		current = expireLock(current, now)
		log.Info("lock lifted", zap.String("reason", "automatic_expiry"))
	}

	if current.IsLocked {
		s.storeAttempt(ctx, key, attempt)
		s.logSecurity(ctx, domain.AuditLoginFailure, "", key, ipAddress, userAgent, map[string]any{
			"error_type":     errorType,
			"account_locked": true,
			"is_permanent":   current.IsPermanent,
			"attempt_count":  current.AttemptCount,
		})
		return current, nil
	}

	attempts, err := s.store.GetRecentAttempts(ctx, key, now.Add(-s.policy.HistoryWindow))
	if err != nil {
		log.Warn("attempt history unavailable, assessing current attempt only", zap.Error(err))
		attempts = nil
	}
	assessment := assessThreat(s.policy, append(attempts, attempt), now)

	next := current
	next.AttemptCount++
	next.ThreatLevel = assessment.Level
	next.UpdatedAt = now

	reason, lock := s.lockoutReason(next, assessment)
	if lock {
		next = s.applyLock(next, reason, assessment.Level, now)
	}

	if err := s.store.StoreLockoutInfo(ctx, next); err != nil {
		span.RecordError(err)
		log.Error("persist lockout state failed", zap.Error(err))
		return current, nil
	}
	s.storeAttempt(ctx, key, attempt)

	s.metrics.ObserveFailedAttempt(assessment.Level)
	if lock {
		s.metrics.ObserveLockout(next.Reason, next.IsPermanent)
	}

	eventType, severity := domain.AuditLoginFailure, domain.AuditSeverity("")
	switch {
	case lock:
		eventType = domain.AuditAccountLocked
		if assessment.Level == domain.ThreatLevelCritical || next.IsPermanent {
			severity = domain.AuditSeverityCritical
		}
	case len(assessment.Indicators) > 0:
		eventType = domain.AuditSuspiciousActivity
	}

	details := map[string]any{
		"error_type":     errorType,
		"attempt_count":  next.AttemptCount,
		"threat_level":   string(assessment.Level),
		"risk_score":     assessment.RiskScore,
		"indicators":     assessment.Indicators,
		"lock_expired":   expired,
		"account_locked": next.IsLocked,
	}
	if lock {
		details["lockout_reason"] = string(next.Reason)
		details["is_permanent"] = next.IsPermanent
		details["lockout_count"] = next.LockoutCount
		details["unlock_at"] = formatTime(next.UnlockAt)
		log.Warn("account locked",
			zap.String("reason", string(next.Reason)),
			zap.Bool("permanent", next.IsPermanent),
			zap.String("threat_level", string(assessment.Level)),
		)
	}
	s.logSecurity(ctx, eventType, severity, key, ipAddress, userAgent, details)

	span.SetAttributes(
		attribute.Int("lockout.attempt_count", next.AttemptCount),
		attribute.String("lockout.threat_level", string(next.ThreatLevel)),
		attribute.Bool("lockout.locked", next.IsLocked),
	)
	return next, nil
}

// RecordSuccessfulAttempt resets counters and threat level for key.
func (s *LockoutService) RecordSuccessfulAttempt(ctx context.Context, key domain.LockoutKey, ipAddress, userAgent string) (domain.LockoutInfo, error) {
	ctx, span := tracer.Start(ctx, "lockout.RecordSuccessfulAttempt")
	defer span.End()

	if key.IsZero() {
		return domain.LockoutInfo{}, ErrIdentityRequired
	}

	now := s.now()
	previous, err := s.load(ctx, key)
	if err != nil {
		logger.WithContext(ctx, s.logger).Warn("lockout state unreadable before reset",
			zap.String("identity", maskedIdentity(key)),
			zap.Error(err),
		)
		previous = domain.NewLockoutInfo(key)
	}

	reset := domain.NewLockoutInfo(key)
	reset.UpdatedAt = now
	if err := s.store.StoreLockoutInfo(ctx, reset); err != nil {
		span.RecordError(err)
		logger.WithContext(ctx, s.logger).Error("persist lockout reset failed",
			zap.String("identity", maskedIdentity(key)),
			zap.Error(err),
		)
		return previous, nil
	}
	s.storeAttempt(ctx, key, domain.BruteForceAttempt{
		Timestamp: now,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	s.logAuthentication(ctx, domain.AuditLoginSuccess, domain.AuditResultSuccess, key, ipAddress, userAgent, map[string]any{
		"previous_attempt_count": previous.AttemptCount,
		"previous_threat_level":  string(previous.ThreatLevel),
	})
	return reset, nil
}

// UnlockAccount clears any lock on key on behalf of adminUserID.
func (s *LockoutService) UnlockAccount(ctx context.Context, key domain.LockoutKey, adminUserID, reason string) (domain.LockoutInfo, error) {
	ctx, span := tracer.Start(ctx, "lockout.UnlockAccount")
	defer span.End()

	if key.IsZero() {
		return domain.LockoutInfo{}, ErrIdentityRequired
	}

	previous, err := s.load(ctx, key)
	if err != nil {
		span.RecordError(err)
		return domain.LockoutInfo{}, fmt.Errorf("load lockout state: %w", err)
	}

	reset := domain.NewLockoutInfo(key)
	reset.UpdatedAt = s.now()
	if err := s.store.StoreLockoutInfo(ctx, reset); err != nil {
		span.RecordError(err)
		return domain.LockoutInfo{}, fmt.Errorf("store lockout state: %w", err)
	}

	if s.audit != nil {
		_, err := s.audit.LogEvent(ctx, domain.AuditEntry{
			Type:     domain.AuditAccountUnlocked,
			Result:   domain.AuditResultSuccess,
			UserID:   key.UserID,
			Resource: "account_lockout",
			Details: map[string]any{
				auditDetailCategory:      domain.AuditCategoryAdmin,
				"admin_user_id":          adminUserID,
				"reason":                 reason,
				"email":                  key.Email,
				"previous_status":        string(previous.Status()),
				"previous_attempt_count": previous.AttemptCount,
			},
		})
		if err != nil {
			return reset, fmt.Errorf("audit unlock: %w", err)
		}
	}

	logger.WithContext(ctx, s.logger).Info("account unlocked by admin",
		zap.String("identity", maskedIdentity(key)),
		zap.String("admin_user_id", adminUserID),
	)
	return reset, nil
}

// LockAccount places an administrative lock on key. A non-positive duration
// falls back to the policy's base lockout duration.
func (s *LockoutService) LockAccount(ctx context.Context, key domain.LockoutKey, adminUserID string, reason domain.LockoutReason, duration time.Duration, permanent bool) (domain.LockoutInfo, error) {
	ctx, span := tracer.Start(ctx, "lockout.LockAccount")
	defer span.End()

	if key.IsZero() {
		return domain.LockoutInfo{}, ErrIdentityRequired
	}
	if !reason.IsValid() {
		reason = domain.LockoutReasonAdminAction
	}

	info, err := s.load(ctx, key)
	if err != nil {
		span.RecordError(err)
		return domain.LockoutInfo{}, fmt.Errorf("load lockout state: %w", err)
	}

	now := s.now()
	if duration <= 0 {
		duration = s.policy.LockoutDuration
	}
	if duration > s.policy.MaxLockoutDuration {
		duration = s.policy.MaxLockoutDuration
	}

	lockedAt := now
	info.IsLocked = true
	info.Reason = reason
	info.LockedAt = &lockedAt
	info.LockoutCount++
	info.IsPermanent = permanent
	info.UpdatedAt = now
	info.UnlockAt = nil
	if !permanent {
		unlockAt := now.Add(duration)
		info.UnlockAt = &unlockAt
	}

	if err := s.store.StoreLockoutInfo(ctx, info); err != nil {
		span.RecordError(err)
		return domain.LockoutInfo{}, fmt.Errorf("store lockout state: %w", err)
	}
	s.metrics.ObserveLockout(reason, permanent)

	if s.audit != nil {
		_, err := s.audit.LogEvent(ctx, domain.AuditEntry{
			Type:     domain.AuditAccountLocked,
			Result:   domain.AuditResultSuccess,
			UserID:   key.UserID,
			Resource: "account_lockout",
			Details: map[string]any{
				auditDetailCategory: domain.AuditCategoryAdmin,
				"admin_user_id":     adminUserID,
				"lockout_reason":    string(reason),
				"email":             key.Email,
				"is_permanent":      permanent,
				"unlock_at":         formatTime(info.UnlockAt),
			},
		})
		if err != nil {
			return info, fmt.Errorf("audit lock: %w", err)
		}
	}
	return info, nil
}

// GetLockoutHistory reports the current state and attempt history of key.
// Read failures degrade to whatever could be loaded.
func (s *LockoutService) GetLockoutHistory(ctx context.Context, key domain.LockoutKey, requestedBy string) (domain.LockoutHistory, error) {
	ctx, span := tracer.Start(ctx, "lockout.GetLockoutHistory")
	defer span.End()

	if key.IsZero() {
		return domain.LockoutHistory{}, ErrIdentityRequired
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("identity", maskedIdentity(key)))
	since := s.now().Add(-s.policy.HistoryWindow)
	history := domain.LockoutHistory{
		Current:       domain.NewLockoutInfo(key),
		Attempts:      []domain.BruteForceAttempt{},
		UniqueIPs:     []string{},
		WindowStarted: since,
	}

	if info, err := s.load(ctx, key); err != nil {
		log.Warn("lockout state unavailable for history", zap.Error(err))
	} else {
		history.Current = info
	}

	attempts, err := s.store.GetRecentAttempts(ctx, key, since)
	if err != nil {
		log.Warn("attempt history unavailable", zap.Error(err))
	} else if attempts != nil {
		history.Attempts = attempts
	}

	ips := make(map[string]struct{})
	for _, attempt := range history.Attempts {
		if attempt.Success {
			history.SuccessCount++
		} else {
			history.FailedCount++
		}
		if attempt.IPAddress != "" {
			ips[attempt.IPAddress] = struct{}{}
		}
	}
	for ip := range ips {
		history.UniqueIPs = append(history.UniqueIPs, ip)
	}
	sort.Strings(history.UniqueIPs)

	s.logAdminRead(ctx, requestedBy, "view_lockout_history", key)
	return history, nil
}

// GetThreatAssessment scores the recent attempts recorded for key.
func (s *LockoutService) GetThreatAssessment(ctx context.Context, key domain.LockoutKey, requestedBy string) (domain.ThreatAssessment, error) {
	ctx, span := tracer.Start(ctx, "lockout.GetThreatAssessment")
	defer span.End()

	if key.IsZero() {
		return domain.ThreatAssessment{}, ErrIdentityRequired
	}

	now := s.now()
	attempts, err := s.store.GetRecentAttempts(ctx, key, now.Add(-s.policy.HistoryWindow))
	if err != nil {
		logger.WithContext(ctx, s.logger).Warn("attempt history unavailable for assessment",
			zap.String("identity", maskedIdentity(key)),
			zap.Error(err),
		)
		attempts = nil
	}

	assessment := assessThreat(s.policy, attempts, now)
	s.logAdminRead(ctx, requestedBy, "view_threat_assessment", key)
	return assessment, nil
}

// lockoutReason applies the lock rule; the first matching reason wins.
func (s *LockoutService) lockoutReason(info domain.LockoutInfo, assessment domain.ThreatAssessment) (domain.LockoutReason, bool) {
	switch {
	case info.AttemptCount >= s.policy.MaxFailedAttempts:
		return domain.LockoutReasonFailedAttempts, true
	case assessment.Level == domain.ThreatLevelCritical:
		return domain.LockoutReasonBruteForce, true
	case assessment.HasIndicator(domain.IndicatorRapidFire):
		return domain.LockoutReasonRapidFire, true
	case assessment.HasIndicator(domain.IndicatorCredentialStuffing):
		return domain.LockoutReasonCredentialStuffing, true
	case assessment.Level == domain.ThreatLevelHigh && len(assessment.Indicators) >= 2:
		return domain.LockoutReasonSuspiciousActivity, true
	default:
		return domain.LockoutReasonNone, false
	}
}

func (s *LockoutService) applyLock(info domain.LockoutInfo, reason domain.LockoutReason, level domain.ThreatLevel, now time.Time) domain.LockoutInfo {
	lockedAt := now
	info.IsLocked = true
	info.Reason = reason
	info.LockedAt = &lockedAt

	if info.AttemptCount >= s.policy.PermanentLockoutThreshold {
		info.IsPermanent = true
		info.UnlockAt = nil
		info.LockoutCount++
		return info
	}

	unlockAt := now.Add(s.lockoutDuration(info.LockoutCount, level))
	info.UnlockAt = &unlockAt
	info.IsPermanent = false
	info.LockoutCount++
	return info
}

// lockoutDuration computes the lock length for an identity that has already
// been locked priorLockouts times.
func (s *LockoutService) lockoutDuration(priorLockouts int, level domain.ThreatLevel) time.Duration {
	duration := s.policy.LockoutDuration
	if s.policy.ProgressiveLockout {
		multiplier := priorLockouts + 1
		if multiplier > maxProgressiveMultiplier {
			multiplier = maxProgressiveMultiplier
		}
		duration *= time.Duration(multiplier)
	}

	switch level {
	case domain.ThreatLevelCritical:
		duration *= 3
	case domain.ThreatLevelHigh:
		duration *= 2
	}

	if duration > s.policy.MaxLockoutDuration {
		duration = s.policy.MaxLockoutDuration
	}
	return duration
}

func (s *LockoutService) load(ctx context.Context, key domain.LockoutKey) (domain.LockoutInfo, error) {
	info, err := s.store.GetLockoutInfo(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewLockoutInfo(key), nil
	}
	if err != nil {
		return domain.LockoutInfo{}, err
	}
	if info == nil {
		return domain.NewLockoutInfo(key), nil
	}
	return *info, nil
}

func (s *LockoutService) failSecure(key domain.LockoutKey, now time.Time) domain.LockoutInfo {
	info := domain.NewLockoutInfo(key)
	lockedAt := now
	unlockAt := now.Add(s.policy.FailSecureLockDuration)
	info.IsLocked = true
	info.Reason = domain.LockoutReasonSystemError
	info.LockedAt = &lockedAt
	info.UnlockAt = &unlockAt
	info.UpdatedAt = now
	return info
}

func (s *LockoutService) storeAttempt(ctx context.Context, key domain.LockoutKey, attempt domain.BruteForceAttempt) {
	if err := s.store.StoreAttempt(ctx, key, attempt); err != nil {
		logger.WithContext(ctx, s.logger).Warn("persist attempt failed",
			zap.String("identity", maskedIdentity(key)),
			zap.Error(err),
		)
	}
}

func (s *LockoutService) logSecurity(ctx context.Context, eventType domain.AuditEventType, severity domain.AuditSeverity, key domain.LockoutKey, ipAddress, userAgent string, details map[string]any) {
	if s.audit == nil {
		return
	}
	details["email"] = key.Email
	actor := domain.AuditActor{UserID: key.UserID, IPAddress: ipAddress, UserAgent: userAgent}

	var err error
	if eventType == domain.AuditLoginFailure {
		_, err = s.audit.LogAuthenticationEvent(ctx, eventType, domain.AuditResultFailure, actor, details)
	} else {
		_, err = s.audit.LogSecurityEvent(ctx, eventType, severity, actor, details)
	}
	if err != nil {
		logger.WithContext(ctx, s.logger).Error("lockout audit event lost",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

func (s *LockoutService) logAuthentication(ctx context.Context, eventType domain.AuditEventType, result domain.AuditResult, key domain.LockoutKey, ipAddress, userAgent string, details map[string]any) {
	if s.audit == nil {
		return
	}
	details["email"] = key.Email
	actor := domain.AuditActor{UserID: key.UserID, IPAddress: ipAddress, UserAgent: userAgent}
	if _, err := s.audit.LogAuthenticationEvent(ctx, eventType, result, actor, details); err != nil {
		logger.WithContext(ctx, s.logger).Error("authentication audit event lost",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

func (s *LockoutService) logAdminRead(ctx context.Context, requestedBy, action string, key domain.LockoutKey) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.LogAdminAction(ctx, requestedBy, action, key.UserID, domain.AuditActor{}, map[string]any{
		"email": key.Email,
	})
	if err != nil {
		logger.WithContext(ctx, s.logger).Warn("admin read not audited",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// expireLock clears the lock fields of a lapsed temporary lock. Counters are
// kept so repeat offences keep escalating.
func expireLock(info domain.LockoutInfo, now time.Time) domain.LockoutInfo {
	info.IsLocked = false
	info.Reason = domain.LockoutReasonNone
	info.LockedAt = nil
	info.UnlockAt = nil
	info.UpdatedAt = now
	return info
}

func maskedIdentity(key domain.LockoutKey) string {
	if strings.TrimSpace(key.UserID) != "" {
		return key.String()
	}
	return "email:" + logger.MaskEmail(strings.ToLower(strings.TrimSpace(key.Email)))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
