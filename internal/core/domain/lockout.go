package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidLockoutPolicy indicates the configured lockout policy is inconsistent.
var ErrInvalidLockoutPolicy = errors.New("invalid lockout policy")

// LockoutReason enumerates why an identity was locked.
type LockoutReason string

const (
	LockoutReasonNone                LockoutReason = ""
	LockoutReasonFailedAttempts      LockoutReason = "failed_login_attempts"
	LockoutReasonBruteForce          LockoutReason = "brute_force_attack"
	LockoutReasonRapidFire           LockoutReason = "rapid_fire_attempts"
	LockoutReasonCredentialStuffing  LockoutReason = "credential_stuffing"
	LockoutReasonSuspiciousActivity  LockoutReason = "suspicious_activity"
	LockoutReasonMultipleIPAddresses LockoutReason = "multiple_ip_addresses"
	LockoutReasonAdminAction         LockoutReason = "admin_action"
	LockoutReasonSecurityBreach      LockoutReason = "security_breach"
	LockoutReasonSystemError         LockoutReason = "system_error"
)

var lockoutReasons = map[LockoutReason]struct{}{
	LockoutReasonFailedAttempts:      {},
	LockoutReasonBruteForce:          {},
	LockoutReasonRapidFire:           {},
	LockoutReasonCredentialStuffing:  {},
	LockoutReasonSuspiciousActivity:  {},
	LockoutReasonMultipleIPAddresses: {},
	LockoutReasonAdminAction:         {},
	LockoutReasonSecurityBreach:      {},
	LockoutReasonSystemError:         {},
}

// IsValid reports whether r is one of the known lockout reasons.
func (r LockoutReason) IsValid() bool {
	_, ok := lockoutReasons[r]
	return ok
}

// ParseLockoutReason normalises persisted text into a LockoutReason.
func ParseLockoutReason(value string) (LockoutReason, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return LockoutReasonNone, nil
	}
	reason := LockoutReason(value)
	if !reason.IsValid() {
		return LockoutReasonNone, fmt.Errorf("unknown lockout reason %q", value)
	}
	return reason, nil
}

// ThreatLevel ranks the assessed risk of recent attempts.
type ThreatLevel string

const (
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// ParseThreatLevel normalises persisted text into a ThreatLevel, defaulting to low.
func ParseThreatLevel(value string) (ThreatLevel, error) {
	switch level := ThreatLevel(strings.ToLower(strings.TrimSpace(value))); level {
	case "", ThreatLevelLow:
		return ThreatLevelLow, nil
	case ThreatLevelMedium, ThreatLevelHigh, ThreatLevelCritical:
		return level, nil
	default:
		return ThreatLevelLow, fmt.Errorf("unknown threat level %q", value)
	}
}

// Threat indicator names produced by assessment.
const (
	IndicatorRapidFire          = "rapid_fire_attempts"
	IndicatorMultipleIPs        = "multiple_ip_addresses"
	IndicatorCredentialStuffing = "potential_credential_stuffing"
	IndicatorDistributedAttack  = "distributed_attack_pattern"
	IndicatorBotTiming          = "bot_like_timing"
)

// LockoutStatus is the derived state-machine position of an identity.
type LockoutStatus string

const (
	LockoutStatusUnlocked          LockoutStatus = "unlocked"
	LockoutStatusLocked            LockoutStatus = "locked"
	LockoutStatusPermanentlyLocked LockoutStatus = "permanently_locked"
)

// LockoutKey identifies the subject of lockout tracking.
type LockoutKey struct {
	UserID string
	Email  string
}

// IsZero reports whether neither identifier is present.
func (k LockoutKey) IsZero() bool {
	return strings.TrimSpace(k.UserID) == "" && strings.TrimSpace(k.Email) == ""
}

// String returns the storage key. The user id wins when both are set.
func (k LockoutKey) String() string {
	if id := strings.TrimSpace(k.UserID); id != "" {
		return "user:" + id
	}
	if email := strings.ToLower(strings.TrimSpace(k.Email)); email != "" {
		return "email:" + email
	}
	return ""
}

// LockoutPolicy is the immutable lockout configuration loaded at startup.
type LockoutPolicy struct {
	MaxFailedAttempts         int
	LockoutDuration           time.Duration
	ProgressiveLockout        bool
	MaxLockoutDuration        time.Duration
	PermanentLockoutThreshold int

	RapidFireThreshold          int
	RapidFireWindow             time.Duration
	MultiIPThreshold            int
	MultiIPWindow               time.Duration
	CredentialStuffingThreshold int
	BotTimingMinAttempts        int
	BotTimingMaxSpread          time.Duration
	HistoryWindow               time.Duration

	// FailSecureLockDuration is the retry window reported when lockout state cannot be read.
	FailSecureLockDuration time.Duration
}

// DefaultLockoutPolicy returns the policy used when configuration supplies no overrides.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFailedAttempts:           5,
		LockoutDuration:             30 * time.Minute,
		ProgressiveLockout:          true,
		MaxLockoutDuration:          24 * time.Hour,
		PermanentLockoutThreshold:   10,
		RapidFireThreshold:          10,
		RapidFireWindow:             time.Minute,
		MultiIPThreshold:            5,
		MultiIPWindow:               time.Hour,
		CredentialStuffingThreshold: 20,
		BotTimingMinAttempts:        5,
		BotTimingMaxSpread:          2 * time.Second,
		HistoryWindow:               24 * time.Hour,
		FailSecureLockDuration:      5 * time.Minute,
	}
}

// Validate rejects inconsistent policies so misconfiguration fails at startup.
func (p LockoutPolicy) Validate() error {
	switch {
	case p.MaxFailedAttempts < 1:
		return fmt.Errorf("%w: max_failed_attempts must be positive", ErrInvalidLockoutPolicy)
	case p.LockoutDuration <= 0:
		return fmt.Errorf("%w: lockout_duration must be positive", ErrInvalidLockoutPolicy)
	case p.MaxLockoutDuration < p.LockoutDuration:
		return fmt.Errorf("%w: max_lockout_duration must be >= lockout_duration", ErrInvalidLockoutPolicy)
	case p.PermanentLockoutThreshold < p.MaxFailedAttempts:
		return fmt.Errorf("%w: permanent_lockout_threshold must be >= max_failed_attempts", ErrInvalidLockoutPolicy)
	case p.RapidFireThreshold < 1 || p.RapidFireWindow <= 0:
		return fmt.Errorf("%w: rapid fire threshold and window must be positive", ErrInvalidLockoutPolicy)
	case p.MultiIPThreshold < 1 || p.MultiIPWindow <= 0:
		return fmt.Errorf("%w: multi ip threshold and window must be positive", ErrInvalidLockoutPolicy)
	case p.CredentialStuffingThreshold < 1:
		return fmt.Errorf("%w: credential_stuffing_threshold must be positive", ErrInvalidLockoutPolicy)
	case p.BotTimingMinAttempts < 3 || p.BotTimingMaxSpread <= 0:
		return fmt.Errorf("%w: bot timing requires at least 3 attempts and a positive spread", ErrInvalidLockoutPolicy)
	case p.HistoryWindow <= 0:
		return fmt.Errorf("%w: history_window must be positive", ErrInvalidLockoutPolicy)
	case p.FailSecureLockDuration <= 0:
		return fmt.Errorf("%w: fail_secure_lock_duration must be positive", ErrInvalidLockoutPolicy)
	}
	return nil
}

// LockoutInfo is the mutable per-identity lockout state.
type LockoutInfo struct {
	UserID       string
	Email        string
	IsLocked     bool
	Reason       LockoutReason
	LockedAt     *time.Time
	UnlockAt     *time.Time
	AttemptCount int
	LockoutCount int
	ThreatLevel  ThreatLevel
	IsPermanent  bool
	UpdatedAt    time.Time
}

// NewLockoutInfo returns the zero state for an identity.
func NewLockoutInfo(key LockoutKey) LockoutInfo {
	return LockoutInfo{
		UserID:      strings.TrimSpace(key.UserID),
		Email:       strings.ToLower(strings.TrimSpace(key.Email)),
		ThreatLevel: ThreatLevelLow,
	}
}

// Key returns the identity the state belongs to.
func (i LockoutInfo) Key() LockoutKey {
	return LockoutKey{UserID: i.UserID, Email: i.Email}
}

// Status derives the state-machine position.
func (i LockoutInfo) Status() LockoutStatus {
	switch {
	case i.IsLocked && i.IsPermanent:
		return LockoutStatusPermanentlyLocked
	case i.IsLocked:
		return LockoutStatusLocked
	default:
		return LockoutStatusUnlocked
	}
}

// Expired reports whether a temporary lock has passed its unlock time.
func (i LockoutInfo) Expired(now time.Time) bool {
	if !i.IsLocked || i.IsPermanent || i.UnlockAt == nil {
		return false
	}
	return !now.Before(*i.UnlockAt)
}

// RetryAfter returns the time remaining until a temporary lock lifts.
func (i LockoutInfo) RetryAfter(now time.Time) time.Duration {
	if !i.IsLocked || i.IsPermanent || i.UnlockAt == nil {
		return 0
	}
	if remaining := i.UnlockAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// BruteForceAttempt is one authentication attempt kept for threat assessment.
type BruteForceAttempt struct {
	Timestamp time.Time
	IPAddress string
	UserAgent string
	Success   bool
	ErrorType string
}

// ThreatAssessment is the output of the threat scoring heuristic.
type ThreatAssessment struct {
	Level             ThreatLevel
	RiskScore         int
	Indicators        []string
	RecommendedAction string
	Confidence        float64
}

// HasIndicator reports whether the assessment flagged the named indicator.
func (a ThreatAssessment) HasIndicator(name string) bool {
	for _, indicator := range a.Indicators {
		if indicator == name {
			return true
		}
	}
	return false
}

// LockoutHistory is a read-only report of an identity's lockout state and recent attempts.
type LockoutHistory struct {
	Current       LockoutInfo
	Attempts      []BruteForceAttempt
	FailedCount   int
	SuccessCount  int
	UniqueIPs     []string
	WindowStarted time.Time
}
