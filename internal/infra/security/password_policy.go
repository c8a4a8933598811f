package security

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

// PasswordSecurity bundles hashing, policy validation, generation and expiry for one policy.
type PasswordSecurity struct {
	policy    domain.PasswordPolicy
	hasher    *Hasher
	validator *PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordSecurity validates policy and wires a validator that checks history through hasher.
func NewPasswordSecurity(policy domain.PasswordPolicy, hasher *Hasher) (*PasswordSecurity, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if hasher == nil {
		return nil, fmt.Errorf("password security: hasher is required")
	}
	return &PasswordSecurity{
		policy:    policy,
		hasher:    hasher,
		validator: NewPasswordValidator(policy, hasher),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithLogger attaches a logger to the service and its hasher and validator.
func (p *PasswordSecurity) WithLogger(logger *zap.Logger) *PasswordSecurity {
	if logger == nil {
		return p
	}
	p.logger = logger
	p.hasher.WithLogger(logger)
	p.validator.WithLogger(logger)
	return p
}

// WithClock overrides the time source used for expiry calculations.
func (p *PasswordSecurity) WithClock(now func() time.Time) *PasswordSecurity {
	if now != nil {
		p.now = now
	}
	return p
}

// Policy returns the active password policy.
func (p *PasswordSecurity) Policy() domain.PasswordPolicy {
	return p.policy
}

// HashPassword hashes plaintext. Errors are fatal for the caller: an unhashed password must never be stored.
func (p *PasswordSecurity) HashPassword(ctx context.Context, password string) (domain.PasswordHashResult, error) {
	result, err := p.hasher.HashPassword(ctx, password)
	if err != nil {
		p.logger.Error("password hashing failed", zap.Error(err))
		return domain.PasswordHashResult{}, fmt.Errorf("hash password: %w", err)
	}
	return result, nil
}

// VerifyPassword checks password against encoded. Backend failures are returned, not reported as a mismatch.
func (p *PasswordSecurity) VerifyPassword(ctx context.Context, password, encoded string) (bool, error) {
	ok, err := p.hasher.VerifyPassword(ctx, password, encoded)
	if err != nil {
		p.logger.Error("password verification failed", zap.Error(err))
		return false, fmt.Errorf("verify password: %w", err)
	}
	return ok, nil
}

// NeedsRehash reports whether encoded should be replaced on the next successful login.
func (p *PasswordSecurity) NeedsRehash(encoded string) bool {
	return p.hasher.NeedsRehash(encoded)
}

// ValidatePassword scores password against the policy. user and history are optional.
func (p *PasswordSecurity) ValidatePassword(ctx context.Context, password string, user *domain.UserInfo, history []string) domain.PasswordValidationResult {
	return p.validator.Validate(ctx, password, user, history)
}

// GenerateSecurePassword returns a random password satisfying opts.
func (p *PasswordSecurity) GenerateSecurePassword(opts domain.GenerateOptions) (string, error) {
	return GeneratePassword(opts)
}

// CheckPasswordExpiry reports whether a password created at createdAt has outlived the policy.
func (p *PasswordSecurity) CheckPasswordExpiry(createdAt time.Time) domain.PasswordExpiry {
	if p.policy.ExpiryDays <= 0 {
		return domain.PasswordExpiry{}
	}

	expiresAt := createdAt.Add(time.Duration(p.policy.ExpiryDays) * 24 * time.Hour)
	remaining := expiresAt.Sub(p.now())
	days := 0
	if remaining > 0 {
		days = int(math.Ceil(remaining.Hours() / 24))
	}

	return domain.PasswordExpiry{
		IsExpired:     remaining <= 0,
		ExpiresAt:     &expiresAt,
		DaysRemaining: &days,
	}
}
