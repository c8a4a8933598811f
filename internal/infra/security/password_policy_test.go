package security

import (
	"context"
	"testing"
	"time"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

func TestCheckPasswordExpiryDisabled(t *testing.T) {
	svc := newTestPasswordSecurity(t, domain.DefaultPasswordPolicy())

	expiry := svc.CheckPasswordExpiry(time.Now().Add(-10 * 365 * 24 * time.Hour))
	if expiry.IsExpired {
		t.Fatal("passwords should never expire when expiry is disabled")
	}
	if expiry.ExpiresAt != nil || expiry.DaysRemaining != nil {
		t.Fatalf("expected empty expiry details, got %+v", expiry)
	}
}

func TestCheckPasswordExpiry(t *testing.T) {
	policy := domain.DefaultPasswordPolicy()
	policy.ExpiryDays = 90
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestPasswordSecurity(t, policy).WithClock(func() time.Time { return now })

	fresh := svc.CheckPasswordExpiry(now.Add(-80 * 24 * time.Hour))
	if fresh.IsExpired {
		t.Fatal("expected password to still be valid")
	}
	if fresh.DaysRemaining == nil || *fresh.DaysRemaining != 10 {
		t.Fatalf("expected 10 days remaining, got %v", fresh.DaysRemaining)
	}
	if want := now.Add(10 * 24 * time.Hour); !fresh.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry at %v, got %v", want, fresh.ExpiresAt)
	}

	stale := svc.CheckPasswordExpiry(now.Add(-91 * 24 * time.Hour))
	if !stale.IsExpired {
		t.Fatal("expected password to be expired")
	}
	if stale.DaysRemaining == nil || *stale.DaysRemaining != 0 {
		t.Fatalf("expected 0 days remaining, got %v", stale.DaysRemaining)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	svc := newTestPasswordSecurity(t, domain.DefaultPasswordPolicy())
	ctx := context.Background()

	for _, pw := range []string{"hola-mundo", "Tr0ub4dor&3xyz!9Qp", "日本語のパスワード", " "} {
		result, err := svc.HashPassword(ctx, pw)
		if err != nil {
			t.Fatalf("HashPassword(%q) returned error: %v", pw, err)
		}
		ok, err := svc.VerifyPassword(ctx, pw, result.Hash)
		if err != nil || !ok {
			t.Fatalf("VerifyPassword(%q) = %v, %v", pw, ok, err)
		}
		ok, err = svc.VerifyPassword(ctx, pw+"x", result.Hash)
		if err != nil || ok {
			t.Fatalf("VerifyPassword(%q) with wrong password = %v, %v", pw, ok, err)
		}
	}
}

func TestNewPasswordSecurityRejectsInvalidPolicy(t *testing.T) {
	policy := domain.DefaultPasswordPolicy()
	policy.MaxLength = 4

	if _, err := NewPasswordSecurity(policy, newTestHasher(t)); err == nil {
		t.Fatal("expected invalid policy to be rejected")
	}
}
