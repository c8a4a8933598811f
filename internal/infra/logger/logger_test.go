package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMasking(t *testing.T) {
	cases := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"email", MaskEmail, "john.doe@example.com", "joh***@example.com"},
		{"short email", MaskEmail, "jo@example.com", "jo***@example.com"},
		{"no at sign", MaskEmail, "not-an-email", "***"},
		{"ipv4", MaskIP, "192.168.1.100", "192.168.*.*"},
		{"ipv6", MaskIP, "2001:0db8:85a3:0000:0000:8a2e:0370:7334", "2001:0db8:85a3:0000:*:*:*:*"},
		{"compressed ipv6", MaskIP, "2001:db8::1", "2001:0db8:0000:0000:*:*:*:*"},
		{"mapped ipv4", MaskIP, "::ffff:10.1.2.3", "10.1.*.*"},
		{"garbage ip", MaskIP, "localhost", "***"},
		{"ip with port", MaskIP, "10.1.2.3:443", "***"},
		{"unicode local part", MaskEmail, "élodie@example.fr", "élo***@example.fr"},
		{"empty local part", MaskEmail, "@example.com", "***"},
		{"empty", MaskEmail, "", ""},
	}

	for _, tc := range cases {
		if got := tc.fn(tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestWithContextAddsCorrelationID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithCorrelationID(context.Background(), "corr-1")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["correlation_id"]; got != "corr-1" {
		t.Fatalf("expected correlation_id corr-1, got %v", got)
	}
	if CorrelationIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty correlation id on bare context")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("development", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	lg, err := New("production", "warn")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if lg.Core().Enabled(zap.InfoLevel) {
		t.Fatal("expected info to be disabled at warn level")
	}
}
