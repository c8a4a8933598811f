package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

var threatBase = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seconds(values ...int) []time.Duration {
	out := make([]time.Duration, len(values))
	for i, v := range values {
		out[i] = time.Duration(v) * time.Second
	}
	return out
}

func buildAttempts(offsets []time.Duration, ip, ua func(int) string) []domain.BruteForceAttempt {
	attempts := make([]domain.BruteForceAttempt, len(offsets))
	for i, offset := range offsets {
		attempts[i] = domain.BruteForceAttempt{Timestamp: threatBase.Add(offset)}
		if ip != nil {
			attempts[i].IPAddress = ip(i)
		}
		if ua != nil {
			attempts[i].UserAgent = ua(i)
		}
	}
	return attempts
}

func constant(value string) func(int) string {
	return func(int) string { return value }
}

// irregular returns n offsets spaced far enough apart and uneven enough to
// avoid both the rapid-fire and bot-timing indicators.
func irregular(n int) []time.Duration {
	out := make([]time.Duration, n)
	elapsed := time.Duration(0)
	for i := range out {
		out[i] = elapsed
		elapsed += time.Duration(90+(i%4)*17) * time.Second
	}
	return out
}

func TestAssessThreatIndicators(t *testing.T) {
	policy := domain.DefaultLockoutPolicy()

	cases := []struct {
		name      string
		attempts  []domain.BruteForceAttempt
		score     int
		level     domain.ThreatLevel
		indicator string
	}{
		{
			name:     "no history",
			attempts: nil,
			score:    0,
			level:    domain.ThreatLevelLow,
		},
		{
			name:      "rapid fire",
			attempts:  buildAttempts(seconds(0, 3, 9, 10, 18, 22, 30, 31, 40, 49), constant("10.0.0.1"), nil),
			score:     riskRapidFire,
			level:     domain.ThreatLevelMedium,
			indicator: domain.IndicatorRapidFire,
		},
		{
			name:      "multiple ips",
			attempts:  buildAttempts(irregular(5), func(i int) string { return fmt.Sprintf("10.0.0.%d", i) }, nil),
			score:     riskMultipleIPs,
			level:     domain.ThreatLevelLow,
			indicator: domain.IndicatorMultipleIPs,
		},
		{
			name:      "credential stuffing",
			attempts:  buildAttempts(irregular(21), nil, constant("python-requests/2.31")),
			score:     riskCredentialStuffing,
			level:     domain.ThreatLevelMedium,
			indicator: domain.IndicatorCredentialStuffing,
		},
		{
			name:      "distributed attack",
			attempts:  buildAttempts(irregular(11), constant("203.0.113.7"), nil),
			score:     riskDistributedAttack,
			level:     domain.ThreatLevelMedium,
			indicator: domain.IndicatorDistributedAttack,
		},
		{
			name:      "bot timing",
			attempts:  buildAttempts(seconds(0, 30, 60, 90, 120), nil, nil),
			score:     riskBotTiming,
			level:     domain.ThreatLevelLow,
			indicator: domain.IndicatorBotTiming,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := threatBase
			if n := len(tc.attempts); n > 0 {
				now = tc.attempts[n-1].Timestamp
			}

			got := assessThreat(policy, tc.attempts, now)
			if got.RiskScore != tc.score || got.Level != tc.level {
				t.Fatalf("expected score %d level %s, got %d %s (%v)", tc.score, tc.level, got.RiskScore, got.Level, got.Indicators)
			}
			if tc.indicator == "" {
				if len(got.Indicators) != 0 || got.Confidence != 0.4 || got.RecommendedAction != ActionMonitor {
					t.Fatalf("unexpected clean assessment: %+v", got)
				}
				return
			}
			if len(got.Indicators) != 1 || !got.HasIndicator(tc.indicator) {
				t.Fatalf("expected only %s, got %v", tc.indicator, got.Indicators)
			}
		})
	}
}

func TestAssessThreatCombinedAttackIsCritical(t *testing.T) {
	offsets := make([]time.Duration, 21)
	for i := range offsets {
		offsets[i] = time.Duration(i) * 2 * time.Second
	}
	attempts := buildAttempts(offsets, constant("203.0.113.7"), constant("curl/8.0"))

	got := assessThreat(domain.DefaultLockoutPolicy(), attempts, attempts[len(attempts)-1].Timestamp)

	if got.Level != domain.ThreatLevelCritical || got.RiskScore != 100 {
		t.Fatalf("expected capped critical score, got %d %s", got.RiskScore, got.Level)
	}
	for _, indicator := range []string{
		domain.IndicatorRapidFire,
		domain.IndicatorCredentialStuffing,
		domain.IndicatorDistributedAttack,
		domain.IndicatorBotTiming,
	} {
		if !got.HasIndicator(indicator) {
			t.Fatalf("expected %s in %v", indicator, got.Indicators)
		}
	}
	if got.Confidence != 1.0 {
		t.Fatalf("expected confidence capped at 1.0, got %f", got.Confidence)
	}
	if got.RecommendedAction != ActionLockAndAlert {
		t.Fatalf("unexpected action %s", got.RecommendedAction)
	}
}

func TestAssessThreatIgnoresSuccessfulAttempts(t *testing.T) {
	attempts := buildAttempts(seconds(0, 30, 60, 90, 120), nil, nil)
	for i := range attempts {
		attempts[i].Success = true
	}

	got := assessThreat(domain.DefaultLockoutPolicy(), attempts, attempts[len(attempts)-1].Timestamp)
	if got.RiskScore != 0 {
		t.Fatalf("expected successful attempts to be ignored, got %+v", got)
	}
}

func TestThreatLevelThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  domain.ThreatLevel
	}{
		{0, domain.ThreatLevelLow},
		{29, domain.ThreatLevelLow},
		{30, domain.ThreatLevelMedium},
		{59, domain.ThreatLevelMedium},
		{60, domain.ThreatLevelHigh},
		{79, domain.ThreatLevelHigh},
		{80, domain.ThreatLevelCritical},
		{100, domain.ThreatLevelCritical},
	}
	for _, tc := range cases {
		if got := threatLevelFor(tc.score); got != tc.want {
			t.Fatalf("threatLevelFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
