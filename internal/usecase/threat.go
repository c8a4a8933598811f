package usecase

import (
	"math"
	"time"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

const (
	riskRapidFire          = 30
	riskMultipleIPs        = 25
	riskCredentialStuffing = 40
	riskDistributedAttack  = 35
	riskBotTiming          = 20

	// distributedAttackFactor multiplies MaxFailedAttempts to get the per-IP ceiling.
	distributedAttackFactor = 2
)

// Recommended actions attached to a threat assessment.
const (
	ActionMonitor          = "monitor"
	ActionRequireChallenge = "require_additional_verification"
	ActionLockAccount      = "lock_account"
	ActionLockAndAlert     = "lock_account_and_alert"
)

// assessThreat scores failed attempts observed at or before now. Successful
// attempts are ignored; attempts must be ordered oldest first.
func assessThreat(policy domain.LockoutPolicy, attempts []domain.BruteForceAttempt, now time.Time) domain.ThreatAssessment {
	failed := make([]domain.BruteForceAttempt, 0, len(attempts))
	for _, attempt := range attempts {
		if !attempt.Success && !attempt.Timestamp.After(now) {
			failed = append(failed, attempt)
		}
	}

	score := 0
	indicators := make([]string, 0, 5)

	if countSince(failed, now.Add(-policy.RapidFireWindow)) >= policy.RapidFireThreshold {
		score += riskRapidFire
		indicators = append(indicators, domain.IndicatorRapidFire)
	}

	if distinctIPsSince(failed, now.Add(-policy.MultiIPWindow)) >= policy.MultiIPThreshold {
		score += riskMultipleIPs
		indicators = append(indicators, domain.IndicatorMultipleIPs)
	}

	if maxShared(failed, func(a domain.BruteForceAttempt) string { return a.UserAgent }) > policy.CredentialStuffingThreshold {
		score += riskCredentialStuffing
		indicators = append(indicators, domain.IndicatorCredentialStuffing)
	}

	if maxShared(failed, func(a domain.BruteForceAttempt) string { return a.IPAddress }) > distributedAttackFactor*policy.MaxFailedAttempts {
		score += riskDistributedAttack
		indicators = append(indicators, domain.IndicatorDistributedAttack)
	}

	if botLikeTiming(failed, policy.BotTimingMinAttempts, policy.BotTimingMaxSpread) {
		score += riskBotTiming
		indicators = append(indicators, domain.IndicatorBotTiming)
	}

	if score > 100 {
		score = 100
	}

	level := threatLevelFor(score)
	return domain.ThreatAssessment{
		Level:             level,
		RiskScore:         score,
		Indicators:        indicators,
		RecommendedAction: recommendedAction(level),
		Confidence:        math.Min(1.0, 0.4+0.2*float64(len(indicators))),
	}
}

func threatLevelFor(score int) domain.ThreatLevel {
	switch {
	case score >= 80:
		return domain.ThreatLevelCritical
	case score >= 60:
		return domain.ThreatLevelHigh
	case score >= 30:
		return domain.ThreatLevelMedium
	default:
		return domain.ThreatLevelLow
	}
}

func recommendedAction(level domain.ThreatLevel) string {
	switch level {
	case domain.ThreatLevelCritical:
		return ActionLockAndAlert
	case domain.ThreatLevelHigh:
		return ActionLockAccount
	case domain.ThreatLevelMedium:
		return ActionRequireChallenge
	default:
		return ActionMonitor
	}
}

func countSince(attempts []domain.BruteForceAttempt, since time.Time) int {
	n := 0
	for _, attempt := range attempts {
		if !attempt.Timestamp.Before(since) {
			n++
		}
	}
	return n
}

func distinctIPsSince(attempts []domain.BruteForceAttempt, since time.Time) int {
	seen := make(map[string]struct{})
	for _, attempt := range attempts {
		if attempt.IPAddress == "" || attempt.Timestamp.Before(since) {
			continue
		}
		seen[attempt.IPAddress] = struct{}{}
	}
	return len(seen)
}

// maxShared returns the size of the largest group of attempts sharing a non-empty key.
func maxShared(attempts []domain.BruteForceAttempt, key func(domain.BruteForceAttempt) string) int {
	counts := make(map[string]int)
	best := 0
	for _, attempt := range attempts {
		k := key(attempt)
		if k == "" {
			continue
		}
		counts[k]++
		if counts[k] > best {
			best = counts[k]
		}
	}
	return best
}

// botLikeTiming reports whether the last minAttempts attempts arrived at
// near-identical intervals.
func botLikeTiming(attempts []domain.BruteForceAttempt, minAttempts int, maxSpread time.Duration) bool {
	if minAttempts < 2 || len(attempts) < minAttempts {
		return false
	}

	tail := attempts[len(attempts)-minAttempts:]
	shortest := time.Duration(math.MaxInt64)
	longest := time.Duration(0)
	for i := 1; i < len(tail); i++ {
		interval := tail[i].Timestamp.Sub(tail[i-1].Timestamp)
		if interval < shortest {
			shortest = interval
		}
		if interval > longest {
			longest = interval
		}
	}
	return longest-shortest < maxSpread
}
