package security

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
)

// Character pool sizes used for the entropy estimate.
const (
	poolLowercase = 26
	poolUppercase = 26
	poolDigits    = 10
	poolSpecial   = 32
)

// Score weights.
const (
	lengthBasePoints    = 10
	lengthPointsPerChar = 2
	lengthMaxPoints     = 30
	classPointsPerChar  = 2
	classMaxPoints      = 10
	entropyDivisor      = 4
	entropyMaxPoints    = 30
	minPersonalTokenLen = 3
)

type violationRule struct {
	penalty    int
	suggestion string
}

var violationRules = map[domain.PasswordViolation]violationRule{
	domain.ViolationTooShort:         {20, "Use a longer password."},
	domain.ViolationTooLong:          {10, "Use a shorter password."},
	domain.ViolationMissingUppercase: {10, "Add uppercase letters."},
	domain.ViolationMissingLowercase: {10, "Add lowercase letters."},
	domain.ViolationMissingDigits:    {10, "Add digits."},
	domain.ViolationMissingSpecial:   {10, "Add special characters such as !, # or %."},
	domain.ViolationCommonPassword:   {30, "Avoid commonly used passwords."},
	domain.ViolationDictionaryWord:   {15, "Avoid dictionary words."},
	domain.ViolationSequentialChars:  {10, "Avoid sequences such as abcd or 4321."},
	domain.ViolationRepeatedChars:    {10, "Avoid repeating the same character."},
	domain.ViolationPersonalInfo:     {20, "Do not include your name, username or email."},
	domain.ViolationPasswordReused:   {25, "Choose a password you have not used recently."},
}

type characterCounts struct {
	upper, lower, digits, special int
}

func countCharacters(password string) characterCounts {
	var c characterCounts
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper++
		case unicode.IsLower(r), unicode.IsLetter(r):
			c.lower++
		case unicode.IsDigit(r):
			c.digits++
		default:
			c.special++
		}
	}
	return c
}

func (c characterCounts) poolSize() int {
	pool := 0
	if c.lower > 0 {
		pool += poolLowercase
	}
	if c.upper > 0 {
		pool += poolUppercase
	}
	if c.digits > 0 {
		pool += poolDigits
	}
	if c.special > 0 {
		pool += poolSpecial
	}
	return pool
}

// PasswordValidator scores passwords against a PasswordPolicy.
type PasswordValidator struct {
	policy     domain.PasswordPolicy
	hasher     port.PasswordHasher
	common     map[string]struct{}
	dictionary []string
	logger     *zap.Logger
}

// NewPasswordValidator constructs a validator. hasher is only needed for history checks and may be nil.
func NewPasswordValidator(policy domain.PasswordPolicy, hasher port.PasswordHasher) *PasswordValidator {
	common := make(map[string]struct{}, len(commonPasswords))
	for _, pw := range commonPasswords {
		common[pw] = struct{}{}
	}
	return &PasswordValidator{
		policy:     policy,
		hasher:     hasher,
		common:     common,
		dictionary: dictionaryWords,
		logger:     zap.NewNop(),
	}
}

// WithLogger attaches a logger for history lookup failures.
func (v *PasswordValidator) WithLogger(logger *zap.Logger) *PasswordValidator {
	if logger != nil {
		v.logger = logger
	}
	return v
}

// Validate scores password and lists every violated rule. It never fails; user and history are optional.
// history holds previous encoded hashes, newest first.
func (v *PasswordValidator) Validate(ctx context.Context, password string, user *domain.UserInfo, history []string) domain.PasswordValidationResult {
	length := utf8.RuneCountInString(password)
	lowered := strings.ToLower(password)
	counts := countCharacters(password)

	var violations []domain.PasswordViolation
	add := func(violation domain.PasswordViolation) {
		violations = append(violations, violation)
	}

	if length < v.policy.MinLength {
		add(domain.ViolationTooShort)
	}
	if v.policy.MaxLength > 0 && length > v.policy.MaxLength {
		add(domain.ViolationTooLong)
	}
	if v.policy.RequireUppercase && counts.upper < atLeastOne(v.policy.MinUppercase) {
		add(domain.ViolationMissingUppercase)
	}
	if v.policy.RequireLowercase && counts.lower < atLeastOne(v.policy.MinLowercase) {
		add(domain.ViolationMissingLowercase)
	}
	if v.policy.RequireDigits && counts.digits < atLeastOne(v.policy.MinDigits) {
		add(domain.ViolationMissingDigits)
	}
	if v.policy.RequireSpecial && counts.special < atLeastOne(v.policy.MinSpecial) {
		add(domain.ViolationMissingSpecial)
	}
	if v.policy.PreventCommonPasswords && v.isCommon(lowered) {
		add(domain.ViolationCommonPassword)
	}
	if v.policy.PreventDictionaryWords && v.containsDictionaryWord(lowered) {
		add(domain.ViolationDictionaryWord)
	}
	if v.policy.PreventSequentialChars && hasSequentialRun(lowered, v.policy.SequentialRunLength) {
		add(domain.ViolationSequentialChars)
	}
	if v.policy.PreventRepeatedChars && hasRepeatedRun(password, v.policy.MaxRepeatedChars) {
		add(domain.ViolationRepeatedChars)
	}

	inputs := personalTokens(user)
	if v.policy.PreventPersonalInfo && containsAny(lowered, inputs) {
		add(domain.ViolationPersonalInfo)
	}
	if v.policy.HistoryCount > 0 && len(history) > 0 && v.reusesHistory(ctx, password, history) {
		add(domain.ViolationPasswordReused)
	}

	entropy := 0.0
	if pool := counts.poolSize(); pool > 0 && length > 0 {
		entropy = float64(length) * math.Log2(float64(pool))
	}

	score := 0
	if length >= v.policy.MinLength {
		score += min(lengthBasePoints+(length-v.policy.MinLength)*lengthPointsPerChar, lengthMaxPoints)
	}
	for _, n := range []int{counts.upper, counts.lower, counts.digits, counts.special} {
		score += min(n*classPointsPerChar, classMaxPoints)
	}
	score += int(math.Min(entropy/entropyDivisor, entropyMaxPoints))

	suggestions := make([]string, 0, len(violations))
	for _, violation := range violations {
		rule := violationRules[violation]
		score -= rule.penalty
		suggestions = append(suggestions, rule.suggestion)
	}
	score = max(0, min(score, 100))

	result := domain.PasswordValidationResult{
		IsValid:     len(violations) == 0,
		Strength:    strengthFor(score, len(violations)),
		Score:       score,
		Violations:  violations,
		Suggestions: suggestions,
		Entropy:     entropy,
	}

	if length > 0 && (v.policy.MaxLength == 0 || length <= v.policy.MaxLength) {
		result.GuessScore, result.EstimatedCrackTime = v.estimate(password, inputs)
	}

	return result
}

// estimate runs zxcvbn, which is known to panic on some unusual inputs.
func (v *PasswordValidator) estimate(password string, inputs []string) (score int, crackTime string) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Warn("password strength estimator panicked", zap.Any("panic", r))
			score, crackTime = 0, ""
		}
	}()
	estimate := zxcvbn.PasswordStrength(password, inputs)
	return estimate.Score, estimate.CrackTimeDisplay
}

func strengthFor(score, violations int) domain.PasswordStrength {
	if violations > 0 {
		return domain.PasswordStrengthVeryWeak
	}
	switch {
	case score >= 80:
		return domain.PasswordStrengthVeryStrong
	case score >= 60:
		return domain.PasswordStrengthStrong
	case score >= 40:
		return domain.PasswordStrengthMedium
	case score >= 20:
		return domain.PasswordStrengthWeak
	default:
		return domain.PasswordStrengthVeryWeak
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func (v *PasswordValidator) isCommon(lowered string) bool {
	_, ok := v.common[lowered]
	return ok
}

func (v *PasswordValidator) containsDictionaryWord(lowered string) bool {
	for _, word := range v.dictionary {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}

func (v *PasswordValidator) reusesHistory(ctx context.Context, password string, history []string) bool {
	if v.hasher == nil {
		return false
	}
	if len(history) > v.policy.HistoryCount {
		history = history[:v.policy.HistoryCount]
	}
	for _, encoded := range history {
		ok, err := v.hasher.VerifyPassword(ctx, password, encoded)
		if err != nil {
			v.logger.Warn("password history check failed", zap.Error(err))
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// hasSequentialRun reports an ascending or descending run of letters or digits of at least runLength.
func hasSequentialRun(lowered string, runLength int) bool {
	if runLength < 2 {
		return false
	}
	runes := []rune(lowered)
	asc, desc := 1, 1
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		sameKind := (isASCIILetter(prev) && isASCIILetter(cur)) || (isASCIIDigit(prev) && isASCIIDigit(cur))
		switch {
		case sameKind && cur-prev == 1:
			asc++
			desc = 1
		case sameKind && prev-cur == 1:
			desc++
			asc = 1
		default:
			asc, desc = 1, 1
		}
		if asc >= runLength || desc >= runLength {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports a character repeated consecutively more than maxRepeated times.
func hasRepeatedRun(password string, maxRepeated int) bool {
	if maxRepeated < 1 {
		return false
	}
	run := 0
	var prev rune
	for i, r := range []rune(password) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run > maxRepeated {
			return true
		}
		prev = r
	}
	return false
}

func isASCIILetter(r rune) bool { return r >= 'a' && r <= 'z' }

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

// personalTokens lowercases the personal fields of user into substrings worth rejecting.
func personalTokens(user *domain.UserInfo) []string {
	if user == nil {
		return nil
	}

	var tokens []string
	seen := make(map[string]struct{})
	push := func(value string) {
		value = strings.ToLower(strings.TrimSpace(value))
		if utf8.RuneCountInString(value) < minPersonalTokenLen {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		tokens = append(tokens, value)
	}
	split := func(value string) {
		push(value)
		for _, part := range strings.FieldsFunc(value, func(r rune) bool {
			return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsSpace(r)
		}) {
			push(part)
		}
	}

	if local, _, ok := strings.Cut(user.Email, "@"); ok {
		split(local)
	} else {
		split(user.Email)
	}
	split(user.Username)
	split(user.FirstName)
	split(user.LastName)
	split(user.DisplayName)
	return tokens
}

func containsAny(lowered string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}
