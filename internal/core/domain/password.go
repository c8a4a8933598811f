package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPasswordPolicy indicates the configured password policy is inconsistent.
var ErrInvalidPasswordPolicy = errors.New("invalid password policy")

// PasswordStrength enumerates the five strength tiers assigned by validation.
type PasswordStrength string

const (
	PasswordStrengthVeryWeak   PasswordStrength = "very_weak"
	PasswordStrengthWeak       PasswordStrength = "weak"
	PasswordStrengthMedium     PasswordStrength = "medium"
	PasswordStrengthStrong     PasswordStrength = "strong"
	PasswordStrengthVeryStrong PasswordStrength = "very_strong"
)

// PasswordViolation identifies a single policy rule a password failed.
type PasswordViolation string

const (
	ViolationTooShort         PasswordViolation = "too_short"
	ViolationTooLong          PasswordViolation = "too_long"
	ViolationMissingUppercase PasswordViolation = "missing_uppercase"
	ViolationMissingLowercase PasswordViolation = "missing_lowercase"
	ViolationMissingDigits    PasswordViolation = "missing_digits"
	ViolationMissingSpecial   PasswordViolation = "missing_special_chars"
	ViolationCommonPassword   PasswordViolation = "common_password"
	ViolationDictionaryWord   PasswordViolation = "dictionary_word"
	ViolationSequentialChars  PasswordViolation = "sequential_chars"
	ViolationRepeatedChars    PasswordViolation = "repeated_chars"
	ViolationPersonalInfo     PasswordViolation = "personal_info"
	ViolationPasswordReused   PasswordViolation = "password_reused"
)

// PasswordPolicy is the immutable password configuration loaded at startup.
type PasswordPolicy struct {
	MinLength int
	MaxLength int

	RequireUppercase bool
	RequireLowercase bool
	RequireDigits    bool
	RequireSpecial   bool
	MinUppercase     int
	MinLowercase     int
	MinDigits        int
	MinSpecial       int

	PreventCommonPasswords bool
	PreventDictionaryWords bool
	PreventSequentialChars bool
	PreventRepeatedChars   bool
	PreventPersonalInfo    bool

	// SequentialRunLength is the shortest ascending or descending run that counts as a violation.
	SequentialRunLength int
	// MaxRepeatedChars is the longest allowed run of one repeated character.
	MaxRepeatedChars int

	// HistoryCount is how many previous hashes are checked for reuse. Zero disables the check.
	HistoryCount int
	// ExpiryDays is the password lifetime. Zero means passwords never expire.
	ExpiryDays int
}

// DefaultPasswordPolicy returns the policy used when configuration supplies no overrides.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:              12,
		MaxLength:              128,
		RequireUppercase:       true,
		RequireLowercase:       true,
		RequireDigits:          true,
		RequireSpecial:         true,
		MinUppercase:           1,
		MinLowercase:           1,
		MinDigits:              1,
		MinSpecial:             1,
		PreventCommonPasswords: true,
		PreventDictionaryWords: true,
		PreventSequentialChars: true,
		PreventRepeatedChars:   true,
		PreventPersonalInfo:    true,
		SequentialRunLength:    4,
		MaxRepeatedChars:       3,
		HistoryCount:           5,
		ExpiryDays:             0,
	}
}

// Validate rejects inconsistent policies so misconfiguration fails at startup.
func (p PasswordPolicy) Validate() error {
	switch {
	case p.MinLength < 1:
		return fmt.Errorf("%w: min_length must be positive", ErrInvalidPasswordPolicy)
	case p.MaxLength < p.MinLength:
		return fmt.Errorf("%w: max_length must be >= min_length", ErrInvalidPasswordPolicy)
	case p.MinUppercase < 0 || p.MinLowercase < 0 || p.MinDigits < 0 || p.MinSpecial < 0:
		return fmt.Errorf("%w: character class minimums must not be negative", ErrInvalidPasswordPolicy)
	case p.PreventSequentialChars && p.SequentialRunLength < 3:
		return fmt.Errorf("%w: sequential_run_length must be at least 3", ErrInvalidPasswordPolicy)
	case p.PreventRepeatedChars && p.MaxRepeatedChars < 1:
		return fmt.Errorf("%w: max_repeated_chars must be positive", ErrInvalidPasswordPolicy)
	case p.HistoryCount < 0:
		return fmt.Errorf("%w: history_count must not be negative", ErrInvalidPasswordPolicy)
	case p.ExpiryDays < 0:
		return fmt.Errorf("%w: expiry_days must not be negative", ErrInvalidPasswordPolicy)
	}
	return nil
}

// PasswordValidationResult describes the outcome of a single validation call.
type PasswordValidationResult struct {
	IsValid     bool
	Strength    PasswordStrength
	Score       int
	Violations  []PasswordViolation
	Suggestions []string
	Entropy     float64

	// GuessScore and EstimatedCrackTime come from the zxcvbn estimator and are informational only.
	GuessScore         int
	EstimatedCrackTime string
}

// HasViolation reports whether the result contains the given violation.
func (r PasswordValidationResult) HasViolation(v PasswordViolation) bool {
	for _, existing := range r.Violations {
		if existing == v {
			return true
		}
	}
	return false
}

// PasswordHashResult is returned by hashing and persisted by the caller next to the user record.
type PasswordHashResult struct {
	Hash      string
	Algorithm string
	Params    HashParams
	CreatedAt time.Time
}

// HashParams captures the cost parameters embedded in an encoded hash.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordExpiry reports where a password stands relative to the policy lifetime.
type PasswordExpiry struct {
	IsExpired     bool
	ExpiresAt     *time.Time
	DaysRemaining *int
}

// UserInfo carries the personal fields a password must not contain.
type UserInfo struct {
	Email       string
	Username    string
	FirstName   string
	LastName    string
	DisplayName string
}

// GenerateOptions selects the character classes for generated passwords.
type GenerateOptions struct {
	Length           int
	Uppercase        bool
	Lowercase        bool
	Digits           bool
	Special          bool
	ExcludeAmbiguous bool
}

// DefaultGenerateOptions returns a 16 character, all-classes configuration.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Length:           16,
		Uppercase:        true,
		Lowercase:        true,
		Digits:           true,
		Special:          true,
		ExcludeAmbiguous: true,
	}
}
