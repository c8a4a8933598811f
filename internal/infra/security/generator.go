package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

const (
	charsetUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetLower   = "abcdefghijklmnopqrstuvwxyz"
	charsetDigits  = "0123456789"
	charsetSpecial = "!@#$%^&*()-_=+[]{};:,.<>/?~"
	ambiguousChars = "0O1lI|"
)

var (
	// ErrNoCharacterClass is returned when generation is requested with every class disabled.
	ErrNoCharacterClass = errors.New("password generator: at least one character class is required")
	// ErrLengthTooShort is returned when the length cannot fit one character per requested class.
	ErrLengthTooShort = errors.New("password generator: length shorter than the number of character classes")
)

// GeneratePassword builds a random password using crypto/rand only. Every requested
// class contributes at least one character.
func GeneratePassword(opts domain.GenerateOptions) (string, error) {
	var classes []string
	for _, c := range []struct {
		enabled bool
		charset string
	}{
		{opts.Uppercase, charsetUpper},
		{opts.Lowercase, charsetLower},
		{opts.Digits, charsetDigits},
		{opts.Special, charsetSpecial},
	} {
		if !c.enabled {
			continue
		}
		charset := c.charset
		if opts.ExcludeAmbiguous {
			charset = stripAmbiguous(charset)
		}
		classes = append(classes, charset)
	}

	if len(classes) == 0 {
		return "", ErrNoCharacterClass
	}
	if opts.Length < len(classes) {
		return "", fmt.Errorf("%w: length %d, classes %d", ErrLengthTooShort, opts.Length, len(classes))
	}

	combined := strings.Join(classes, "")
	out := make([]byte, 0, opts.Length)
	for _, charset := range classes {
		c, err := randomChar(charset)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < opts.Length {
		c, err := randomChar(combined)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates with the secure source so the seeded characters do not sit at fixed positions.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}

	return string(out), nil
}

func stripAmbiguous(charset string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(ambiguousChars, r) {
			return -1
		}
		return r
	}, charset)
}

func randomChar(charset string) (byte, error) {
	idx, err := randomIndex(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[idx], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("password generator: read random: %w", err)
	}
	return int(v.Int64()), nil
}
