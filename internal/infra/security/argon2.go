package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
)

const (
	argon2Variant = "argon2id"
	argon2Version = "v=19"
)

var (
	errInvalidHashFormat = errors.New("argon2: invalid encoded hash format")
	errInvalidConfig     = errors.New("argon2: invalid configuration")

	// ErrHasherBusy is returned when no hashing slot became free before the context ended.
	ErrHasherBusy = errors.New("argon2: no hashing slot available")
	// ErrInvalidPassword is returned for plaintext that is not valid UTF-8.
	ErrInvalidPassword = errors.New("argon2: password is not valid utf-8")
)

// Argon2Config defines tunable parameters for Argon2id password hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the library default Argon2id configuration.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Argon2Config) params() domain.HashParams {
	return domain.HashParams{
		Memory:      c.Memory,
		Iterations:  c.Iterations,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

func validateArgon2Config(cfg Argon2Config) error {
	if cfg.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidConfig)
	}
	if cfg.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidConfig)
	}
	if cfg.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidConfig)
	}
	if cfg.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidConfig)
	}
	if cfg.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// Hasher derives and verifies Argon2id hashes. Derivations are bounded by a weighted
// semaphore so concurrent logins cannot exhaust memory.
type Hasher struct {
	cfg       Argon2Config
	slots     *semaphore.Weighted
	dummySalt []byte
	logger    *zap.Logger
	metrics   port.SecurityMetrics
	now       func() time.Time
}

// NewHasher validates cfg and returns a hasher allowing maxConcurrent derivations at once.
func NewHasher(cfg Argon2Config, maxConcurrent int64) (*Hasher, error) {
	if err := validateArgon2Config(cfg); err != nil {
		return nil, err
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	dummySalt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(dummySalt); err != nil {
		return nil, fmt.Errorf("argon2: generate dummy salt: %w", err)
	}

	return &Hasher{
		cfg:       cfg,
		slots:     semaphore.NewWeighted(maxConcurrent),
		dummySalt: dummySalt,
		logger:    zap.NewNop(),
		metrics:   port.NopSecurityMetrics{},
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithLogger attaches a logger used to report malformed hashes.
func (h *Hasher) WithLogger(logger *zap.Logger) *Hasher {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMetrics attaches a metrics sink for derivation latency.
func (h *Hasher) WithMetrics(metrics port.SecurityMetrics) *Hasher {
	if metrics != nil {
		h.metrics = metrics
	}
	return h
}

// Config returns the active Argon2 configuration.
func (h *Hasher) Config() Argon2Config {
	return h.cfg
}

// HashPassword generates an Argon2id hash for the provided password.
// The returned value embeds the parameters, salt, and hash in a portable format.
func (h *Hasher) HashPassword(ctx context.Context, password string) (domain.PasswordHashResult, error) {
	if !utf8.ValidString(password) {
		return domain.PasswordHashResult{}, ErrInvalidPassword
	}

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return domain.PasswordHashResult{}, fmt.Errorf("argon2: generate salt: %w", err)
	}

	sum, err := h.derive(ctx, "hash", []byte(password), salt, h.cfg, h.cfg.KeyLength)
	if err != nil {
		return domain.PasswordHashResult{}, err
	}

	// Format: argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
	encoded := strings.Join([]string{
		argon2Variant,
		argon2Version,
		fmt.Sprintf("m=%d,t=%d,p=%d", h.cfg.Memory, h.cfg.Iterations, h.cfg.Parallelism),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	}, "$")

	return domain.PasswordHashResult{
		Hash:      encoded,
		Algorithm: argon2Variant,
		Params:    h.cfg.params(),
		CreatedAt: h.now(),
	}, nil
}

// VerifyPassword compares the provided password against the stored Argon2 hash.
// Malformed or foreign hashes report false after a dummy derivation so the
// response time matches a wrong password. The error is reserved for backend failures.
func (h *Hasher) VerifyPassword(ctx context.Context, password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	params, salt, expected, err := decodeArgon2Hash(encoded)
	if err != nil {
		h.logger.Warn("malformed password hash", zap.Error(err))
		if _, derr := h.derive(ctx, "verify", []byte(password), h.dummySalt, h.cfg, h.cfg.KeyLength); derr != nil {
			return false, derr
		}
		return false, nil
	}

	computed, err := h.derive(ctx, "verify", []byte(password), salt, params, uint32(len(expected)))
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters other than the active ones.
// Legacy and unreadable encodings always need a rehash.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if !strings.HasPrefix(encoded, argon2Variant+"$") {
		return true
	}
	params, _, _, err := decodeArgon2Hash(encoded)
	if err != nil {
		return true
	}
	return params != h.cfg
}

func (h *Hasher) derive(ctx context.Context, operation string, password, salt []byte, cfg Argon2Config, keyLen uint32) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHasherBusy, err)
	}
	defer h.slots.Release(1)

	started := time.Now()
	sum := argon2.IDKey(password, salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, keyLen)
	h.metrics.ObservePasswordHash(operation, time.Since(started))
	return sum, nil
}

func decodeArgon2Hash(encoded string) (Argon2Config, []byte, []byte, error) {
	if strings.Contains(encoded, "$") {
		return decodeStructuredHash(encoded)
	}

	// Legacy format: salt:hash using default parameters.
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return Argon2Config{}, nil, nil, errInvalidHashFormat
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode salt: %w", err)
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode hash: %w", err)
	}
	if len(salt) == 0 || len(hash) == 0 {
		return Argon2Config{}, nil, nil, errInvalidHashFormat
	}

	legacy := Argon2Config{
		Memory:      64 * 1024,
		Iterations:  1,
		Parallelism: 4,
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(hash)),
	}
	return legacy, salt, hash, nil
}

func decodeStructuredHash(encoded string) (Argon2Config, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return Argon2Config{}, nil, nil, errInvalidHashFormat
	}

	if parts[0] != argon2Variant {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: unexpected variant %q", parts[0])
	}
	if parts[1] != argon2Version {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: unsupported version %q", parts[1])
	}

	memory, iterations, parallelism, err := parseArgon2Params(parts[2])
	if err != nil {
		return Argon2Config{}, nil, nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode salt: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode hash: %w", err)
	}

	cfg := Argon2Config{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: parallelism,
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(hash)),
	}

	if err := validateArgon2Config(cfg); err != nil {
		return Argon2Config{}, nil, nil, err
	}

	return cfg, salt, hash, nil
}

func parseArgon2Params(segment string) (uint32, uint32, uint8, error) {
	entries := strings.Split(segment, ",")
	if len(entries) != 3 {
		return 0, 0, 0, errInvalidHashFormat
	}

	var (
		memory      uint32
		iterations  uint32
		parallelism uint8
	)

	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return 0, 0, 0, errInvalidHashFormat
		}

		bits := 32
		if key == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(value, 10, bits)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("argon2: parse %s: %w", key, err)
		}

		switch key {
		case "m":
			memory = uint32(v)
		case "t":
			iterations = uint32(v)
		case "p":
			parallelism = uint8(v)
		default:
			return 0, 0, 0, errInvalidHashFormat
		}
	}

	return memory, iterations, parallelism, nil
}

var _ port.PasswordHasher = (*Hasher)(nil)
