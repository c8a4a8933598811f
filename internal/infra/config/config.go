package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

const envPrefix = "LINGUA"

// Storage backend names accepted by the storage section.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type AppConfig struct {
	App            AppSettings            `mapstructure:"app"`
	Postgres       PostgresSettings       `mapstructure:"postgres"`
	Redis          RedisSettings          `mapstructure:"redis"`
	Kafka          KafkaSettings          `mapstructure:"kafka"`
	Telemetry      TelemetrySettings      `mapstructure:"telemetry"`
	Argon2         Argon2Settings         `mapstructure:"argon2"`
	PasswordPolicy PasswordPolicySettings `mapstructure:"password_policy"`
	LockoutPolicy  LockoutPolicySettings  `mapstructure:"lockout_policy"`
	Audit          AuditSettings          `mapstructure:"audit"`
	Storage        StorageSettings        `mapstructure:"storage"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// LogLevel overrides the environment default (debug outside production, info in production).
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection, TLS and lockout key layout
type RedisSettings struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	DB            int    `mapstructure:"db"`
	Password      string `mapstructure:"password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	PoolSize      int    `mapstructure:"pool_size"`
	MinIdleConns  int    `mapstructure:"min_idle_conns"`
	AttemptPrefix string `mapstructure:"attempt_prefix"`
	StatePrefix   string `mapstructure:"state_prefix"`
}

// KafkaSettings configures the security alert producer. An empty broker list selects the logging stub.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type TelemetrySettings struct {
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory        uint32 `mapstructure:"memory"`
	Iterations    uint32 `mapstructure:"iterations"`
	Parallelism   uint8  `mapstructure:"parallelism"`
	SaltLength    uint32 `mapstructure:"salt_length"`
	KeyLength     uint32 `mapstructure:"key_length"`
	MaxConcurrent int64  `mapstructure:"max_concurrent"`
}

type PasswordPolicySettings struct {
	MinLength              int  `mapstructure:"min_length"`
	MaxLength              int  `mapstructure:"max_length"`
	RequireUppercase       bool `mapstructure:"require_uppercase"`
	RequireLowercase       bool `mapstructure:"require_lowercase"`
	RequireDigits          bool `mapstructure:"require_digits"`
	RequireSpecial         bool `mapstructure:"require_special"`
	MinUppercase           int  `mapstructure:"min_uppercase"`
	MinLowercase           int  `mapstructure:"min_lowercase"`
	MinDigits              int  `mapstructure:"min_digits"`
	MinSpecial             int  `mapstructure:"min_special"`
	PreventCommonPasswords bool `mapstructure:"prevent_common_passwords"`
	PreventDictionaryWords bool `mapstructure:"prevent_dictionary_words"`
	PreventSequentialChars bool `mapstructure:"prevent_sequential_chars"`
	PreventRepeatedChars   bool `mapstructure:"prevent_repeated_chars"`
	PreventPersonalInfo    bool `mapstructure:"prevent_personal_info"`
	SequentialRunLength    int  `mapstructure:"sequential_run_length"`
	MaxRepeatedChars       int  `mapstructure:"max_repeated_chars"`
	HistoryCount           int  `mapstructure:"history_count"`
	ExpiryDays             int  `mapstructure:"expiry_days"`
}

type LockoutPolicySettings struct {
	MaxFailedAttempts           int           `mapstructure:"max_failed_attempts"`
	LockoutDuration             time.Duration `mapstructure:"lockout_duration"`
	ProgressiveLockout          bool          `mapstructure:"progressive_lockout"`
	MaxLockoutDuration          time.Duration `mapstructure:"max_lockout_duration"`
	PermanentLockoutThreshold   int           `mapstructure:"permanent_lockout_threshold"`
	RapidFireThreshold          int           `mapstructure:"rapid_fire_threshold"`
	RapidFireWindow             time.Duration `mapstructure:"rapid_fire_window"`
	MultiIPThreshold            int           `mapstructure:"multi_ip_threshold"`
	MultiIPWindow               time.Duration `mapstructure:"multi_ip_window"`
	CredentialStuffingThreshold int           `mapstructure:"credential_stuffing_threshold"`
	BotTimingMinAttempts        int           `mapstructure:"bot_timing_min_attempts"`
	BotTimingMaxSpread          time.Duration `mapstructure:"bot_timing_max_spread"`
	HistoryWindow               time.Duration `mapstructure:"history_window"`
	FailSecureLockDuration      time.Duration `mapstructure:"fail_secure_lock_duration"`
}

type AuditSettings struct {
	SummaryWindow int  `mapstructure:"summary_window"`
	AlertsEnabled bool `mapstructure:"alerts_enabled"`
}

// StorageSettings selects the backend for each storage port.
type StorageSettings struct {
	LockoutState   string `mapstructure:"lockout_state"`
	AttemptHistory string `mapstructure:"attempt_history"`
	Audit          string `mapstructure:"audit"`
}

// Load reads configuration from defaults, an optional file named by LINGUA_CONFIG_FILE and the environment.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := bindEnvs(v, configKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints and both policies.
func (c *AppConfig) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("%w: app.port out of range", ErrInvalidConfig)
	}
	if c.Argon2.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: argon2.max_concurrent must be positive", ErrInvalidConfig)
	}
	if c.Audit.SummaryWindow <= 0 {
		return fmt.Errorf("%w: audit.summary_window must be positive", ErrInvalidConfig)
	}
	if err := checkBackend("storage.lockout_state", c.Storage.LockoutState, BackendMemory, BackendRedis, BackendPostgres); err != nil {
		return err
	}
	if err := checkBackend("storage.attempt_history", c.Storage.AttemptHistory, BackendMemory, BackendRedis); err != nil {
		return err
	}
	if err := checkBackend("storage.audit", c.Storage.Audit, BackendMemory, BackendPostgres); err != nil {
		return err
	}
	if err := c.PasswordPolicy.ToDomain().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.LockoutPolicy.ToDomain().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// UsesPostgres reports whether any storage port is backed by PostgreSQL.
func (c *AppConfig) UsesPostgres() bool {
	return c.Storage.LockoutState == BackendPostgres || c.Storage.Audit == BackendPostgres
}

// UsesRedis reports whether any storage port is backed by Redis.
func (c *AppConfig) UsesRedis() bool {
	return c.Storage.LockoutState == BackendRedis || c.Storage.AttemptHistory == BackendRedis
}

// IsProduction reports whether the service runs with production settings.
func (s AppSettings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

func (s PasswordPolicySettings) ToDomain() domain.PasswordPolicy {
	return domain.PasswordPolicy{
		MinLength:              s.MinLength,
		MaxLength:              s.MaxLength,
		RequireUppercase:       s.RequireUppercase,
		RequireLowercase:       s.RequireLowercase,
		RequireDigits:          s.RequireDigits,
		RequireSpecial:         s.RequireSpecial,
		MinUppercase:           s.MinUppercase,
		MinLowercase:           s.MinLowercase,
		MinDigits:              s.MinDigits,
		MinSpecial:             s.MinSpecial,
		PreventCommonPasswords: s.PreventCommonPasswords,
		PreventDictionaryWords: s.PreventDictionaryWords,
		PreventSequentialChars: s.PreventSequentialChars,
		PreventRepeatedChars:   s.PreventRepeatedChars,
		PreventPersonalInfo:    s.PreventPersonalInfo,
		SequentialRunLength:    s.SequentialRunLength,
		MaxRepeatedChars:       s.MaxRepeatedChars,
		HistoryCount:           s.HistoryCount,
		ExpiryDays:             s.ExpiryDays,
	}
}

func (s LockoutPolicySettings) ToDomain() domain.LockoutPolicy {
	return domain.LockoutPolicy{
		MaxFailedAttempts:           s.MaxFailedAttempts,
		LockoutDuration:             s.LockoutDuration,
		ProgressiveLockout:          s.ProgressiveLockout,
		MaxLockoutDuration:          s.MaxLockoutDuration,
		PermanentLockoutThreshold:   s.PermanentLockoutThreshold,
		RapidFireThreshold:          s.RapidFireThreshold,
		RapidFireWindow:             s.RapidFireWindow,
		MultiIPThreshold:            s.MultiIPThreshold,
		MultiIPWindow:               s.MultiIPWindow,
		CredentialStuffingThreshold: s.CredentialStuffingThreshold,
		BotTimingMinAttempts:        s.BotTimingMinAttempts,
		BotTimingMaxSpread:          s.BotTimingMaxSpread,
		HistoryWindow:               s.HistoryWindow,
		FailSecureLockDuration:      s.FailSecureLockDuration,
	}
}

func checkBackend(key, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidConfig, key, strings.Join(allowed, "|"), value)
}

var configKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.log_level",
	"app.shutdown_timeout",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.pool_size",
	"redis.min_idle_conns",
	"redis.attempt_prefix",
	"redis.state_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"kafka.async",
	"telemetry.metrics_enabled",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"argon2.max_concurrent",
	"password_policy.min_length",
	"password_policy.max_length",
	"password_policy.require_uppercase",
	"password_policy.require_lowercase",
	"password_policy.require_digits",
	"password_policy.require_special",
	"password_policy.min_uppercase",
	"password_policy.min_lowercase",
	"password_policy.min_digits",
	"password_policy.min_special",
	"password_policy.prevent_common_passwords",
	"password_policy.prevent_dictionary_words",
	"password_policy.prevent_sequential_chars",
	"password_policy.prevent_repeated_chars",
	"password_policy.prevent_personal_info",
	"password_policy.sequential_run_length",
	"password_policy.max_repeated_chars",
	"password_policy.history_count",
	"password_policy.expiry_days",
	"lockout_policy.max_failed_attempts",
	"lockout_policy.lockout_duration",
	"lockout_policy.progressive_lockout",
	"lockout_policy.max_lockout_duration",
	"lockout_policy.permanent_lockout_threshold",
	"lockout_policy.rapid_fire_threshold",
	"lockout_policy.rapid_fire_window",
	"lockout_policy.multi_ip_threshold",
	"lockout_policy.multi_ip_window",
	"lockout_policy.credential_stuffing_threshold",
	"lockout_policy.bot_timing_min_attempts",
	"lockout_policy.bot_timing_max_spread",
	"lockout_policy.history_window",
	"lockout_policy.fail_secure_lock_duration",
	"audit.summary_window",
	"audit.alerts_enabled",
	"storage.lockout_state",
	"storage.attempt_history",
	"storage.audit",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lingua-security")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8081)
	v.SetDefault("app.log_level", "")
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "lingua")
	v.SetDefault("postgres.password", "lingua_password")
	v.SetDefault("postgres.database", "lingua")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.attempt_prefix", "lingua:lockout:attempts")
	v.SetDefault("redis.state_prefix", "lingua:lockout:state")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "lingua")
	v.SetDefault("kafka.async", true)

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "lingua-security")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	// Argon2id defaults
	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
	v.SetDefault("argon2.max_concurrent", 4)

	passwords := domain.DefaultPasswordPolicy()
	v.SetDefault("password_policy.min_length", passwords.MinLength)
	v.SetDefault("password_policy.max_length", passwords.MaxLength)
	v.SetDefault("password_policy.require_uppercase", passwords.RequireUppercase)
	v.SetDefault("password_policy.require_lowercase", passwords.RequireLowercase)
	v.SetDefault("password_policy.require_digits", passwords.RequireDigits)
	v.SetDefault("password_policy.require_special", passwords.RequireSpecial)
	v.SetDefault("password_policy.min_uppercase", passwords.MinUppercase)
	v.SetDefault("password_policy.min_lowercase", passwords.MinLowercase)
	v.SetDefault("password_policy.min_digits", passwords.MinDigits)
	v.SetDefault("password_policy.min_special", passwords.MinSpecial)
	v.SetDefault("password_policy.prevent_common_passwords", passwords.PreventCommonPasswords)
	v.SetDefault("password_policy.prevent_dictionary_words", passwords.PreventDictionaryWords)
	v.SetDefault("password_policy.prevent_sequential_chars", passwords.PreventSequentialChars)
	v.SetDefault("password_policy.prevent_repeated_chars", passwords.PreventRepeatedChars)
	v.SetDefault("password_policy.prevent_personal_info", passwords.PreventPersonalInfo)
	v.SetDefault("password_policy.sequential_run_length", passwords.SequentialRunLength)
	v.SetDefault("password_policy.max_repeated_chars", passwords.MaxRepeatedChars)
	v.SetDefault("password_policy.history_count", passwords.HistoryCount)
	v.SetDefault("password_policy.expiry_days", passwords.ExpiryDays)

	lockouts := domain.DefaultLockoutPolicy()
	v.SetDefault("lockout_policy.max_failed_attempts", lockouts.MaxFailedAttempts)
	v.SetDefault("lockout_policy.lockout_duration", lockouts.LockoutDuration)
	v.SetDefault("lockout_policy.progressive_lockout", lockouts.ProgressiveLockout)
	v.SetDefault("lockout_policy.max_lockout_duration", lockouts.MaxLockoutDuration)
	v.SetDefault("lockout_policy.permanent_lockout_threshold", lockouts.PermanentLockoutThreshold)
	v.SetDefault("lockout_policy.rapid_fire_threshold", lockouts.RapidFireThreshold)
	v.SetDefault("lockout_policy.rapid_fire_window", lockouts.RapidFireWindow)
	v.SetDefault("lockout_policy.multi_ip_threshold", lockouts.MultiIPThreshold)
	v.SetDefault("lockout_policy.multi_ip_window", lockouts.MultiIPWindow)
	v.SetDefault("lockout_policy.credential_stuffing_threshold", lockouts.CredentialStuffingThreshold)
	v.SetDefault("lockout_policy.bot_timing_min_attempts", lockouts.BotTimingMinAttempts)
	v.SetDefault("lockout_policy.bot_timing_max_spread", lockouts.BotTimingMaxSpread)
	v.SetDefault("lockout_policy.history_window", lockouts.HistoryWindow)
	v.SetDefault("lockout_policy.fail_secure_lock_duration", lockouts.FailSecureLockDuration)

	v.SetDefault("audit.summary_window", 1000)
	v.SetDefault("audit.alerts_enabled", true)

	v.SetDefault("storage.lockout_state", BackendMemory)
	v.SetDefault("storage.attempt_history", BackendMemory)
	v.SetDefault("storage.audit", BackendMemory)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
