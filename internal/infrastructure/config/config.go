package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Collections CollectionsConfig
	Scheduler   SchedulerConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. When disabled the per-invoice
// action lock is kept in process memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// CollectionsConfig holds the billing and collections policy knobs
type CollectionsConfig struct {
	// DrawPolicy is "clamp" or "reject"
	DrawPolicy             string
	EnforceTierEligibility bool
	ActionLockTTL          time.Duration
	IdempotencyTTL         time.Duration
	DemandLetterTemplate   string // empty means the built-in template
	CompanyName            string
	DefaultPaymentTerms    string
}

// SchedulerConfig holds the background overdue sweep settings
type SchedulerConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	Workers       int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool // dev only
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PF_ prefix (e.g., PF_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Collections: CollectionsConfig{
			DrawPolicy:             v.GetString("collections.draw_policy"),
			EnforceTierEligibility: v.GetBool("collections.enforce_tier_eligibility"),
			ActionLockTTL:          v.GetDuration("collections.action_lock_ttl"),
			IdempotencyTTL:         v.GetDuration("collections.idempotency_ttl"),
			DemandLetterTemplate:   v.GetString("collections.demand_letter_template"),
			CompanyName:            v.GetString("collections.company_name"),
			DefaultPaymentTerms:    v.GetString("collections.default_payment_terms"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			SweepInterval: v.GetDuration("scheduler.sweep_interval"),
			Workers:       v.GetInt("scheduler.workers"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "permitflow-billing"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "permitflow"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20
	}
	if cfg.Collections.DrawPolicy == "" {
		cfg.Collections.DrawPolicy = "clamp"
	}
	if cfg.Collections.ActionLockTTL == 0 {
		cfg.Collections.ActionLockTTL = 30 * time.Second
	}
	if cfg.Collections.IdempotencyTTL == 0 {
		cfg.Collections.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Collections.DefaultPaymentTerms == "" {
		cfg.Collections.DefaultPaymentTerms = "net_30"
	}
	if cfg.Scheduler.SweepInterval == 0 {
		cfg.Scheduler.SweepInterval = 15 * time.Minute
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 2
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 2 * time.Minute
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

var validPaymentTerms = map[string]bool{
	"due_on_receipt": true,
	"net_15":         true,
	"net_30":         true,
	"net_45":         true,
	"net_60":         true,
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Collections.DrawPolicy {
	case "clamp", "reject":
	default:
		return fmt.Errorf("collections.draw_policy must be clamp or reject, got %q", c.Collections.DrawPolicy)
	}
	if c.Collections.ActionLockTTL < time.Second {
		return fmt.Errorf("collections.action_lock_ttl must be at least 1s, got %s", c.Collections.ActionLockTTL)
	}
	if !validPaymentTerms[c.Collections.DefaultPaymentTerms] {
		return fmt.Errorf("collections.default_payment_terms %q is not a known term", c.Collections.DefaultPaymentTerms)
	}

	if c.Scheduler.Enabled && c.Scheduler.SweepInterval < time.Minute {
		return fmt.Errorf("scheduler.sweep_interval must be at least 1m, got %s", c.Scheduler.SweepInterval)
	}
	if c.Scheduler.RetryAttempts < 0 {
		return fmt.Errorf("scheduler.retry_attempts cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
