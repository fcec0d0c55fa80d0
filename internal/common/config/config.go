// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Server   ServerConfig            `mapstructure:"server"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Session  SessionConfig           `mapstructure:"session"`
	Sync     SyncConfig              `mapstructure:"sync"`
	Facility FacilityConfig          `mapstructure:"facility"`
	StateAPI StateAPIConfig          `mapstructure:"state_api"`
	Wizard   WizardConfig            `mapstructure:"wizard"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
	Notify   NotifyConfig            `mapstructure:"notify"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// CamundaConfig is optional. Workers are only started when Enabled is set.
type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"` // milliseconds
	IOTimeout    int    `mapstructure:"io_timeout"`   // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Wizard Core Configuration ---

// SessionConfig drives the local session state store.
type SessionConfig struct {
	TTL        int    `mapstructure:"ttl"`         // milliseconds
	DebounceMs int    `mapstructure:"debounce_ms"` // milliseconds
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// SyncConfig drives the remote state synchronizer.
type SyncConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BaseURL     string `mapstructure:"base_url"`
	Channel     string `mapstructure:"channel"`
	UserAgent   string `mapstructure:"user_agent"`
	Timeout     int    `mapstructure:"timeout"`     // milliseconds
	DebounceMs  int    `mapstructure:"debounce_ms"` // milliseconds
	CountryCode string `mapstructure:"country_code"`
}

// TermTier maps a price ceiling to a repayment term.
type TermTier struct {
	MaxPrice   float64 `mapstructure:"max_price"`
	TermMonths int     `mapstructure:"term_months"`
}

// FacilityConfig drives the facility calculator.
type FacilityConfig struct {
	AnnualRatePercent float64    `mapstructure:"annual_rate_percent"`
	TermTiers         []TermTier `mapstructure:"term_tiers"`
	FallbackTerm      int        `mapstructure:"fallback_term"`
	Currency          string     `mapstructure:"currency"`
}

// StateAPIConfig drives the remote state endpoints served by this binary.
type StateAPIConfig struct {
	CacheTTL     int            `mapstructure:"cache_ttl"` // milliseconds
	LockTTL      int            `mapstructure:"lock_ttl"`  // milliseconds
	ChannelTTL   map[string]int `mapstructure:"channel_ttl"`
	RateLimitRPS float64        `mapstructure:"rate_limit_rps"`
	RateBurst    int            `mapstructure:"rate_burst"`
}

// WizardConfig points at an optional external flow registry.
type WizardConfig struct {
	FlowRegistryPath string `mapstructure:"flow_registry_path"`
}

// TracingConfig enables span recording. Spans are exported to Jaeger only
// when JaegerEndpoint is set.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// NotifyConfig drives applicant SMS and email delivery through AWS.
type NotifyConfig struct {
	SMSEnabled   bool   `mapstructure:"sms_enabled"`
	EmailEnabled bool   `mapstructure:"email_enabled"`
	FromEmail    string `mapstructure:"from_email"`
	AWSRegion    string `mapstructure:"aws_region"`
	SenderID     string `mapstructure:"sender_id"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ChannelTTLDuration returns the state lifetime for a channel, falling back
// to the web channel.
func (s StateAPIConfig) ChannelTTLDuration(channel string) time.Duration {
	if ms, ok := s.ChannelTTL[channel]; ok && ms > 0 {
		return GetDuration(ms)
	}
	return GetDuration(s.ChannelTTL["web"])
}
