// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Provider ProviderConfig `mapstructure:"provider"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
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
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ProviderConfig holds settings for the upstream messaging provider API.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// EngineConfig holds the sequencing engine loop settings.
type EngineConfig struct {
	// ScannerCron finds active campaigns with unstarted work.
	ScannerCron string `mapstructure:"scanner_cron"`
	// QueueBuilderCron re-enqueues eligible contacts per campaign.
	QueueBuilderCron string `mapstructure:"queue_builder_cron"`
	// SweepInterval is how often the orchestrator claims due sends,
	// milliseconds.
	SweepInterval int `mapstructure:"sweep_interval"`
	// MaxActiveSequences bounds concurrent step executions globally.
	MaxActiveSequences int `mapstructure:"max_active_sequences"`
	// SendLeaseTTL is the per-account in-flight send lease, milliseconds.
	SendLeaseTTL int `mapstructure:"send_lease_ttl"`
	// BatchSize caps contacts claimed per sweep and per queue build.
	BatchSize int `mapstructure:"batch_size"`
	// RetryBackoff is the base transient-error backoff, milliseconds.
	RetryBackoff int `mapstructure:"retry_backoff"`
	// FailedCooldown is how long a transiently failed contact waits
	// before a queue build may pick it up again, milliseconds.
	FailedCooldown int `mapstructure:"failed_cooldown"`
	// AcceptanceTimeout is how long a connector campaign waits on an
	// invite decision before giving up, milliseconds.
	AcceptanceTimeout int `mapstructure:"acceptance_timeout"`
	// WithdrawnCooldownDays is how long the provider blocks re-invites
	// after a withdrawn one.
	WithdrawnCooldownDays int `mapstructure:"withdrawn_cooldown_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
