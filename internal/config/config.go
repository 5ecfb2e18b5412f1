package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Webhook   WebhookConfig  `mapstructure:"webhook"`
	Events    EventsConfig   `mapstructure:"events"`
	Billing   BillingConfig  `mapstructure:"billing"`
	JWTSecret string         `mapstructure:"jwt_secret"`
	// SignupCredits is the balance granted to every new account.
	SignupCredits int `mapstructure:"signup_credits"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type WebhookConfig struct {
	// DispatchTimeoutSeconds bounds the full POST to the tool webhook.
	DispatchTimeoutSeconds int `mapstructure:"dispatch_timeout_seconds"`
	// DNSTimeoutSeconds bounds hostname resolution in the pre-dispatch guard.
	DNSTimeoutSeconds int `mapstructure:"dns_timeout_seconds"`
	// MaxResponseBytes caps how much of a webhook response body is read.
	MaxResponseBytes int64 `mapstructure:"max_response_bytes"`
	// MaxUploadBytes caps a single uploaded input file.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

func (w WebhookConfig) DispatchTimeout() time.Duration {
	return time.Duration(w.DispatchTimeoutSeconds) * time.Second
}

func (w WebhookConfig) DNSTimeout() time.Duration {
	return time.Duration(w.DNSTimeoutSeconds) * time.Second
}

type EventsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	BufferSize      int  `mapstructure:"buffer_size"`
	FlushIntervalMs int  `mapstructure:"flush_interval_ms"`
	RetentionDays   int  `mapstructure:"retention_days"`
}

type BillingConfig struct {
	// ProviderURL is the payment provider's checkout-session lookup endpoint.
	ProviderURL string `mapstructure:"provider_url"`
	ProviderKey string `mapstructure:"provider_key"`
	// SessionWindowMinutes: only sessions paid within this window grant credits.
	SessionWindowMinutes int `mapstructure:"session_window_minutes"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("jwt_secret", "changeme-secret")
	viper.SetDefault("signup_credits", 10)
	viper.SetDefault("webhook.dispatch_timeout_seconds", 30)
	viper.SetDefault("webhook.dns_timeout_seconds", 5)
	viper.SetDefault("webhook.max_response_bytes", 65536)
	viper.SetDefault("webhook.max_upload_bytes", 10485760)
	viper.SetDefault("events.enabled", true)
	viper.SetDefault("events.buffer_size", 500)
	viper.SetDefault("events.flush_interval_ms", 100)
	viper.SetDefault("events.retention_days", 7)
	viper.SetDefault("billing.session_window_minutes", 60)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
