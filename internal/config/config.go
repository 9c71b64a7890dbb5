// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AI         AIConfig         `mapstructure:"ai"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Punishment PunishmentConfig `mapstructure:"punishment"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig holds the HTTP listener configuration for the websocket
// and health endpoints.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
// When Enabled is false the in-memory store is used.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the connection used for the scanner lease.
// An empty Addr disables the lease.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AIConfig holds the chat-completions endpoint used for task generation.
type AIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ScannerConfig holds expiration scanner cadence.
type ScannerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// PunishmentConfig holds punishment policy switches.
type PunishmentConfig struct {
	AutoApplyPredeclared bool `mapstructure:"auto_apply_predeclared"`
}

// NotifyConfig holds websocket hub settings.
type NotifyConfig struct {
	SendBuffer int `mapstructure:"send_buffer"`
}

// TelegramConfig holds the optional Telegram bot and notification sink.
// Chats maps a quest user id to a Telegram chat id. Admins lists the chats
// allowed to grant XP and credits.
type TelegramConfig struct {
	Token  string           `mapstructure:"token"`
	Chats  map[string]int64 `mapstructure:"chats"`
	Admins []int64          `mapstructure:"admins"`
}

// MirrorConfig holds the optional Airtable record mirror.
type MirrorConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseID     string        `mapstructure:"base_id"`
	BaseURL    string        `mapstructure:"base_url"`
	QueueSize  int           `mapstructure:"queue_size"`
	MaxRetries uint64        `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Enabled reports whether the mirror has credentials.
func (m *MirrorConfig) Enabled() bool {
	return m.APIKey != "" && m.BaseID != ""
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. AI_API_KEY, DATABASE_HOST, SCANNER_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "levelup")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "levelup")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("ai.model", "mistral-large-latest")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.timeout", "20s")

	v.SetDefault("scanner.interval", "30s")
	v.SetDefault("scanner.lease_ttl", "25s")

	v.SetDefault("punishment.auto_apply_predeclared", false)

	v.SetDefault("notify.send_buffer", 16)

	v.SetDefault("telegram.token", "")

	v.SetDefault("mirror.api_key", "")
	v.SetDefault("mirror.base_id", "")
	v.SetDefault("mirror.base_url", "https://api.airtable.com/v0")
	v.SetDefault("mirror.queue_size", 256)
	v.SetDefault("mirror.max_retries", 3)
	v.SetDefault("mirror.timeout", "10s")
}
