// Package core provides configuration management for the opscore service
package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitRuleConfig describes one static throttle rule. Rules are loaded
// at startup and immutable at runtime.
type RateLimitRuleConfig struct {
	KeyPrefix     string `yaml:"key_prefix"`
	Points        int    `yaml:"points"`
	Duration      int    `yaml:"duration_seconds"`
	BlockDuration int    `yaml:"block_duration_seconds"`
	ErrorMessage  string `yaml:"error_message"`
}

// Config holds all opscore configuration with validation
type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Version  string `yaml:"version"`
		LogLevel string `yaml:"log_level"`
		Addr     string `yaml:"addr"`
	} `yaml:"app"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		Enabled        bool   `yaml:"enabled"`
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		User           string `yaml:"user"`
		Password       string `yaml:"password"`
		DBName         string `yaml:"dbname"`
		MaxConnections int    `yaml:"max_connections"`
	} `yaml:"database"`

	Telemetry struct {
		MetricsURL      string  `yaml:"metrics_url"`
		Query           string  `yaml:"query"`
		DriftThreshold  float64 `yaml:"drift_threshold"`
		Baseline        float64 `yaml:"baseline"`
		WebhookURL      string  `yaml:"webhook_url"`
		IntervalSeconds int     `yaml:"interval_seconds"`
	} `yaml:"telemetry"`

	Alerts struct {
		Stream        string  `yaml:"stream"`
		MaxEntries    int64   `yaml:"max_entries"`
		ZThreshold    float64 `yaml:"z_threshold"`
		RetentionDays int     `yaml:"retention_days"`
	} `yaml:"alerts"`

	Remediation struct {
		LogDir string `yaml:"log_dir"`
	} `yaml:"remediation"`

	RateLimit struct {
		Rules []RateLimitRuleConfig `yaml:"rules"`
	} `yaml:"ratelimit"`
}

// LoadConfig reads and validates configuration from YAML file
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.ApplyEnvOverrides()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Addr == "" {
		c.App.Addr = ":8081"
	}
	if c.Alerts.Stream == "" {
		c.Alerts.Stream = "opscore.anomaly-alerts"
	}
	if c.Alerts.MaxEntries == 0 {
		c.Alerts.MaxEntries = 1000
	}
	if c.Alerts.ZThreshold == 0 {
		c.Alerts.ZThreshold = 2.0
	}
	if c.Alerts.RetentionDays == 0 {
		c.Alerts.RetentionDays = 7
	}
	if c.Telemetry.Query == "" {
		c.Telemetry.Query = "http_request_duration_seconds"
	}
	if c.Telemetry.DriftThreshold == 0 {
		c.Telemetry.DriftThreshold = 0.05
	}
	if c.Telemetry.IntervalSeconds == 0 {
		c.Telemetry.IntervalSeconds = 30
	}
	if c.Remediation.LogDir == "" {
		c.Remediation.LogDir = "logs"
	}
}

// Validate checks if configuration values are valid
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name cannot be empty")
	}
	if c.App.Version == "" {
		return fmt.Errorf("app.version cannot be empty")
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		return fmt.Errorf("app.log_level must be one of: debug, info, warn, error")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr cannot be empty")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host cannot be empty")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user cannot be empty")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database.dbname cannot be empty")
		}
		if c.Database.MaxConnections <= 0 {
			return fmt.Errorf("database.max_connections must be positive")
		}
	}

	if c.Telemetry.MetricsURL == "" {
		return fmt.Errorf("telemetry.metrics_url cannot be empty")
	}
	if !strings.HasPrefix(c.Telemetry.MetricsURL, "http://") && !strings.HasPrefix(c.Telemetry.MetricsURL, "https://") {
		return fmt.Errorf("telemetry.metrics_url must start with http:// or https://")
	}
	if c.Telemetry.DriftThreshold <= 0 || c.Telemetry.DriftThreshold > 1 {
		return fmt.Errorf("telemetry.drift_threshold must be between 0 and 1")
	}

	if c.Alerts.ZThreshold <= 0 {
		return fmt.Errorf("alerts.z_threshold must be positive")
	}
	if c.Alerts.MaxEntries < 100 || c.Alerts.MaxEntries > 10000 {
		return fmt.Errorf("alerts.max_entries must be between 100 and 10000")
	}

	for i, rule := range c.RateLimit.Rules {
		if rule.KeyPrefix == "" {
			return fmt.Errorf("ratelimit.rules[%d].key_prefix cannot be empty", i)
		}
		if rule.Points <= 0 {
			return fmt.Errorf("ratelimit.rules[%d].points must be positive", i)
		}
		if rule.Duration <= 0 {
			return fmt.Errorf("ratelimit.rules[%d].duration_seconds must be positive", i)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv("OPSCORE_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("OPSCORE_REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if host := os.Getenv("OPSCORE_DB_HOST"); host != "" {
		c.Database.Host = host
	}
	if user := os.Getenv("OPSCORE_DB_USER"); user != "" {
		c.Database.User = user
	}
	if password := os.Getenv("OPSCORE_DB_PASSWORD"); password != "" {
		c.Database.Password = password
	}
	if url := os.Getenv("OPSCORE_METRICS_URL"); url != "" {
		c.Telemetry.MetricsURL = url
	}
	if logLevel := os.Getenv("OPSCORE_LOG_LEVEL"); logLevel != "" {
		c.App.LogLevel = logLevel
	}
}

// GetDatabaseURL returns PostgreSQL connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable&pool_max_conns=%d",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.MaxConnections,
	)
}

// PollInterval returns the telemetry polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Telemetry.IntervalSeconds) * time.Second
}

// AlertRetention returns the alert stream TTL.
func (c *Config) AlertRetention() time.Duration {
	return time.Duration(c.Alerts.RetentionDays) * 24 * time.Hour
}
