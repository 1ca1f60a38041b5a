package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Alerts   AlertsConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Path          string
	ImportDir     string
	ImportOnStart bool
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableCSRF      bool
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// AlertsConfig controls the anomaly detector. Thresholds start from
// DefaultThresholds, then the YAML file (if any), then ALERT_* variables.
type AlertsConfig struct {
	FailFast       bool
	RunTimeout     time.Duration
	Q3Current      string
	Q3Previous     string
	ThresholdsFile string
	Thresholds     Thresholds
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Path:          getEnvString("DATABASE_PATH", "data/dashboard.db"),
			ImportDir:     getEnvString("IMPORT_DIR", "data/import"),
			ImportOnStart: getEnvBool("IMPORT_ON_START", false),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableCSRF:      getEnvBool("SECURITY_CSRF_ENABLED", true),
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8080"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
		Alerts: AlertsConfig{
			FailFast:       getEnvBool("ALERT_FAIL_FAST", false),
			RunTimeout:     getEnvDuration("ALERT_RUN_TIMEOUT", 10*time.Second),
			Q3Current:      getEnvString("ALERT_Q3_CURRENT", "2025-Q3"),
			Q3Previous:     getEnvString("ALERT_Q3_PREVIOUS", "2025-Q2"),
			ThresholdsFile: getEnvString("ALERT_THRESHOLDS_FILE", ""),
			Thresholds:     DefaultThresholds(),
		},
	}

	if cfg.Alerts.ThresholdsFile != "" {
		t, err := LoadThresholdsFile(cfg.Alerts.ThresholdsFile, cfg.Alerts.Thresholds)
		if err != nil {
			return nil, fmt.Errorf("load thresholds: %w", err)
		}
		cfg.Alerts.Thresholds = t
	}
	cfg.Alerts.Thresholds = thresholdsFromEnv(cfg.Alerts.Thresholds)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Alerts.RunTimeout <= 0 {
		return fmt.Errorf("alert run timeout must be positive")
	}

	if _, _, err := ParseQuarter(c.Alerts.Q3Current); err != nil {
		return fmt.Errorf("ALERT_Q3_CURRENT: %w", err)
	}
	if _, _, err := ParseQuarter(c.Alerts.Q3Previous); err != nil {
		return fmt.Errorf("ALERT_Q3_PREVIOUS: %w", err)
	}

	if err := c.Alerts.Thresholds.Validate(); err != nil {
		return fmt.Errorf("alert thresholds: %w", err)
	}

	return nil
}

// ParseQuarter parses "YYYY-Qn".
func ParseQuarter(s string) (year, quarter int, err error) {
	parts := strings.SplitN(strings.ToUpper(strings.TrimSpace(s)), "-Q", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("quarter %q must look like 2025-Q3", s)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("quarter %q: bad year", s)
	}
	quarter, err = strconv.Atoi(parts[1])
	if err != nil || quarter < 1 || quarter > 4 {
		return 0, 0, fmt.Errorf("quarter %q: quarter must be 1-4", s)
	}
	return year, quarter, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
