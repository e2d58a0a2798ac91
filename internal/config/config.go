package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/kidlock/internal/clock"
	"github.com/kailas-cloud/kidlock/internal/domain"
	"github.com/kailas-cloud/kidlock/internal/domain/settings"
)

// Config holds the kidlockd configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Budget      BudgetConfig      `yaml:"budget"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds device agent authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // 0 keeps the agent's command stream open
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// BudgetConfig holds the values used until a parent changes them.
type BudgetConfig struct {
	DefaultDailyLimitMinutes *int   `yaml:"default_daily_limit_minutes"`
	DefaultPIN               string `yaml:"default_pin"`
	Timezone                 string `yaml:"timezone"` // IANA name, empty = system local
}

// EnforcementConfig holds monitor and host bridge settings.
type EnforcementConfig struct {
	SelfPackage             string   `yaml:"self_package"`
	TickIntervalMs          int      `yaml:"tick_interval_ms"`
	DebounceMs              int      `yaml:"debounce_ms"`
	ExemptPrefixes          []string `yaml:"exempt_prefixes"`
	ExemptPackages          []string `yaml:"exempt_packages"`
	LiveProbeFreshnessSec   int      `yaml:"live_probe_freshness_sec"`
	UsageReportFreshnessSec int      `yaml:"usage_report_freshness_sec"`
	BlockingDefault         *bool    `yaml:"blocking_default"`
}

// TickInterval returns the periodic check interval.
func (e EnforcementConfig) TickInterval() time.Duration {
	return time.Duration(e.TickIntervalMs) * time.Millisecond
}

// Debounce returns the minimum gap between two evictions.
func (e EnforcementConfig) Debounce() time.Duration {
	return time.Duration(e.DebounceMs) * time.Millisecond
}

// Load reads configuration from a YAML file by environment name (local, dev, device, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = domain.KeyPrefix
	}
	if c.Budget.DefaultDailyLimitMinutes == nil {
		limit := settings.DefaultDailyLimitMinutes
		c.Budget.DefaultDailyLimitMinutes = &limit
	}
	if c.Budget.DefaultPIN == "" {
		c.Budget.DefaultPIN = settings.DefaultPIN
	}

	e := &c.Enforcement
	if e.SelfPackage == "" {
		e.SelfPackage = "uk.telegramgames.kidlock"
	}
	if e.TickIntervalMs <= 0 {
		e.TickIntervalMs = 5000
	}
	if e.DebounceMs <= 0 {
		e.DebounceMs = 500
	}
	if e.ExemptPrefixes == nil {
		e.ExemptPrefixes = []string{"com.android", "android"}
	}
	if e.ExemptPackages == nil {
		e.ExemptPackages = []string{"com.google.android.tv.settings", "com.google.android.leanbacklauncher"}
	}
	if e.LiveProbeFreshnessSec <= 0 {
		e.LiveProbeFreshnessSec = 10
	}
	if e.UsageReportFreshnessSec <= 0 {
		e.UsageReportFreshnessSec = 60
	}
	if e.BlockingDefault == nil {
		on := true
		e.BlockingDefault = &on
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Budget.DefaultDailyLimitMinutes != nil {
		if err := settings.ValidateDailyLimit(*c.Budget.DefaultDailyLimitMinutes); err != nil {
			return fmt.Errorf("budget.default_daily_limit_minutes: %w", err)
		}
	}
	if c.Budget.DefaultPIN != "" {
		if err := settings.ValidatePIN(c.Budget.DefaultPIN); err != nil {
			return fmt.Errorf("budget.default_pin: %w", err)
		}
	}
	if _, err := clock.LoadLocation(c.Budget.Timezone); err != nil {
		return fmt.Errorf("budget.timezone: %w", err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
