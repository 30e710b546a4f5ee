package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when CONFIG_PATH is not set.
const DefaultConfigPath = "config.yaml"

// Config is the application configuration loaded from YAML.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost   string `yaml:"redis_host"`
		RateLimitDB int    `yaml:"redis_rate_db"`
		ArtifactsDB int    `yaml:"redis_artifacts_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		UserLimit         int           `yaml:"user_limit"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
	} `yaml:"rate_limiter"`

	Auth AuthConfig `yaml:"auth"`

	Templates struct {
		Dir string `yaml:"dir"`
	} `yaml:"templates"`

	Schemas struct {
		File string `yaml:"file"`
	} `yaml:"schemas"`

	Output struct {
		Root string `yaml:"root"`
	} `yaml:"output"`

	Artifacts struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"artifacts"`

	Limits struct {
		MaxFieldBytes int `yaml:"max_field_bytes"`
	} `yaml:"limits"`
}

// AuthConfig maps API tokens to their per-interval request limit.
// An empty map leaves the service open.
type AuthConfig struct {
	Tokens map[string]int `yaml:"tokens"`
}

// AppConfig holds the most recently loaded configuration.
var AppConfig Config

// GetConfig returns the active configuration.
func GetConfig() Config {
	return AppConfig
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ":8501"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 28
	cfg.Cache.ArtifactsDB = 2
	cfg.Cache.RateLimitDB = 0
	cfg.RateLimiter.Interval = time.Minute
	cfg.Templates.Dir = "plantillas"
	cfg.Artifacts.TTL = time.Hour
	cfg.Limits.MaxFieldBytes = 64 * 1024
	return cfg
}

// DefaultOutputRoot returns <home>/Documents/EscritosPJUD.
func DefaultOutputRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "EscritosPJUD"), nil
}

// ConfigPath returns CONFIG_PATH or the default file name.
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// LoadConfig loads the configuration from ConfigPath.
func LoadConfig() Config {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the YAML file at path on top of DefaultConfig. A missing file
// yields the defaults; a malformed or invalid file panics.
func LoadFrom(path string) Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		Warn("Config file not found, using defaults", "path", path)
	case err != nil:
		panic(fmt.Sprintf("cannot read config %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("invalid config yaml %s: %v", path, err))
		}
	}

	if cfg.Output.Root == "" {
		root, err := DefaultOutputRoot()
		if err != nil {
			panic(err.Error())
		}
		cfg.Output.Root = root
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config %s: %v", path, err))
	}

	AppConfig = cfg
	return cfg
}

// Validate checks value ranges that would otherwise fail at request time.
func (c Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Templates.Dir == "" {
		return fmt.Errorf("templates.dir is required")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must be >= 0")
	}
	if c.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be > 0")
	}
	if c.Artifacts.TTL <= 0 {
		return fmt.Errorf("artifacts.ttl must be > 0")
	}
	if c.Limits.MaxFieldBytes <= 0 {
		return fmt.Errorf("limits.max_field_bytes must be > 0")
	}
	for token, limit := range c.Auth.Tokens {
		if token == "" {
			return fmt.Errorf("auth.tokens contains an empty token")
		}
		if limit < 0 {
			return fmt.Errorf("auth.tokens limit must be >= 0")
		}
	}
	return nil
}
