package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Security  SecurityConfig  `koanf:"security"`
	Export    ExportConfig    `koanf:"export"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type CacheConfig struct {
	// Secret seeds key derivation for the secure cache. Required outside
	// development.
	Secret     string        `koanf:"secret"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

type RateLimitConfig struct {
	ExportLimit   int           `koanf:"export_limit"`
	ExportWindow  time.Duration `koanf:"export_window"`
	CleanupPeriod time.Duration `koanf:"cleanup_period"`
}

type SecurityConfig struct {
	AlertCooldown    time.Duration `koanf:"alert_cooldown"`
	AutoResolveAfter time.Duration `koanf:"auto_resolve_after"`
	AlertRetention   time.Duration `koanf:"alert_retention"`
}

type ExportConfig struct {
	OutputDir  string        `koanf:"output_dir"`
	BatchDelay time.Duration `koanf:"batch_delay"`
}

func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			ExportLimit:   10,
			ExportWindow:  time.Minute,
			CleanupPeriod: 5 * time.Minute,
		},
		Security: SecurityConfig{
			AlertCooldown:    5 * time.Minute,
			AutoResolveAfter: time.Hour,
			AlertRetention:   7 * 24 * time.Hour,
		},
		Export: ExportConfig{
			OutputDir:  "exports",
			BatchDelay: 500 * time.Millisecond,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	if _, err := os.Stat(configPath); err == nil {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables
	if err := k.Load(env.Provider("SEOFORGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SEOFORGE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks constraints the koanf unmarshal cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Environment == "production" && c.Cache.Secret == "" {
		return fmt.Errorf("cache.secret is required in production")
	}
	if c.RateLimit.ExportLimit <= 0 {
		return fmt.Errorf("rate_limit.export_limit must be positive")
	}
	if c.RateLimit.ExportWindow <= 0 {
		return fmt.Errorf("rate_limit.export_window must be positive")
	}
	return nil
}
