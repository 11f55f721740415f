package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// prometheus metrics server
	PrometheusMetricsHost string `toml:"prom_metrics_host"`
	PrometheusMetricsPort string `toml:"prom_metrics_port"`
	// login abuse protection
	LoginRateLimitAttempts      int `toml:"login_rate_limit_attempts"`
	LoginRateLimitWindowSeconds int `toml:"login_rate_limit_window_seconds"`
	RegisterRateLimitPerMin     int `toml:"register_rate_limit_per_min"`
	// course list cache
	CourseCacheTTLSeconds int `toml:"course_cache_ttl_seconds"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var configs Toml
	if _, err := toml.DecodeFile(path, &configs); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg, err := configs.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("config for env %s empty", env)
	}

	cfg.setDefaults()
	cfg.Environment = env

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.LoginRateLimitAttempts <= 0 {
		c.LoginRateLimitAttempts = 5
	}
	if c.LoginRateLimitWindowSeconds <= 0 {
		c.LoginRateLimitWindowSeconds = 60
	}
	if c.RegisterRateLimitPerMin <= 0 {
		c.RegisterRateLimitPerMin = 15
	}
	if c.CourseCacheTTLSeconds <= 0 {
		c.CourseCacheTTLSeconds = 900
	}
}
