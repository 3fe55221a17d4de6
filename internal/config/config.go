package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath       = "CONFIG_PATH"
	EnvAppEnv           = "APP_ENV"
	EnvListenAddr       = "LISTEN_ADDR"
	EnvDBConnection     = "DB_CONNECTION"
	EnvJWTSecret        = "JWT_SECRET"
	EnvJWTRefreshSecret = "JWT_REFRESH_SECRET"
	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvSMTPHost         = "SMTP_HOST"
	EnvSMTPPort         = "SMTP_PORT"
	EnvSMTPUser         = "SMTP_USER"
	EnvSMTPPassword     = "SMTP_PASSWORD"
	EnvSMTPFrom         = "SMTP_FROM"
)

// Development fallbacks. Never accepted in production.
const (
	devAccessSecret  = "dev-access-secret-change-me"
	devRefreshSecret = "dev-refresh-secret-change-me"
)

// ErrMissingJWTSecrets indicates production startup without explicit secrets.
var ErrMissingJWTSecrets = errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required in production")

// ErrSameJWTSecrets indicates both token kinds share one signing key.
var ErrSameJWTSecrets = errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")

// JWTConfig holds the signing secrets for the two token kinds.
type JWTConfig struct {
	AccessSecret  string `yaml:"access-secret"`
	RefreshSecret string `yaml:"refresh-secret"`
}

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// RedisConfig holds the optional shared rate limiter backend settings.
// An empty Addr selects the in-process limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the resolved application configuration.
type Config struct {
	Env         string      `yaml:"env"`
	ListenAddr  string      `yaml:"listen-addr"`
	DatabaseDSN string      `yaml:"database-dsn"`
	JWT         JWTConfig   `yaml:"jwt"`
	Redis       RedisConfig `yaml:"redis"`
	SMTP        SMTPConfig  `yaml:"smtp"`
}

// IsProduction reports whether the config targets a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file, applies environment overrides, and
// validates the result. A missing file is not an error; every setting can
// come from the environment.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Env:         "development",
		ListenAddr:  ":8080",
		DatabaseDSN: "storefront.db",
		SMTP:        SMTPConfig{Port: 587},
	}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnvOverrides(&cfg)

	if errValidate := cfg.validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAppEnv)); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBConnection)); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.JWT.AccessSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTRefreshSecret)); v != "" {
		cfg.JWT.RefreshSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisPassword)); v != "" {
		cfg.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPHost)); v != "" {
		cfg.SMTP.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPPort)); v != "" {
		if port, errParse := strconv.Atoi(v); errParse == nil && port > 0 {
			cfg.SMTP.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPUser)); v != "" {
		cfg.SMTP.Username = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPPassword)); v != "" {
		cfg.SMTP.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSMTPFrom)); v != "" {
		cfg.SMTP.From = v
	}
}

func (c *Config) validate() error {
	missingAccess := strings.TrimSpace(c.JWT.AccessSecret) == ""
	missingRefresh := strings.TrimSpace(c.JWT.RefreshSecret) == ""

	if missingAccess || missingRefresh {
		if c.IsProduction() {
			return ErrMissingJWTSecrets
		}
		log.Warn("JWT secrets not configured, using development defaults")
		if missingAccess {
			c.JWT.AccessSecret = devAccessSecret
		}
		if missingRefresh {
			c.JWT.RefreshSecret = devRefreshSecret
		}
	}

	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return ErrSameJWTSecrets
	}
	return nil
}
