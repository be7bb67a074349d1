// Package config loads process configuration from an optional YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

type Config struct {
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	HTTPAddress     string        `yaml:"http_address" env:"HTTP_ADDRESS" env-default:":3000"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`

	Storage Storage `yaml:"storage"`
	Users   Remote  `yaml:"user_service" env-prefix:"USER_SERVICE_"`
	Teams   Remote  `yaml:"team_service" env-prefix:"TEAM_SERVICE_"`
	Cache   Cache   `yaml:"report_cache"`
	History History `yaml:"history"`
}

type Storage struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"tasks.db"`
}

// Remote is an external HTTP service.
type Remote struct {
	URL     string        `yaml:"url" env:"URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"5s"`
}

// Cache configures the Redis report cache. An empty address disables it.
type Cache struct {
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	TTL       time.Duration `yaml:"ttl" env:"REPORT_CACHE_TTL" env-default:"1m"`
}

// History configures forwarding of task history to JetStream. An empty URL disables it.
type History struct {
	NATSURL string `yaml:"nats_url" env:"NATS_URL"`
	Stream  string `yaml:"stream" env:"HISTORY_STREAM" env-default:"TASK_HISTORY"`
	Subject string `yaml:"subject" env:"HISTORY_SUBJECT" env-default:"tasks.history"`
}

// Load reads configPath and applies the environment on top of it.
// A missing file falls back to the environment alone.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
		return cfg, cfg.validate()
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("cannot read config %q: %w", configPath, err)
		}
		cfg = Config{}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("cannot read env: %w", err)
		}
	}
	return cfg, cfg.validate()
}

// MustLoad loads the file named by CONFIG_PATH, or DefaultPath.
func MustLoad() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func (c Config) validate() error {
	if c.Users.URL == "" {
		return fmt.Errorf("USER_SERVICE_URL is required")
	}
	if c.Teams.URL == "" {
		return fmt.Errorf("TEAM_SERVICE_URL is required")
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}
