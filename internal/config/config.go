package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	PayloadLegacy = "legacy"
	PayloadJSON   = "json"
)

type Registry struct {
	AppEnv        string        `env:"APP_ENV" envDefault:"development"`
	Addr          string        `env:"REGISTRY_ADDR" envDefault:":9000"`
	Threshold     time.Duration `env:"JOB_THRESHOLD" envDefault:"10s"`
	Store         string        `env:"REGISTRY_STORE" envDefault:"memory"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisKeyTTL   time.Duration `env:"REDIS_KEY_TTL" envDefault:"24h"`
	ServerTiming  bool          `env:"REGISTRY_SERVER_TIMING" envDefault:"false"`
}

func (c Registry) validate() error {
	if c.Addr == "" {
		return errors.New("REGISTRY_ADDR cannot be empty")
	}
	if c.Threshold <= 0 {
		return errors.New("JOB_THRESHOLD must be positive")
	}
	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR cannot be empty when REGISTRY_STORE=redis")
		}
		if c.RedisKeyTTL < 0 {
			return errors.New("REDIS_KEY_TTL cannot be negative")
		}
	default:
		return fmt.Errorf("REGISTRY_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.Store)
	}
	return nil
}

type Relay struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	Addr            string        `env:"RELAY_ADDR" envDefault:":8000"`
	RegistryURL     string        `env:"REGISTRY_URL" envDefault:"http://localhost:9000"`
	PollInterval    time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"1s"`
	RegistryTimeout time.Duration `env:"RELAY_REGISTRY_TIMEOUT" envDefault:"10s"`
	PayloadFormat   string        `env:"RELAY_PAYLOAD_FORMAT" envDefault:"legacy"`
}

func (c Relay) validate() error {
	if c.Addr == "" {
		return errors.New("RELAY_ADDR cannot be empty")
	}
	u, err := url.Parse(c.RegistryURL)
	if err != nil {
		return fmt.Errorf("REGISTRY_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("REGISTRY_URL must be an absolute http(s) URL, got %q", c.RegistryURL)
	}
	if c.PollInterval <= 0 {
		return errors.New("RELAY_POLL_INTERVAL must be positive")
	}
	if c.RegistryTimeout <= 0 {
		return errors.New("RELAY_REGISTRY_TIMEOUT must be positive")
	}
	if c.PayloadFormat != PayloadLegacy && c.PayloadFormat != PayloadJSON {
		return fmt.Errorf("RELAY_PAYLOAD_FORMAT must be %q or %q, got %q", PayloadLegacy, PayloadJSON, c.PayloadFormat)
	}
	return nil
}

func LoadRegistry(envFile string) (Registry, error) {
	var c Registry
	if err := load(envFile, &c); err != nil {
		return c, err
	}
	return c, c.validate()
}

func LoadRelay(envFile string) (Relay, error) {
	var c Relay
	if err := load(envFile, &c); err != nil {
		return c, err
	}
	return c, c.validate()
}

// load reads envFile into the process environment, if it exists, without
// overriding variables that are already set, then parses into v.
func load(envFile string, v any) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := env.Parse(v); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
