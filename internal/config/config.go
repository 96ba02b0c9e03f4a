package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	StaticRoot    string
	EntryDocument string
	MasterSecret  string
	GinMode       string
	TLSCertFile   string
	TLSKeyFile    string
	TokenExpiry   time.Duration

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string

	AnonSignInLimit int

	LogLevel  string
	LogFormat string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// OSEnv reads the process environment.
func OSEnv() Env { return osEnv{} }

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already present in the environment win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

func LoadConfig() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:            3000,
		StaticRoot:      ".",
		EntryDocument:   "index.html",
		GinMode:         "release",
		TokenExpiry:     7 * 24 * time.Hour,
		StoreBackend:    "memory",
		AnonSignInLimit: 30,
		LogLevel:        "info",
		LogFormat:       "json",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("STATIC_ROOT"); raw != "" {
		cfg.StaticRoot = raw
	}
	if raw := env.Getenv("ENTRY_DOCUMENT"); raw != "" {
		cfg.EntryDocument = raw
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("STORE_BACKEND"); raw != "" {
		cfg.StoreBackend = raw
	}
	cfg.RedisAddr = env.Getenv("REDIS_ADDR")
	cfg.RedisPassword = env.Getenv("REDIS_PASSWORD")
	cfg.DatabaseURL = env.Getenv("DATABASE_URL")

	switch cfg.StoreBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	if raw := env.Getenv("ANON_SIGNIN_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid ANON_SIGNIN_LIMIT")
		}
		cfg.AnonSignInLimit = limit
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("LOG_FORMAT"); raw != "" {
		cfg.LogFormat = raw
	}

	return cfg, nil
}
