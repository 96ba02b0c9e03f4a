package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AppConfig is the credentials blob handed to the sync client at load time.
type AppConfig struct {
	ServerURL string `json:"serverUrl"`
	APIKey    string `json:"apiKey,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

type ClientConfig struct {
	App              AppConfig
	AppID            string
	InitialAuthToken string
	PrefsFile        string
	LogLevel         string
	LogFormat        string
}

func LoadClientConfig() (ClientConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return ClientConfig{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadClientConfigFromEnv(osEnv{})
}

func LoadClientConfigFromEnv(env Env) (ClientConfig, error) {
	cfg := ClientConfig{
		AppID:     "default-app",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// A missing blob is an empty config, like an unset page global.
	if raw := env.Getenv("APP_CONFIG"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.App); err != nil {
			return ClientConfig{}, fmt.Errorf("invalid APP_CONFIG: %w", err)
		}
	}
	if raw := env.Getenv("APP_ID"); raw != "" {
		cfg.AppID = raw
	}
	cfg.InitialAuthToken = env.Getenv("INITIAL_AUTH_TOKEN")

	cfg.PrefsFile = env.Getenv("PREFS_FILE")
	if cfg.PrefsFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.PrefsFile = filepath.Join(dir, "attendctl", "prefs.json")
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("LOG_FORMAT"); raw != "" {
		cfg.LogFormat = raw
	}
	return cfg, nil
}
