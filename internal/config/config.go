package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

type Config struct {
	ListenAddr string `json:"listen_addr,omitempty" validate:"omitempty,hostname_port"`
	DataDir    string `json:"data_dir,omitempty"`

	// Proxies are CORS-proxy URL templates; each must carry a {url}
	// placeholder for the escaped target. Empty means the built-in chain.
	Proxies []string `json:"proxies,omitempty" validate:"omitempty,min=2,dive,contains={url}"`

	AttemptTimeoutSec  int `json:"attempt_timeout_sec,omitempty" validate:"omitempty,min=1,max=120"`
	RefreshIntervalMin int `json:"refresh_interval_min,omitempty" validate:"omitempty,min=1"`
	BatchSize          int `json:"batch_size,omitempty" validate:"omitempty,min=1"`
	BatchDelayMS       int `json:"batch_delay_ms,omitempty" validate:"omitempty,min=0"`

	Debug bool `json:"debug,omitempty"`
}

func DefaultDataDir() string {
	if v := os.Getenv("GOLDRATES_DATA_DIR"); v != "" {
		return v
	}
	return "/var/lib/goldrates"
}

func DefaultConfigPath() string {
	if v := os.Getenv("GOLDRATES_CONFIG"); v != "" {
		return v
	}
	return "/etc/goldrates/config.json"
}

func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	// 1) Try file
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config json: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// 2) Env fallback / override
	if v := os.Getenv("GOLDRATES_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("GOLDRATES_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GOLDRATES_REFRESH_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RefreshIntervalMin = n
		}
	}
	if v := os.Getenv("GOLDRATES_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	cfg.DataDir = filepath.Clean(cfg.DataDir)
	if cfg.RefreshIntervalMin == 0 {
		cfg.RefreshIntervalMin = 5
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) AttemptTimeout() time.Duration {
	if c.AttemptTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.AttemptTimeoutSec) * time.Second
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMin) * time.Minute
}

func (c Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "goldrates.db")
}
