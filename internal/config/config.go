// Package config assembles server settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/session"
)

// Environment variable names
const (
	EnvAddr          = "PROGRAMDESK_ADDR"
	EnvDB            = "PROGRAMDESK_DB"
	EnvEnv           = "PROGRAMDESK_ENV"
	EnvConfig        = "PROGRAMDESK_CONFIG"
	EnvSlowQueryMs   = "PROGRAMDESK_SLOW_QUERY_MS"
	EnvSlowRequestMs = "PROGRAMDESK_SLOW_REQUEST_MS"
	EnvCSRFKey       = "PROGRAMDESK_CSRF_KEY"
)

// EnvProduction is the PROGRAMDESK_ENV value that enables production behaviour.
const EnvProduction = "production"

// Config holds everything the server needs at startup.
type Config struct {
	Addr          string
	DBPath        string
	Env           string
	ConfigPath    string
	SlowQueryMs   int
	SlowRequestMs int
	CSRFKey       []byte // nil when unset outside production
	Policy        session.Policy
	Capabilities  capability.Matrix
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// fileConfig is the YAML layout of PROGRAMDESK_CONFIG.
type fileConfig struct {
	Recording struct {
		LookbackDays *int   `yaml:"lookback_days"`
		LeadTime     string `yaml:"lead_time"`
	} `yaml:"recording"`
	Capabilities map[string][]string `yaml:"capabilities"`
}

// Errors
var (
	ErrInvalidNumber = errors.New("expected a non-negative integer")
	ErrInvalidPolicy = errors.New("invalid recording policy")
	ErrCSRFKeyLength = errors.New("csrf key must be 64 hex characters (32 bytes)")
	ErrCSRFKeyNeeded = errors.New("csrf key is required in production")
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	slog.Info("config_event", "event", "dotenv_loaded", "path", path)
	return nil
}

// Load reads settings through getenv and merges the YAML file it names, if any.
// PRE: getenv is non-nil (os.Getenv in production)
// POST: Policy and Capabilities are always populated
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:         envOrDefault(getenv, EnvAddr, ":8080"),
		DBPath:       envOrDefault(getenv, EnvDB, "programdesk.db"),
		Env:          envOrDefault(getenv, EnvEnv, "development"),
		ConfigPath:   getenv(EnvConfig),
		Policy:       session.DefaultPolicy(),
		Capabilities: capability.DefaultMatrix(),
	}

	var err error
	if cfg.SlowQueryMs, err = intOrZero(getenv, EnvSlowQueryMs); err != nil {
		return Config{}, err
	}
	if cfg.SlowRequestMs, err = intOrZero(getenv, EnvSlowRequestMs); err != nil {
		return Config{}, err
	}
	if keyHex := getenv(EnvCSRFKey); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return Config{}, fmt.Errorf("%s: %w", EnvCSRFKey, ErrCSRFKeyLength)
		}
		cfg.CSRFKey = key
	} else if cfg.IsProduction() {
		return Config{}, fmt.Errorf("%s: %w", EnvCSRFKey, ErrCSRFKeyNeeded)
	}

	if cfg.ConfigPath != "" {
		if err := cfg.mergeFile(cfg.ConfigPath, getenv); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path. ${VAR} references are expanded first.
func (c *Config) mergeFile(path string, getenv func(string) string) error {
	// #nosec G304 -- path comes from the operator's environment
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	expanded := os.Expand(string(data), getenv)

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &fc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if fc.Recording.LookbackDays != nil {
		if *fc.Recording.LookbackDays < 0 {
			return fmt.Errorf("%w: lookback_days %d", ErrInvalidPolicy, *fc.Recording.LookbackDays)
		}
		c.Policy.LookbackDays = *fc.Recording.LookbackDays
	}
	if fc.Recording.LeadTime != "" {
		d, err := time.ParseDuration(fc.Recording.LeadTime)
		if err != nil || d < 0 || d >= 24*time.Hour {
			return fmt.Errorf("%w: lead_time %q", ErrInvalidPolicy, fc.Recording.LeadTime)
		}
		c.Policy.LeadTime = d
	}

	if len(fc.Capabilities) > 0 {
		m := make(capability.Matrix, len(fc.Capabilities))
		for role, caps := range fc.Capabilities {
			for _, name := range caps {
				m[role] = append(m[role], capability.Capability(name))
			}
			if m[role] == nil {
				m[role] = []capability.Capability{}
			}
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("capabilities: %w", err)
		}
		c.Capabilities = m
	}

	slog.Info("config_event", "event", "file_loaded", "path", path,
		"lookback_days", c.Policy.LookbackDays, "lead_time", c.Policy.LeadTime.String(), "roles", len(c.Capabilities))
	return nil
}

func envOrDefault(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOrZero(getenv func(string) string, key string) (int, error) {
	v := getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s=%q: %w", key, v, ErrInvalidNumber)
	}
	return n, nil
}
