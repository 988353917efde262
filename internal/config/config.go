// Package config loads the ShopAssist settings file.
//
// The file is TOML. Values may reference environment variables with ${VAR}.
// Every key is optional; missing keys keep their built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/flow"
	"github.com/BurntSushi/toml"
)

// Defaults for the chat section.
const (
	DefaultSessionTTL    = 30 * time.Minute
	DefaultPurgeSchedule = "@hourly"
)

type Config struct {
	Store      flow.StoreSettings `toml:"store"`
	Storefront StorefrontConfig   `toml:"storefront"`
	Chat       ChatConfig         `toml:"chat"`
}

type StorefrontConfig struct {
	// BaseURL is prefixed to navigation paths by clients that cannot navigate relatively.
	BaseURL     string `toml:"base_url"`
	OrderAPIURL string `toml:"order_api_url"`
}

type ChatConfig struct {
	LookupTimeout    time.Duration `toml:"lookup_timeout"`
	SessionTTL       time.Duration `toml:"session_ttl"`
	RetainHistory    bool          `toml:"retain_history"`
	// HistoryRetention is how long persisted history is kept. Zero keeps it forever.
	HistoryRetention time.Duration `toml:"history_retention"`
	PurgeSchedule    string        `toml:"purge_schedule"`
}

// Default returns the configuration used when no settings file is given.
func Default() *Config {
	return &Config{
		Store: flow.DefaultStoreSettings(),
		Chat: ChatConfig{
			LookupTimeout: flow.DefaultLookupTimeout,
			SessionTTL:    DefaultSessionTTL,
			PurgeSchedule: DefaultPurgeSchedule,
		},
	}
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes a settings document on top of the defaults.
func Parse(doc string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(expandEnvVars(doc), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing config: unknown key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	for key, raw := range map[string]string{
		"storefront.base_url":      c.Storefront.BaseURL,
		"storefront.order_api_url": c.Storefront.OrderAPIURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", key, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must use http or https scheme", key)
		}
	}
	if c.Chat.LookupTimeout <= 0 {
		return fmt.Errorf("chat.lookup_timeout must be positive")
	}
	if c.Chat.SessionTTL <= 0 {
		return fmt.Errorf("chat.session_ttl must be positive")
	}
	if c.Chat.HistoryRetention < 0 {
		return fmt.Errorf("chat.history_retention must not be negative")
	}
	if c.Chat.HistoryRetention > 0 && strings.TrimSpace(c.Chat.PurgeSchedule) == "" {
		return fmt.Errorf("chat.purge_schedule is required when history_retention is set")
	}
	return nil
}
