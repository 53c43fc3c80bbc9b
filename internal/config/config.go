// Package config loads and validates memfab configuration files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level memfab.yaml configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	Providers []ProviderConfig `yaml:"providers"`
	Log       LogConfig        `yaml:"log"`
}

// StoreConfig selects and configures the message store backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "postgres".
	Backend string `yaml:"backend"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path,omitempty"`
	// DSN is the connection string for the postgres backend.
	DSN string `yaml:"dsn,omitempty"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	// Provider is "local" or "openai".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	APIKeyEnv  string `yaml:"api_key_env,omitempty"`
}

// ProviderConfig registers one model with the router.
type ProviderConfig struct {
	// Name is the model name clients route by, e.g. "claude-3-sonnet".
	Name string `yaml:"name"`
	// Provider is "anthropic", "openai", or "google".
	Provider string `yaml:"provider"`
	// APIKeyEnv names the environment variable holding the credential.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level,omitempty"`
}

// DefaultFile is the default configuration filename.
const DefaultFile = "memfab.yaml"

// Default returns the configuration used when no file is present: an
// in-memory store, the local embedding provider, and no registered models.
func Default() *Config {
	return &Config{
		Store:     StoreConfig{Backend: "memory"},
		Embedding: EmbeddingConfig{Provider: "local"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads and parses a configuration file. A missing file at the default
// path is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultFile {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration data from YAML bytes and applies defaults for
// omitted sections.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend and provider selections.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("config: sqlite backend requires store.path")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: postgres backend requires store.dsn")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	switch c.Embedding.Provider {
	case "local":
	case "openai":
		if c.Embedding.Model == "" {
			return fmt.Errorf("config: openai embedding requires embedding.model")
		}
	default:
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}

	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider entry missing name")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Provider {
		case "anthropic", "openai", "google":
		default:
			return fmt.Errorf("config: provider %q: unknown provider type %q", p.Name, p.Provider)
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}

// APIKey resolves a provider's credential from the environment. An entry
// with no api_key_env resolves to the provider type's conventional variable.
func (p *ProviderConfig) APIKey() string {
	env := p.APIKeyEnv
	if env == "" {
		switch p.Provider {
		case "anthropic":
			env = "ANTHROPIC_API_KEY"
		case "openai":
			env = "OPENAI_API_KEY"
		case "google":
			env = "GEMINI_API_KEY"
		}
	}
	return os.Getenv(env)
}
