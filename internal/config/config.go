// Package config loads the sidekick YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/shadr/godot-sidekick-lsp/pkg/catalog"
	"github.com/shadr/godot-sidekick-lsp/pkg/hints"
	"github.com/shadr/godot-sidekick-lsp/pkg/store"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "SIDEKICK_CONFIG"

type Config struct {
	// Catalog is a .json or .msgpack catalog replacing the embedded one.
	Catalog  string `yaml:"catalog,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
	// PositionEncoding is the preferred column unit: utf-16 or utf-8.
	PositionEncoding string        `yaml:"position_encoding,omitempty"`
	InlayHints       hints.Options `yaml:"inlay_hints"`
}

func Default() *Config {
	return &Config{
		LogLevel:         zerolog.InfoLevel.String(),
		PositionEncoding: string(store.EncodingUTF16),
		InlayHints:       hints.DefaultOptions(),
	}
}

// Resolve returns the config path to use: the explicit path when set, the
// environment variable otherwise. An empty result means defaults.
func Resolve(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	return os.Getenv(EnvVar)
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	if _, err := cfg.Encoding(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Level parses LogLevel. Empty means info.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) Encoding() (store.Encoding, error) {
	if c.PositionEncoding == "" {
		return store.EncodingUTF16, nil
	}
	enc, ok := store.ParseEncoding(c.PositionEncoding)
	if !ok {
		return "", fmt.Errorf("position_encoding %q: want utf-16 or utf-8", c.PositionEncoding)
	}
	return enc, nil
}

// LoadCatalog returns the configured catalog, or the embedded one.
func (c *Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.Catalog == "" {
		return catalog.Default()
	}
	return catalog.Load(c.Catalog)
}
