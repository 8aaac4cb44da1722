// Package config loads the server configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	NATS   NATSConfig   `yaml:"nats"`
}

// ServerConfig holds the listen settings for both access paths.
type ServerConfig struct {
	HTTPPort    int `yaml:"httpPort"`
	ChannelPort int `yaml:"channelPort"`
}

// NATSConfig holds the optional decoder-feed settings.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Default returns the local development configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			HTTPPort:    8000,
			ChannelPort: 8765,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
			Subject: "asterix.records",
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.ChannelPort <= 0 {
		return Config{}, fmt.Errorf("ports must be positive")
	}
	return cfg, nil
}
