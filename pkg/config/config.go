package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/chainjson/pkg/config/netmode"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default path to the config directory.
const DefaultConfigPath = "./config"

// Version is the version of the tool, set at build time.
var Version string

// Config is the top-level structure representing the configuration.
type Config struct {
	Network                  Network                  `yaml:"Network"`
	Store                    Store                    `yaml:"Store"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Default returns the configuration used for the given cluster when no
// config file is provided.
func Default(c netmode.Cluster) Config {
	return Config{
		Network: Network{
			Cluster:    c,
			Commitment: DefaultCommitment,
		},
		Store: Store{
			Capacity: DefaultCapacity,
			Funding: Funding{
				Lamports:     DefaultAirdropLamports,
				MaxPolls:     DefaultFundingPolls,
				PollInterval: DefaultFundingPollInterval,
			},
		},
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel: "info",
		},
	}
}

// Load attempts to load the config from the given path for the given
// cluster.
func Load(path string, c netmode.Cluster) (Config, error) {
	configPath := filepath.Join(path, fmt.Sprintf("chainjson.%s.yml", c))
	return loadWithDefaults(configPath, Default(c))
}

// LoadFile loads config from the provided path. Cluster defaults to
// netmode.LocalNet unless it's set in the file.
func LoadFile(configPath string) (Config, error) {
	return loadWithDefaults(configPath, Default(netmode.LocalNet))
}

func loadWithDefaults(configPath string, config Config) (Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config is invalid: %w", err)
	}
	return config, nil
}

// Validate checks the config for consistency and fills in derived values.
func (c *Config) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("Network: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("Store: %w", err)
	}
	return nil
}
