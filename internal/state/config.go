package state

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Config represents the user configuration for go-mcl.
type Config struct {
	Java     JavaConfig     `yaml:"java"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Network  NetworkConfig  `yaml:"network"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// JavaConfig holds runtime executable configuration.
type JavaConfig struct {
	Executable string `yaml:"executable"`
	Memory     string `yaml:"memory"`
}

// DefaultsConfig holds default values for provisioning and launch.
type DefaultsConfig struct {
	MinecraftVersion    string `yaml:"minecraft_version"`
	FabricLoaderVersion string `yaml:"fabric_loader_version"`
	ServerHost          string `yaml:"server_host"`
	ServerPort          int    `yaml:"server_port"`
}

// NetworkConfig holds download tuning.
type NetworkConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Concurrency int           `yaml:"concurrency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Java: JavaConfig{
			Executable: "java",
			Memory:     "4G",
		},
		Defaults: DefaultsConfig{
			MinecraftVersion:    "latest",
			FabricLoaderVersion: "",
			ServerHost:          "",
			ServerPort:          25565,
		},
		Network: NetworkConfig{
			Timeout:     30 * time.Second,
			MaxRetries:  3,
			Concurrency: 8,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadConfig loads the configuration from path. A missing file yields the
// defaults; a corrupted file is an error rather than silently replaced, the
// user may have a typo they want to fix.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to path atomically.
func SaveConfig(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return AtomicWrite(path, data, 0644)
}

// Validate checks the configuration for obviously broken values.
func (cfg *Config) Validate() error {
	if cfg.Java.Executable == "" {
		return fmt.Errorf("java executable cannot be empty")
	}

	if cfg.Java.Memory != "" {
		if _, err := units.RAMInBytes(cfg.Java.Memory); err != nil {
			return fmt.Errorf("invalid memory value %q: %w", cfg.Java.Memory, err)
		}
	}

	if cfg.Defaults.ServerPort < 1 || cfg.Defaults.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Defaults.ServerPort)
	}

	if cfg.Network.Timeout < time.Second {
		return fmt.Errorf("network timeout must be >= 1s, got %v", cfg.Network.Timeout)
	}

	if cfg.Network.MaxRetries < 1 {
		return fmt.Errorf("max retries must be >= 1, got %d", cfg.Network.MaxRetries)
	}

	if cfg.Network.Concurrency < 1 || cfg.Network.Concurrency > 64 {
		return fmt.Errorf("download concurrency must be between 1 and 64, got %d", cfg.Network.Concurrency)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	validLevel := false
	for _, level := range validLogLevels {
		if cfg.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	return nil
}
