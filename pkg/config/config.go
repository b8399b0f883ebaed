// Package config provides configuration file support for wcbt. It holds
// engine-wide defaults that are not per-invocation CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wcbt-project/wcbt/pkg/model"
	"gopkg.in/yaml.v3"
)

var (
	cache   = make(map[string]*Config)
	cacheMu sync.RWMutex
)

// Config represents the wcbt destination-level configuration, rooted at
// <destination>/.wcbt_config.yaml.
type Config struct {
	// HashAlgorithm is the default digest algorithm used by Hasher.
	HashAlgorithm model.HashAlgorithm `yaml:"hash_algorithm,omitempty"`

	// RestoreVerifyMode is the default RestoreVerifyStage mode.
	RestoreVerifyMode model.StageVerifyMode `yaml:"restore_verify_mode,omitempty"`

	// Lock configures ProfileLock lease timing.
	Lock LockConfig `yaml:"lock,omitempty"`

	// Hooks configures the reserved compression/encryption extension points.
	Hooks HooksConfig `yaml:"hooks,omitempty"`

	// Logging configures the ambient structured logger.
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// LockConfig configures ProfileLock lease timing.
type LockConfig struct {
	DefaultLeaseTTL    string `yaml:"default_lease_ttl,omitempty"`
	ClockSkewTolerance string `yaml:"clock_skew_tolerance,omitempty"`
}

// HooksConfig configures the reserved compression/encryption hooks. Both
// default to disabled (no-op) — the core has no compression or encryption
// implementation, only the seam.
type HooksConfig struct {
	CompressionEnabled bool `yaml:"compression_enabled,omitempty"`
	EncryptionEnabled  bool `yaml:"encryption_enabled,omitempty"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		HashAlgorithm:     model.HashAlgorithmSHA256,
		RestoreVerifyMode: model.StageVerifySize,
		Lock: LockConfig{
			DefaultLeaseTTL:    "5m",
			ClockSkewTolerance: "30s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from <destination>/.wcbt_config.yaml. A missing
// file is not an error — defaults apply.
func Load(destinationRoot string) (*Config, error) {
	cacheMu.RLock()
	if cfg, ok := cache[destinationRoot]; ok {
		cacheMu.RUnlock()
		return cfg, nil
	}
	cacheMu.RUnlock()

	cfg := Default()
	cfgPath := filepath.Join(destinationRoot, ".wcbt_config.yaml")

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		cacheAndReturn(destinationRoot, cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cacheAndReturn(destinationRoot, cfg)
	return cfg, nil
}

// Save writes configuration to <destination>/.wcbt_config.yaml.
func Save(destinationRoot string, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	cfgPath := filepath.Join(destinationRoot, ".wcbt_config.yaml")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cacheAndReturn(destinationRoot, cfg)
	return nil
}

func (c *Config) validate() error {
	if c.HashAlgorithm != "" && c.HashAlgorithm != model.HashAlgorithmSHA256 {
		return fmt.Errorf("invalid hash_algorithm: %s (only sha256 is supported)", c.HashAlgorithm)
	}
	switch c.RestoreVerifyMode {
	case "", model.StageVerifyNone, model.StageVerifySize:
	default:
		return fmt.Errorf("invalid restore_verify_mode: %s (must be none or size)", c.RestoreVerifyMode)
	}
	if _, err := c.LeaseTTL(); err != nil {
		return fmt.Errorf("invalid lock.default_lease_ttl: %w", err)
	}
	if _, err := c.ClockSkewTolerance(); err != nil {
		return fmt.Errorf("invalid lock.clock_skew_tolerance: %w", err)
	}
	return nil
}

// LeaseTTL parses the configured lock lease duration.
func (c *Config) LeaseTTL() (time.Duration, error) {
	if c.Lock.DefaultLeaseTTL == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(c.Lock.DefaultLeaseTTL)
}

// ClockSkewTolerance parses the configured clock-skew tolerance.
func (c *Config) ClockSkewTolerance() (time.Duration, error) {
	if c.Lock.ClockSkewTolerance == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.Lock.ClockSkewTolerance)
}

// InvalidateCache clears the cached config for a destination root.
func InvalidateCache(destinationRoot string) {
	cacheMu.Lock()
	delete(cache, destinationRoot)
	cacheMu.Unlock()
}

func cacheAndReturn(destinationRoot string, cfg *Config) {
	cacheMu.Lock()
	cache[destinationRoot] = cfg
	cacheMu.Unlock()
}
