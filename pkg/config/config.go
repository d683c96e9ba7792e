// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-rsacrypt.
//
// go-rsacrypt is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads go-rsacrypt settings from defaults, an optional
// YAML file and RSACRYPT_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeremyhahn/go-rsacrypt/pkg/crypto/rand"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// RSACRYPT_PKCS11_LIBRARY for pkcs11.library.
const EnvPrefix = "RSACRYPT"

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	RNG      RNGConfig      `yaml:"rng" mapstructure:"rng"`
	PKCS11   PKCS11Config   `yaml:"pkcs11" mapstructure:"pkcs11"`
	Keystore KeystoreConfig `yaml:"keystore" mapstructure:"keystore"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RNGConfig selects the entropy source for key generation and padding
type RNGConfig struct {
	Mode          string `yaml:"mode" mapstructure:"mode"`
	FallbackMode  string `yaml:"fallback_mode" mapstructure:"fallback_mode"`
	TPM2Device    string `yaml:"tpm2_device" mapstructure:"tpm2_device"`
	TPM2Simulator bool   `yaml:"tpm2_simulator" mapstructure:"tpm2_simulator"`
	TPM2Host      string `yaml:"tpm2_host" mapstructure:"tpm2_host"`
	TPM2Port      int    `yaml:"tpm2_port" mapstructure:"tpm2_port"`
}

// PKCS11Config identifies the token used by the PKCS#11 engine and RNG
type PKCS11Config struct {
	// Library is the path to the PKCS#11 module, e.g.
	// /usr/lib/softhsm/libsofthsm2.so
	Library string `yaml:"library" mapstructure:"library"`

	// TokenLabel selects the token. Takes precedence over Slot.
	TokenLabel string `yaml:"token_label" mapstructure:"token_label"`

	// Slot selects the token by slot number when TokenLabel is empty.
	// Negative means unset.
	Slot int `yaml:"slot" mapstructure:"slot"`

	// PIN is the user PIN.
	PIN string `yaml:"pin" mapstructure:"pin"`
}

// KeystoreConfig controls the on-disk key store
type KeystoreConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MetricsConfig controls Prometheus metrics
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Textfile, when set, receives a snapshot of all metrics in the
	// node exporter textfile format.
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// DefaultKeystoreDir returns ~/.rsacrypt/keys, or .rsacrypt/keys when the
// home directory is unknown.
func DefaultKeystoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".rsacrypt", "keys")
	}
	return filepath.Join(home, ".rsacrypt", "keys")
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		RNG: RNGConfig{
			Mode:     string(rand.ModeAuto),
			TPM2Port: 2321,
		},
		PKCS11: PKCS11Config{
			Slot: -1,
		},
		Keystore: KeystoreConfig{
			Dir: DefaultKeystoreDir(),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// setDefaults registers every key so that environment variables are
// honored by Unmarshal even when no file sets them.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("rng.mode", d.RNG.Mode)
	v.SetDefault("rng.fallback_mode", d.RNG.FallbackMode)
	v.SetDefault("rng.tpm2_device", d.RNG.TPM2Device)
	v.SetDefault("rng.tpm2_simulator", d.RNG.TPM2Simulator)
	v.SetDefault("rng.tpm2_host", d.RNG.TPM2Host)
	v.SetDefault("rng.tpm2_port", d.RNG.TPM2Port)
	v.SetDefault("pkcs11.library", d.PKCS11.Library)
	v.SetDefault("pkcs11.token_label", d.PKCS11.TokenLabel)
	v.SetDefault("pkcs11.slot", d.PKCS11.Slot)
	v.SetDefault("pkcs11.pin", d.PKCS11.PIN)
	v.SetDefault("keystore.dir", d.Keystore.Dir)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// New returns a viper instance with defaults and environment binding. The
// CLI binds its flags to the same instance.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: unknown logging format %q", ErrInvalidConfig, c.Logging.Format)
	}

	if _, err := rand.ParseMode(c.RNG.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RNG.FallbackMode != "" {
		if _, err := rand.ParseMode(c.RNG.FallbackMode); err != nil {
			return fmt.Errorf("%w: fallback: %w", ErrInvalidConfig, err)
		}
	}

	// PKCS#11 typically requires PINs to be at least 4 characters
	if c.PKCS11.PIN != "" && len(c.PKCS11.PIN) < 4 {
		return fmt.Errorf("%w: pkcs11 pin must be at least 4 characters", ErrInvalidConfig)
	}

	if c.Keystore.Dir == "" {
		return fmt.Errorf("%w: keystore directory is required", ErrInvalidConfig)
	}

	return nil
}

// LoggerOptions converts the logging section into logging.Options.
func (c *Config) LoggerOptions() logging.Options {
	return logging.Options{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}

// RNGResolverConfig converts the rng and pkcs11 sections into a resolver
// configuration.
func (c *Config) RNGResolverConfig() *rand.Config {
	mode, _ := rand.ParseMode(c.RNG.Mode)
	cfg := &rand.Config{
		Mode: mode,
		TPM2Config: &rand.TPM2Config{
			Device:        c.RNG.TPM2Device,
			UseSimulator:  c.RNG.TPM2Simulator,
			SimulatorHost: c.RNG.TPM2Host,
			SimulatorPort: c.RNG.TPM2Port,
		},
	}
	if c.RNG.FallbackMode != "" {
		cfg.FallbackMode, _ = rand.ParseMode(c.RNG.FallbackMode)
	}
	if c.PKCS11.Library != "" {
		cfg.PKCS11Config = &rand.PKCS11Config{
			Module:     c.PKCS11.Library,
			TokenLabel: c.PKCS11.TokenLabel,
			Slot:       c.PKCS11.SlotNumber(),
			PIN:        c.PKCS11.PIN,
		}
	}
	return cfg
}

// SlotNumber returns the configured slot, or nil when unset.
func (c PKCS11Config) SlotNumber() *int {
	if c.Slot < 0 {
		return nil
	}
	slot := c.Slot
	return &slot
}
