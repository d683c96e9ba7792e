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

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-rsacrypt/pkg/config"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to an optional YAML configuration file
	ConfigFile string

	// KeyDir overrides keystore.dir
	KeyDir string

	// OutputFormat controls output formatting (text, json, yaml)
	OutputFormat string

	// Verbose enables debug logging
	Verbose bool

	// MetricsTextfile overrides metrics.textfile
	MetricsTextfile string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
	}
}

// Validate checks the flag values.
func (c *Config) Validate() error {
	if _, err := ParseOutputFormat(c.OutputFormat); err != nil {
		return err
	}
	return nil
}

// Resolve builds the library configuration. Flags take precedence over
// the environment, which takes precedence over the config file.
func (c *Config) Resolve(v *viper.Viper) (*config.Config, error) {
	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", c.ConfigFile, err)
		}
	}
	if c.KeyDir != "" {
		v.Set("keystore.dir", c.KeyDir)
	}
	if c.MetricsTextfile != "" {
		v.Set("metrics.textfile", c.MetricsTextfile)
	}
	if c.Verbose {
		v.Set("logging.level", "debug")
	}
	return config.FromViper(v)
}

func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "config=%q key-dir=%q output=%s verbose=%t",
		c.ConfigFile, c.KeyDir, c.OutputFormat, c.Verbose)
	return b.String()
}
