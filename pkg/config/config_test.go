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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremyhahn/go-rsacrypt/pkg/crypto/rand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rsacrypt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "auto", cfg.RNG.Mode)
	assert.Equal(t, -1, cfg.PKCS11.Slot)
	assert.Nil(t, cfg.PKCS11.SlotNumber())
	assert.True(t, cfg.Metrics.Enabled)
	assert.NotEmpty(t, cfg.Keystore.Dir)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
rng:
  mode: software
pkcs11:
  library: /usr/lib/softhsm/libsofthsm2.so
  token_label: rsacrypt
  pin: "1234"
keystore:
  dir: /var/lib/rsacrypt
metrics:
  enabled: false
  textfile: /var/lib/node_exporter/rsacrypt.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "software", cfg.RNG.Mode)
	assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", cfg.PKCS11.Library)
	assert.Equal(t, "rsacrypt", cfg.PKCS11.TokenLabel)
	assert.Equal(t, "1234", cfg.PKCS11.PIN)
	assert.Equal(t, "/var/lib/rsacrypt", cfg.Keystore.Dir)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/var/lib/node_exporter/rsacrypt.prom", cfg.Metrics.Textfile)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: warn\n")

	t.Setenv("RSACRYPT_LOGGING_LEVEL", "error")
	t.Setenv("RSACRYPT_PKCS11_LIBRARY", "/opt/hsm/lib.so")
	t.Setenv("RSACRYPT_PKCS11_SLOT", "3")
	t.Setenv("RSACRYPT_KEYSTORE_DIR", "/tmp/keys")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "/opt/hsm/lib.so", cfg.PKCS11.Library)
	require.NotNil(t, cfg.PKCS11.SlotNumber())
	assert.Equal(t, 3, *cfg.PKCS11.SlotNumber())
	assert.Equal(t, "/tmp/keys", cfg.Keystore.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad rng mode", func(c *Config) { c.RNG.Mode = "dice" }, true},
		{"bad fallback", func(c *Config) { c.RNG.FallbackMode = "dice" }, true},
		{"short pin", func(c *Config) { c.PKCS11.PIN = "12" }, true},
		{"empty keystore", func(c *Config) { c.Keystore.Dir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrInvalidConfig)
}

func TestRNGResolverConfig(t *testing.T) {
	cfg := Default()
	cfg.RNG.Mode = "tpm2"
	cfg.RNG.FallbackMode = "software"
	cfg.PKCS11.Library = "/opt/hsm/lib.so"
	cfg.PKCS11.TokenLabel = "token"

	rc := cfg.RNGResolverConfig()
	assert.Equal(t, rand.ModeTPM2, rc.Mode)
	assert.Equal(t, rand.ModeSoftware, rc.FallbackMode)
	require.NotNil(t, rc.PKCS11Config)
	assert.Equal(t, "/opt/hsm/lib.so", rc.PKCS11Config.Module)
	assert.Equal(t, "token", rc.PKCS11Config.TokenLabel)
	assert.Nil(t, rc.PKCS11Config.Slot)
	assert.Equal(t, 2321, rc.TPM2Config.SimulatorPort)

	cfg.PKCS11.Library = ""
	assert.Nil(t, cfg.RNGResolverConfig().PKCS11Config)
}

func TestLoggerOptions(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	opts := cfg.LoggerOptions()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "text", opts.Format)
}
