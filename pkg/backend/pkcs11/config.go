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

package pkcs11

import (
	"fmt"
	"os"

	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
)

// Config contains configuration for the PKCS#11 engine.
type Config struct {
	// Library is the path to the PKCS#11 module.
	// Examples:
	//   - /usr/lib/softhsm/libsofthsm2.so (SoftHSM)
	//   - /usr/lib/libykcs11.so (YubiKey)
	Library string `yaml:"library" json:"library" mapstructure:"library"`

	// TokenLabel selects the token by label. Ignored when Slot is set.
	TokenLabel string `yaml:"label" json:"label" mapstructure:"label"`

	// Slot selects the token by slot number.
	Slot *int `yaml:"slot,omitempty" json:"slot,omitempty" mapstructure:"slot"`

	// PIN is the user PIN. An empty PIN skips login, which only works on
	// tokens that allow public session objects.
	PIN string `yaml:"pin,omitempty" json:"pin,omitempty" mapstructure:"pin"`

	Logger *logging.Logger `yaml:"-" json:"-" mapstructure:"-"`
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}

	if c.Library == "" {
		return fmt.Errorf("%w: library path is required", ErrInvalidConfig)
	}
	if _, err := os.Stat(c.Library); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, c.Library)
	}

	if c.TokenLabel == "" && c.Slot == nil {
		return fmt.Errorf("%w: token label or slot is required", ErrInvalidConfig)
	}
	if c.Slot != nil && *c.Slot < 0 {
		return fmt.Errorf("%w: slot must not be negative", ErrInvalidConfig)
	}

	if c.PIN != "" && len(c.PIN) < 4 {
		return ErrInvalidPINLength
	}

	if c.Logger == nil {
		c.Logger = logging.DefaultLogger()
	}
	return nil
}

// String returns a string representation of the config with the PIN masked.
func (c *Config) String() string {
	pinMask := "****"
	if c.PIN == "" {
		pinMask = "<not set>"
	}

	slot := "<not set>"
	if c.Slot != nil {
		slot = fmt.Sprintf("%d", *c.Slot)
	}

	return fmt.Sprintf("PKCS#11 Config{Library: %s, TokenLabel: %s, Slot: %s, PIN: %s}",
		c.Library, c.TokenLabel, slot, pinMask)
}
