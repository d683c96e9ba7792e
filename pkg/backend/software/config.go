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

package software

import (
	"github.com/jeremyhahn/go-rsacrypt/pkg/crypto/rand"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
)

// Config contains configuration for the software engine.
type Config struct {
	// Random is the entropy source for key generation and padding. If nil,
	// a software resolver backed by crypto/rand is used. The engine closes
	// it on Close.
	Random rand.Resolver

	// Logger receives debug records about key lifecycle events. Defaults
	// to logging.DefaultLogger().
	Logger *logging.Logger
}

// Validate checks if the Config is valid and fills in defaults.
func (c *Config) Validate() error {
	if c.Random == nil {
		r, err := rand.NewResolver(rand.ModeSoftware)
		if err != nil {
			return err
		}
		c.Random = r
	}
	if c.Logger == nil {
		c.Logger = logging.DefaultLogger()
	}
	return nil
}
