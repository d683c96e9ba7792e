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

//go:build !pkcs11

package rsacrypt

import (
	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/backend/software"
	"github.com/jeremyhahn/go-rsacrypt/pkg/config"
	"github.com/jeremyhahn/go-rsacrypt/pkg/crypto/rand"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
)

const engineName = software.EngineName

func newEngine(cfg *config.Config, logger *logging.Logger) (backend.Engine, error) {
	random, err := rand.NewResolver(cfg.RNGResolverConfig())
	if err != nil {
		return nil, err
	}
	e, err := software.NewEngine(&software.Config{Random: random, Logger: logger})
	if err != nil {
		random.Close()
		return nil, err
	}
	return e, nil
}
