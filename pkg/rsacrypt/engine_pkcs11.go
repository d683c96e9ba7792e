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

//go:build pkcs11

package rsacrypt

import (
	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/backend/pkcs11"
	"github.com/jeremyhahn/go-rsacrypt/pkg/config"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
)

const engineName = pkcs11.EngineName

func newEngine(cfg *config.Config, logger *logging.Logger) (backend.Engine, error) {
	p11 := &pkcs11.Config{
		Library:    cfg.PKCS11.Library,
		TokenLabel: cfg.PKCS11.TokenLabel,
		PIN:        cfg.PKCS11.PIN,
		Logger:     logger,
	}
	if p11.TokenLabel == "" {
		p11.Slot = cfg.PKCS11.SlotNumber()
	}
	return pkcs11.NewEngine(p11)
}
