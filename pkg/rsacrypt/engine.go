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

package rsacrypt

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/config"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
	"github.com/jeremyhahn/go-rsacrypt/pkg/metrics"
)

// ErrAlreadyConfigured is returned by Configure once the engine exists.
var ErrAlreadyConfigured = errors.New("rsacrypt: engine already initialized")

var (
	engineMu     sync.Mutex
	engineConfig *config.Config
	engine       backend.Engine
)

// Configure sets the configuration the engine is created from. It must be
// called before the first key is constructed; without it the engine uses
// config.Default.
func Configure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	engineMu.Lock()
	defer engineMu.Unlock()

	if engine != nil {
		return ErrAlreadyConfigured
	}
	engineConfig = cfg

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}
	return nil
}

// currentEngine returns the process engine, creating it on first use.
func currentEngine() (backend.Engine, error) {
	engineMu.Lock()
	defer engineMu.Unlock()

	if engine != nil {
		return engine, nil
	}

	cfg := engineConfig
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.DefaultLogger()

	e, err := newEngine(cfg, logger)
	if err != nil {
		return nil, backend.NewCryptoError(backend.CodeEngineUnavailable,
			fmt.Errorf("rsacrypt: failed to create %s engine: %w", engineName, err))
	}
	logger.Debugf("rsacrypt: using %s engine", e.Name())
	engine = e
	return engine, nil
}

// EngineName returns the name of the compiled-in engine, "software" or
// "pkcs11".
func EngineName() string {
	engineMu.Lock()
	defer engineMu.Unlock()
	if engine != nil {
		return engine.Name()
	}
	return engineName
}

// SupportsPadding reports whether the engine implements padding. It
// returns false when the engine cannot be created.
func SupportsPadding(padding Padding) bool {
	e, err := currentEngine()
	if err != nil {
		return false
	}
	return e.SupportsPadding(padding)
}

// Shutdown closes the engine. Keys created before Shutdown fail with
// backend.ErrEngineUnavailable or keep working, depending on the engine;
// the next constructor call creates a fresh engine.
func Shutdown() error {
	engineMu.Lock()
	defer engineMu.Unlock()

	if engine == nil {
		return nil
	}
	err := engine.Close()
	engine = nil
	return err
}
