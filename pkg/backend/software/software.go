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

// Package software implements the crypto engine on top of crypto/rsa.
//
// OAEP uses SHA-1 for both the label digest and MGF1. Keys are plain Go
// values, so Duplicate re-parses the exported DER to obtain storage that is
// not shared with the source.
package software

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
)

// EngineName identifies this engine in logs and metrics.
const EngineName = "software"

// Engine is the crypto/rsa implementation of backend.Engine.
type Engine struct {
	config *Config
	mu     sync.RWMutex
	closed bool
}

var _ backend.Engine = (*Engine)(nil)

// NewEngine creates a software engine. config may be nil.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("software: invalid config: %w", err)
	}
	return &Engine{config: config}, nil
}

func (e *Engine) Name() string {
	return EngineName
}

// SupportsPadding reports true for OAEP and PKCS#1 v1.5.
func (e *Engine) SupportsPadding(padding backend.Padding) bool {
	return padding == backend.PKCS1OAEP || padding == backend.InsecurePKCS1v15
}

func (e *Engine) PublicKeyFromPEM(text string) (backend.PublicKey, error) {
	der, err := backend.PublicKeyDERFromPEM(text)
	if err != nil {
		return nil, err
	}
	return e.PublicKeyFromDER(der)
}

func (e *Engine) PublicKeyFromDER(der []byte) (backend.PublicKey, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	pub, err := backend.ParseRSAPublicKey(der)
	if err != nil {
		return nil, err
	}
	return e.newPublicKey(pub), nil
}

func (e *Engine) PrivateKeyFromPEM(text string) (backend.PrivateKey, error) {
	der, err := backend.PrivateKeyDERFromPEM(text)
	if err != nil {
		return nil, err
	}
	return e.privateKeyFromPKCS1(der)
}

func (e *Engine) PrivateKeyFromDER(der []byte) (backend.PrivateKey, error) {
	return e.privateKeyFromPKCS1(backend.PKCS1FromDER(der))
}

func (e *Engine) privateKeyFromPKCS1(der []byte) (backend.PrivateKey, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	key, err := backend.ParseRSAPrivateKey(der)
	if err != nil {
		return nil, err
	}
	return e.newPrivateKey(key), nil
}

// GeneratePrivateKey creates a key with public exponent 65537.
func (e *Engine) GeneratePrivateKey(bits int) (backend.PrivateKey, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	key, err := rsa.GenerateKey(e.config.Random, bits)
	if err != nil {
		return nil, backend.NewCryptoError(backend.CodeKeyGenerationFailed, err)
	}
	e.config.Logger.Debugf("software: generated %d-bit RSA key", bits)
	return e.newPrivateKey(key), nil
}

// Close releases the entropy source. Keys already handed out remain
// usable for operations that need no randomness.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.config.Random.Close()
}

func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return backend.NewCryptoError(backend.CodeEngineUnavailable, errors.New("software: engine closed"))
	}
	return nil
}
