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

package rand

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ThalesGroup/crypto11"
)

// pkcs11Resolver draws random bytes from a PKCS#11 token through crypto11,
// which maps reads onto C_GenerateRandom on pooled sessions.
type pkcs11Resolver struct {
	ctx    *crypto11.Context
	reader io.Reader
	mu     sync.RWMutex
}

var _ Resolver = (*pkcs11Resolver)(nil)

func newPKCS11Resolver(config *PKCS11Config) (Resolver, error) {
	if config == nil {
		return nil, fmt.Errorf("PKCS#11 configuration required")
	}
	if config.Module == "" {
		return nil, fmt.Errorf("PKCS#11 module path is required")
	}
	if config.TokenLabel == "" && config.Slot == nil {
		return nil, fmt.Errorf("PKCS#11 token label or slot is required")
	}

	c11cfg := &crypto11.Config{
		Path: config.Module,
		Pin:  config.PIN,
	}
	if config.TokenLabel != "" {
		c11cfg.TokenLabel = config.TokenLabel
	} else {
		c11cfg.SlotNumber = config.Slot
	}

	ctx, err := crypto11.Configure(c11cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure PKCS#11 context: %w", err)
	}

	reader, err := ctx.NewRandomReader()
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("failed to open PKCS#11 random reader: %w", err)
	}

	return &pkcs11Resolver{
		ctx:    ctx,
		reader: reader,
	}, nil
}

func pkcs11Available() bool {
	return true
}

func (p *pkcs11Resolver) Rand(n int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ctx == nil {
		return nil, errors.New("PKCS#11 resolver closed")
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(p.reader, buf); err != nil {
		return nil, fmt.Errorf("PKCS#11 random generation failed: %w", err)
	}
	return buf, nil
}

// Read implements io.Reader.
func (p *pkcs11Resolver) Read(b []byte) (int, error) {
	return readFull(p.Rand, b)
}

func (p *pkcs11Resolver) Source() Source {
	return &pkcs11Source{resolver: p}
}

func (p *pkcs11Resolver) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctx != nil
}

func (p *pkcs11Resolver) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil
	}
	err := p.ctx.Close()
	p.ctx = nil
	p.reader = nil
	return err
}

type pkcs11Source struct {
	resolver *pkcs11Resolver
}

func (s *pkcs11Source) Rand(n int) ([]byte, error) {
	return s.resolver.Rand(n)
}

func (s *pkcs11Source) Available() bool {
	return s.resolver.Available()
}

func (s *pkcs11Source) Close() error {
	return s.resolver.Close()
}
