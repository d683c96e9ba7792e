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

// Package mocks provides configurable backend.Engine and key handle
// implementations for tests.
package mocks

import (
	"sync"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
)

// MockEngine is a mock implementation of backend.Engine. Unset Func fields
// fail with backend.ErrEngineUnavailable.
type MockEngine struct {
	mu sync.Mutex

	// Configurable behavior
	NameFunc              func() string
	PublicKeyFromPEMFunc  func(string) (backend.PublicKey, error)
	PublicKeyFromDERFunc  func([]byte) (backend.PublicKey, error)
	PrivateKeyFromPEMFunc func(string) (backend.PrivateKey, error)
	PrivateKeyFromDERFunc func([]byte) (backend.PrivateKey, error)
	GenerateFunc          func(int) (backend.PrivateKey, error)
	SupportsPaddingFunc   func(backend.Padding) bool

	// Call tracking
	GenerateCalls []int
	CloseCalls    int
}

var _ backend.Engine = (*MockEngine)(nil)

// NewMockEngine creates a MockEngine with default behavior.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

func (m *MockEngine) PublicKeyFromPEM(text string) (backend.PublicKey, error) {
	if m.PublicKeyFromPEMFunc != nil {
		return m.PublicKeyFromPEMFunc(text)
	}
	return nil, backend.ErrEngineUnavailable
}

func (m *MockEngine) PublicKeyFromDER(der []byte) (backend.PublicKey, error) {
	if m.PublicKeyFromDERFunc != nil {
		return m.PublicKeyFromDERFunc(der)
	}
	return nil, backend.ErrEngineUnavailable
}

func (m *MockEngine) PrivateKeyFromPEM(text string) (backend.PrivateKey, error) {
	if m.PrivateKeyFromPEMFunc != nil {
		return m.PrivateKeyFromPEMFunc(text)
	}
	return nil, backend.ErrEngineUnavailable
}

func (m *MockEngine) PrivateKeyFromDER(der []byte) (backend.PrivateKey, error) {
	if m.PrivateKeyFromDERFunc != nil {
		return m.PrivateKeyFromDERFunc(der)
	}
	return nil, backend.ErrEngineUnavailable
}

func (m *MockEngine) GeneratePrivateKey(bits int) (backend.PrivateKey, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, bits)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(bits)
	}
	return nil, backend.ErrEngineUnavailable
}

func (m *MockEngine) SupportsPadding(padding backend.Padding) bool {
	if m.SupportsPaddingFunc != nil {
		return m.SupportsPaddingFunc(padding)
	}
	return true
}

func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// Generated returns the bit sizes GeneratePrivateKey was called with.
func (m *MockEngine) Generated() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.GenerateCalls...)
}

// keyState is shared by the mock key handles.
type keyState struct {
	mu         sync.Mutex
	closeCalls int

	// CloseErr is returned by Close.
	CloseErr error
}

func (s *keyState) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return s.CloseErr
}

// CloseCalls returns how many times Close was called.
func (s *keyState) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// MockPublicKey is a mock backend.PublicKey of a fixed size.
type MockPublicKey struct {
	keyState

	Bits        int
	DERBytes    []byte
	EncryptFunc func([]byte, backend.Padding) ([]byte, error)
}

var _ backend.PublicKey = (*MockPublicKey)(nil)

func (k *MockPublicKey) KeySizeInBits() int { return k.Bits }

func (k *MockPublicKey) DER() ([]byte, error) { return append([]byte(nil), k.DERBytes...), nil }

func (k *MockPublicKey) PEM() (string, error) { return backend.PublicKeyPEM(k.DERBytes), nil }

func (k *MockPublicKey) Encrypt(plaintext []byte, padding backend.Padding) ([]byte, error) {
	if k.EncryptFunc != nil {
		return k.EncryptFunc(plaintext, padding)
	}
	return nil, backend.ErrEncryption
}

func (k *MockPublicKey) Duplicate() (backend.PublicKey, error) {
	return &MockPublicKey{Bits: k.Bits, DERBytes: k.DERBytes, EncryptFunc: k.EncryptFunc}, nil
}

func (k *MockPublicKey) Close() error { return k.close() }

// MockPrivateKey is a mock backend.PrivateKey of a fixed size.
type MockPrivateKey struct {
	keyState

	Bits        int
	DERBytes    []byte
	DecryptFunc func([]byte, backend.Padding) ([]byte, error)
	Public      *MockPublicKey
}

var _ backend.PrivateKey = (*MockPrivateKey)(nil)

func (k *MockPrivateKey) KeySizeInBits() int { return k.Bits }

func (k *MockPrivateKey) DER() ([]byte, error) { return append([]byte(nil), k.DERBytes...), nil }

func (k *MockPrivateKey) PEM() (string, error) { return backend.PrivateKeyPEM(k.DERBytes), nil }

func (k *MockPrivateKey) PublicKey() (backend.PublicKey, error) {
	if k.Public != nil {
		return k.Public, nil
	}
	return &MockPublicKey{Bits: k.Bits}, nil
}

func (k *MockPrivateKey) Decrypt(ciphertext []byte, padding backend.Padding) ([]byte, error) {
	if k.DecryptFunc != nil {
		return k.DecryptFunc(ciphertext, padding)
	}
	return nil, backend.ErrDecryption
}

func (k *MockPrivateKey) Duplicate() (backend.PrivateKey, error) {
	return &MockPrivateKey{Bits: k.Bits, DERBytes: k.DERBytes, DecryptFunc: k.DecryptFunc}, nil
}

func (k *MockPrivateKey) Close() error { return k.close() }
