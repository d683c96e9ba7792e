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
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
	"github.com/jeremyhahn/go-rsacrypt/pkg/metrics"
)

// handle owns one engine key. The zero value is not usable.
type handle struct {
	engine    string
	bits      int
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	cleanup   runtime.Cleanup
}

// release is registered as the garbage collection cleanup. It must not
// reference the owning key.
type release struct {
	key    backend.Key
	engine string
}

func (r release) run() error {
	metrics.KeyClosed(r.engine)
	return r.key.Close()
}

func (h *handle) close(key backend.Key) error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.cleanup.Stop()
		h.closeErr = release{key: key, engine: h.engine}.run()
	})
	return h.closeErr
}

func (h *handle) check() error {
	if h.closed.Load() {
		return backend.ErrKeyClosed
	}
	return nil
}

// PublicKey is an RSA public key held by the engine.
type PublicKey struct {
	key backend.PublicKey
	handle
}

func newPublicKey(engine string, key backend.PublicKey) *PublicKey {
	k := &PublicKey{key: key, handle: handle{engine: engine, bits: key.KeySizeInBits()}}
	k.cleanup = runtime.AddCleanup(k, func(r release) { r.run() }, release{key: key, engine: engine})
	metrics.KeyOpened(engine)
	return k
}

// adoptPublicKey takes ownership of key if it satisfies the size
// invariant and closes it otherwise.
func adoptPublicKey(engine string, key backend.PublicKey) (*PublicKey, error) {
	if err := checkKeySize(key.KeySizeInBits()); err != nil {
		// The size error stays the only error returned.
		logging.DefaultLogger().MaybeError(key.Close())
		return nil, err
	}
	return newPublicKey(engine, key), nil
}

// NewPublicKeyFromPEM imports a "PUBLIC KEY" document.
func NewPublicKeyFromPEM(text string) (*PublicKey, error) {
	return importPublicKey(func(e backend.Engine) (backend.PublicKey, error) {
		return e.PublicKeyFromPEM(text)
	})
}

// NewPublicKeyFromDER imports a DER SubjectPublicKeyInfo.
func NewPublicKeyFromDER(der []byte) (*PublicKey, error) {
	return importPublicKey(func(e backend.Engine) (backend.PublicKey, error) {
		return e.PublicKeyFromDER(der)
	})
}

func importPublicKey(fn func(backend.Engine) (backend.PublicKey, error)) (key *PublicKey, err error) {
	e, err := currentEngine()
	if err != nil {
		return nil, err
	}
	defer observe(metrics.OpImport, e.Name())(&err)

	k, err := fn(e)
	if err != nil {
		return nil, err
	}
	return adoptPublicKey(e.Name(), k)
}

// KeySizeInBits returns the modulus size in bits.
func (k *PublicKey) KeySizeInBits() int {
	return k.bits
}

// MaximumEncryptSize returns the largest plaintext Encrypt accepts with
// padding.
func (k *PublicKey) MaximumEncryptSize(padding Padding) int {
	return backend.MaxPlaintextSize(k.bits, padding)
}

// Encrypt encrypts data. Plaintexts longer than MaximumEncryptSize fail
// with a message-too-long UnderlyingCryptoError.
func (k *PublicKey) Encrypt(data []byte, padding Padding) (ciphertext EncryptedData, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpEncrypt, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	out, err := k.key.Encrypt(data, padding)
	if err != nil {
		return nil, err
	}
	return EncryptedData(out), nil
}

// DER returns the key as a DER SubjectPublicKeyInfo.
func (k *PublicKey) DER() (der []byte, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpExport, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	return k.key.DER()
}

// PEM returns the key as a "PUBLIC KEY" document.
func (k *PublicKey) PEM() (text string, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpExport, k.engine)(&err)

	if err := k.check(); err != nil {
		return "", err
	}
	return k.key.PEM()
}

// Clone returns an independent copy made by the engine.
func (k *PublicKey) Clone() (clone *PublicKey, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpClone, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	dup, err := k.key.Duplicate()
	if err != nil {
		return nil, err
	}
	return adoptPublicKey(k.engine, dup)
}

// Close releases the engine key. It is safe to call more than once.
func (k *PublicKey) Close() error {
	return k.close(k.key)
}

// PrivateKey is an RSA private key held by the engine.
type PrivateKey struct {
	key backend.PrivateKey
	handle
}

func newPrivateKey(engine string, key backend.PrivateKey) *PrivateKey {
	k := &PrivateKey{key: key, handle: handle{engine: engine, bits: key.KeySizeInBits()}}
	k.cleanup = runtime.AddCleanup(k, func(r release) { r.run() }, release{key: key, engine: engine})
	metrics.KeyOpened(engine)
	return k
}

func adoptPrivateKey(engine string, key backend.PrivateKey) (*PrivateKey, error) {
	if err := checkKeySize(key.KeySizeInBits()); err != nil {
		// The size error stays the only error returned.
		logging.DefaultLogger().MaybeError(key.Close())
		return nil, err
	}
	return newPrivateKey(engine, key), nil
}

// NewPrivateKeyFromPEM imports an "RSA PRIVATE KEY" (PKCS#1) or
// "PRIVATE KEY" (PKCS#8) document.
func NewPrivateKeyFromPEM(text string) (*PrivateKey, error) {
	return importPrivateKey(metrics.OpImport, func(e backend.Engine) (backend.PrivateKey, error) {
		return e.PrivateKeyFromPEM(text)
	})
}

// NewPrivateKeyFromDER imports PKCS#8 or PKCS#1 DER.
func NewPrivateKeyFromDER(der []byte) (*PrivateKey, error) {
	return importPrivateKey(metrics.OpImport, func(e backend.Engine) (backend.PrivateKey, error) {
		return e.PrivateKeyFromDER(der)
	})
}

// GeneratePrivateKey generates a key with public exponent 65537. Sizes
// below MinimumKeySize fail without reaching the engine.
func GeneratePrivateKey(size KeySize) (*PrivateKey, error) {
	if err := checkKeySize(size.BitCount()); err != nil {
		return nil, err
	}
	return importPrivateKey(metrics.OpGenerate, func(e backend.Engine) (backend.PrivateKey, error) {
		return e.GeneratePrivateKey(size.BitCount())
	})
}

func importPrivateKey(op string, fn func(backend.Engine) (backend.PrivateKey, error)) (key *PrivateKey, err error) {
	e, err := currentEngine()
	if err != nil {
		return nil, err
	}
	defer observe(op, e.Name())(&err)

	k, err := fn(e)
	if err != nil {
		return nil, err
	}
	return adoptPrivateKey(e.Name(), k)
}

// KeySizeInBits returns the modulus size in bits.
func (k *PrivateKey) KeySizeInBits() int {
	return k.bits
}

// MaximumEncryptSize returns the largest plaintext the matching public key
// encrypts with padding.
func (k *PrivateKey) MaximumEncryptSize(padding Padding) int {
	return backend.MaxPlaintextSize(k.bits, padding)
}

// PublicKey derives the public key. The result is owned separately and
// stays usable after k is closed.
func (k *PrivateKey) PublicKey() (pub *PublicKey, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpDerive, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	p, err := k.key.PublicKey()
	if err != nil {
		return nil, err
	}
	return newPublicKey(k.engine, p), nil
}

// Decrypt decrypts data. Every rejected ciphertext, including one whose
// length differs from KeySizeInBits/8, fails with the same error.
func (k *PrivateKey) Decrypt(data []byte, padding Padding) (plaintext DecryptedData, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpDecrypt, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	out, err := k.key.Decrypt(data, padding)
	if err != nil {
		return nil, err
	}
	return DecryptedData(out), nil
}

// DER returns the key as PKCS#1 DER.
func (k *PrivateKey) DER() (der []byte, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpExport, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	return k.key.DER()
}

// PEM returns the key as an "RSA PRIVATE KEY" document.
func (k *PrivateKey) PEM() (text string, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpExport, k.engine)(&err)

	if err := k.check(); err != nil {
		return "", err
	}
	return k.key.PEM()
}

// Clone returns an independent copy made by the engine.
func (k *PrivateKey) Clone() (clone *PrivateKey, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpClone, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	dup, err := k.key.Duplicate()
	if err != nil {
		return nil, err
	}
	return adoptPrivateKey(k.engine, dup)
}

// Close releases the engine key. It is safe to call more than once.
func (k *PrivateKey) Close() error {
	return k.close(k.key)
}
