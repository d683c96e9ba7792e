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
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"math/big"
	"sync"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
)

// publicKey is a backend.PublicKey holding an *rsa.PublicKey. A nil key
// means the handle is closed.
type publicKey struct {
	engine *Engine
	mu     sync.RWMutex
	key    *rsa.PublicKey
}

var _ backend.PublicKey = (*publicKey)(nil)

func (e *Engine) newPublicKey(pub *rsa.PublicKey) *publicKey {
	return &publicKey{engine: e, key: pub}
}

func (k *publicKey) load() (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == nil {
		return nil, backend.ErrKeyClosed
	}
	return k.key, nil
}

func (k *publicKey) KeySizeInBits() int {
	key, err := k.load()
	if err != nil {
		return 0
	}
	return key.Size() * 8
}

func (k *publicKey) DER() ([]byte, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}
	return backend.MarshalRSAPublicKey(key)
}

func (k *publicKey) PEM() (string, error) {
	der, err := k.DER()
	if err != nil {
		return "", err
	}
	return backend.PublicKeyPEM(der), nil
}

func (k *publicKey) Encrypt(plaintext []byte, padding backend.Padding) ([]byte, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}
	if !k.engine.SupportsPadding(padding) {
		return nil, backend.ErrUnsupportedPadding
	}
	if len(plaintext) > backend.MaxPlaintextSize(key.Size()*8, padding) {
		return nil, backend.NewCryptoError(backend.CodeMessageTooLong, rsa.ErrMessageTooLong)
	}

	var out []byte
	switch padding {
	case backend.PKCS1OAEP:
		out, err = rsa.EncryptOAEP(sha1.New(), k.engine.config.Random, key, plaintext, nil)
	case backend.InsecurePKCS1v15:
		out, err = rsa.EncryptPKCS1v15(k.engine.config.Random, key, plaintext)
	}
	if err != nil {
		if errors.Is(err, rsa.ErrMessageTooLong) {
			return nil, backend.NewCryptoError(backend.CodeMessageTooLong, err)
		}
		return nil, backend.NewCryptoError(backend.CodeEncryptionFailed, err)
	}
	return out, nil
}

func (k *publicKey) Duplicate() (backend.PublicKey, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}
	return k.engine.newPublicKey(copyPublicKey(key)), nil
}

func (k *publicKey) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = nil
	return nil
}

func copyPublicKey(pub *rsa.PublicKey) *rsa.PublicKey {
	return &rsa.PublicKey{
		N: new(big.Int).Set(pub.N),
		E: pub.E,
	}
}

// privateKey is a backend.PrivateKey holding an *rsa.PrivateKey. A nil key
// means the handle is closed.
type privateKey struct {
	engine *Engine
	mu     sync.RWMutex
	key    *rsa.PrivateKey
}

var _ backend.PrivateKey = (*privateKey)(nil)

func (e *Engine) newPrivateKey(key *rsa.PrivateKey) *privateKey {
	return &privateKey{engine: e, key: key}
}

func (k *privateKey) load() (*rsa.PrivateKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == nil {
		return nil, backend.ErrKeyClosed
	}
	return k.key, nil
}

func (k *privateKey) KeySizeInBits() int {
	key, err := k.load()
	if err != nil {
		return 0
	}
	return key.Size() * 8
}

func (k *privateKey) DER() ([]byte, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKCS1PrivateKey(key), nil
}

func (k *privateKey) PEM() (string, error) {
	der, err := k.DER()
	if err != nil {
		return "", err
	}
	return backend.PrivateKeyPEM(der), nil
}

func (k *privateKey) PublicKey() (backend.PublicKey, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}
	return k.engine.newPublicKey(copyPublicKey(&key.PublicKey)), nil
}

// Decrypt returns backend.ErrDecryption for every rejected ciphertext,
// including one of the wrong length.
func (k *privateKey) Decrypt(ciphertext []byte, padding backend.Padding) ([]byte, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}
	if !k.engine.SupportsPadding(padding) {
		return nil, backend.ErrUnsupportedPadding
	}
	if len(ciphertext) != key.Size() {
		return nil, backend.ErrDecryption
	}

	var out []byte
	switch padding {
	case backend.PKCS1OAEP:
		out, err = rsa.DecryptOAEP(sha1.New(), nil, key, ciphertext, nil)
	case backend.InsecurePKCS1v15:
		out, err = rsa.DecryptPKCS1v15(nil, key, ciphertext)
	}
	if err != nil {
		return nil, backend.ErrDecryption
	}
	return out, nil
}

func (k *privateKey) Duplicate() (backend.PrivateKey, error) {
	key, err := k.load()
	if err != nil {
		return nil, err
	}
	dup, err := backend.ParseRSAPrivateKey(x509.MarshalPKCS1PrivateKey(key))
	if err != nil {
		return nil, err
	}
	return k.engine.newPrivateKey(dup), nil
}

func (k *privateKey) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = nil
	return nil
}
