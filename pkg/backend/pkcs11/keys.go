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

package pkcs11

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/miekg/pkcs11"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
)

// privateObjectTemplate describes an RSA private key session object that
// can be read back for export.
func privateObjectTemplate() []*pkcs11.Attribute {
	return []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, false),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
	}
}

func (e *Engine) importPublicKey(pub *rsa.PublicKey) (backend.PublicKey, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, pub.N.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(int64(pub.E)).Bytes()),
	}

	handle, err := e.createObject(template)
	if err != nil {
		return nil, err
	}
	return &publicKey{object: &object{engine: e, handle: handle, bits: pub.Size() * 8}}, nil
}

func (e *Engine) importPrivateKey(key *rsa.PrivateKey) (backend.PrivateKey, error) {
	if len(key.Primes) != 2 {
		return nil, backend.NewCryptoError(backend.CodeInvalidKeyEncoding, ErrUnsupportedKey)
	}
	key.Precompute()

	template := append(privateObjectTemplate(),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, key.N.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(int64(key.E)).Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE_EXPONENT, key.D.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIME_1, key.Primes[0].Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIME_2, key.Primes[1].Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_1, key.Precomputed.Dp.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_2, key.Precomputed.Dq.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_COEFFICIENT, key.Precomputed.Qinv.Bytes()),
	)

	handle, err := e.createObject(template)
	if err != nil {
		return nil, err
	}
	return &privateKey{object: &object{engine: e, handle: handle, bits: key.Size() * 8}}, nil
}

func (e *Engine) createObject(template []*pkcs11.Attribute) (pkcs11.ObjectHandle, error) {
	var handle pkcs11.ObjectHandle
	err := e.withSession(func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		h, err := ctx.CreateObject(session, template)
		if err != nil {
			return cryptoError(backend.CodeInvalidKeyEncoding, err)
		}
		handle = h
		return nil
	})
	return handle, err
}

// newPrivateKey wraps a freshly generated private object, reading its
// modulus to learn the key size.
func (e *Engine) newPrivateKey(handle pkcs11.ObjectHandle) (backend.PrivateKey, error) {
	o := &object{engine: e, handle: handle}
	pub, err := o.rsaPublicKey()
	if err != nil {
		o.Close()
		return nil, err
	}
	o.bits = pub.Size() * 8
	return &privateKey{object: o}, nil
}

// object is a token-resident key. Operations hold the read lock so Close
// cannot destroy the handle while it is in use.
type object struct {
	engine *Engine
	mu     sync.RWMutex
	handle pkcs11.ObjectHandle
	bits   int
	closed bool
}

func (o *object) KeySizeInBits() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return 0
	}
	return o.bits
}

// Close destroys the session object. Once the engine is closed the session
// has already released it.
func (o *object) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	err := o.engine.withSession(func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		return ctx.DestroyObject(session, o.handle)
	})
	if err != nil && !errors.Is(err, backend.ErrEngineUnavailable) {
		return fmt.Errorf("pkcs11: failed to destroy object: %w", err)
	}
	return nil
}

// attributes reads attribute values. Callers hold o.mu.
func (o *object) attributes(types ...uint) (map[uint][]byte, error) {
	template := make([]*pkcs11.Attribute, len(types))
	for i, t := range types {
		template[i] = pkcs11.NewAttribute(t, nil)
	}

	var attrs []*pkcs11.Attribute
	err := o.engine.withSession(func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		var err error
		attrs, err = ctx.GetAttributeValue(session, o.handle, template)
		return err
	})
	if err != nil {
		if errors.Is(err, backend.ErrEngineUnavailable) {
			return nil, err
		}
		return nil, cryptoError(backend.CodeKeyExportFailed, err)
	}

	values := make(map[uint][]byte, len(attrs))
	for _, a := range attrs {
		values[a.Type] = a.Value
	}
	return values, nil
}

func (o *object) rsaPublicKey() (*rsa.PublicKey, error) {
	values, err := o.attributes(pkcs11.CKA_MODULUS, pkcs11.CKA_PUBLIC_EXPONENT)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(values[pkcs11.CKA_PUBLIC_EXPONENT])
	if !e.IsInt64() || e.Int64() > 1<<31-1 || e.Sign() <= 0 {
		return nil, backend.NewCryptoError(backend.CodeKeyExportFailed, errors.New("pkcs11: invalid public exponent"))
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(values[pkcs11.CKA_MODULUS]),
		E: int(e.Int64()),
	}, nil
}

// copy duplicates the session object. Callers hold o.mu.
func (o *object) copy() (*object, error) {
	var handle pkcs11.ObjectHandle
	err := o.engine.withSession(func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		h, err := ctx.CopyObject(session, o.handle, nil)
		if err != nil {
			return cryptoError(backend.CodeKeyExportFailed, err)
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &object{engine: o.engine, handle: handle, bits: o.bits}, nil
}

type publicKey struct {
	*object
}

var _ backend.PublicKey = (*publicKey)(nil)

func (k *publicKey) DER() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, backend.ErrKeyClosed
	}

	pub, err := k.rsaPublicKey()
	if err != nil {
		return nil, err
	}
	return backend.MarshalRSAPublicKey(pub)
}

func (k *publicKey) PEM() (string, error) {
	der, err := k.DER()
	if err != nil {
		return "", err
	}
	return backend.PublicKeyPEM(der), nil
}

func (k *publicKey) Encrypt(plaintext []byte, padding backend.Padding) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, backend.ErrKeyClosed
	}
	if !k.engine.SupportsPadding(padding) {
		return nil, backend.ErrUnsupportedPadding
	}
	if len(plaintext) > backend.MaxPlaintextSize(k.bits, padding) {
		return nil, backend.NewCryptoError(backend.CodeMessageTooLong, errors.New("pkcs11: message too long"))
	}

	var out []byte
	err := k.engine.withSession(func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		if err := ctx.EncryptInit(session, mechanism(padding), k.handle); err != nil {
			return cryptoError(backend.CodeEncryptionFailed, err)
		}
		ct, err := ctx.Encrypt(session, plaintext)
		if err != nil {
			if err == pkcs11.Error(pkcs11.CKR_DATA_LEN_RANGE) {
				return backend.NewCryptoError(backend.CodeMessageTooLong, err)
			}
			return cryptoError(backend.CodeEncryptionFailed, err)
		}
		out = ct
		return nil
	})
	return out, err
}

func (k *publicKey) Duplicate() (backend.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, backend.ErrKeyClosed
	}

	o, err := k.copy()
	if err != nil {
		return nil, err
	}
	return &publicKey{object: o}, nil
}

type privateKey struct {
	*object
}

var _ backend.PrivateKey = (*privateKey)(nil)

func (k *privateKey) DER() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, backend.ErrKeyClosed
	}

	values, err := k.attributes(
		pkcs11.CKA_MODULUS,
		pkcs11.CKA_PUBLIC_EXPONENT,
		pkcs11.CKA_PRIVATE_EXPONENT,
		pkcs11.CKA_PRIME_1,
		pkcs11.CKA_PRIME_2,
	)
	if err != nil {
		return nil, err
	}

	num := func(t uint) *big.Int { return new(big.Int).SetBytes(values[t]) }
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: num(pkcs11.CKA_MODULUS),
			E: int(num(pkcs11.CKA_PUBLIC_EXPONENT).Int64()),
		},
		D:      num(pkcs11.CKA_PRIVATE_EXPONENT),
		Primes: []*big.Int{num(pkcs11.CKA_PRIME_1), num(pkcs11.CKA_PRIME_2)},
	}
	if err := key.Validate(); err != nil {
		return nil, backend.NewCryptoError(backend.CodeKeyExportFailed, err)
	}
	key.Precompute()
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
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, backend.ErrKeyClosed
	}

	pub, err := k.rsaPublicKey()
	if err != nil {
		return nil, err
	}
	return k.engine.importPublicKey(pub)
}

// Decrypt returns backend.ErrDecryption for every rejected ciphertext so
// callers cannot tell padding failures apart.
func (k *privateKey) Decrypt(ciphertext []byte, padding backend.Padding) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, backend.ErrKeyClosed
	}
	if !k.engine.SupportsPadding(padding) {
		return nil, backend.ErrUnsupportedPadding
	}
	if len(ciphertext) != k.bits/8 {
		return nil, backend.ErrDecryption
	}

	var out []byte
	err := k.engine.withSession(func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		if err := ctx.DecryptInit(session, mechanism(padding), k.handle); err != nil {
			return backend.ErrDecryption
		}
		pt, err := ctx.Decrypt(session, ciphertext)
		if err != nil {
			return backend.ErrDecryption
		}
		out = pt
		return nil
	})
	if err != nil && !errors.Is(err, backend.ErrEngineUnavailable) {
		return nil, backend.ErrDecryption
	}
	return out, err
}

func (k *privateKey) Duplicate() (backend.PrivateKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, backend.ErrKeyClosed
	}

	o, err := k.copy()
	if err != nil {
		return nil, err
	}
	return &privateKey{object: o}, nil
}
