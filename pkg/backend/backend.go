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

// Package backend defines the contract between the RSA key types and the
// cryptographic engine that owns key material.
//
// Exactly one Engine is compiled into a binary. An engine hands out opaque
// key handles; every handle must be released with Close, and a copy with
// separate ownership is obtained with Duplicate rather than by sharing the
// handle.
package backend

// Engine imports, generates and exports RSA keys for one concrete
// cryptographic implementation.
type Engine interface {
	// Name identifies the engine, e.g. "software" or "pkcs11".
	Name() string

	// PublicKeyFromPEM imports a SubjectPublicKeyInfo key labeled
	// "PUBLIC KEY".
	PublicKeyFromPEM(text string) (PublicKey, error)

	// PublicKeyFromDER imports a DER encoded SubjectPublicKeyInfo key.
	PublicKeyFromDER(der []byte) (PublicKey, error)

	// PrivateKeyFromPEM imports a PKCS#1 ("RSA PRIVATE KEY") or PKCS#8
	// ("PRIVATE KEY") private key.
	PrivateKeyFromPEM(text string) (PrivateKey, error)

	// PrivateKeyFromDER imports a PKCS#8 or PKCS#1 private key. PKCS#8 is
	// tried first.
	PrivateKeyFromDER(der []byte) (PrivateKey, error)

	// GeneratePrivateKey creates a new key with public exponent 65537.
	GeneratePrivateKey(bits int) (PrivateKey, error)

	// SupportsPadding reports whether the engine implements the padding.
	SupportsPadding(padding Padding) bool

	// Close releases engine resources. Keys obtained from a closed engine
	// must not be used.
	Close() error
}

// Key holds the operations shared by public and private key handles.
type Key interface {
	// KeySizeInBits returns the modulus length in bytes multiplied by 8.
	KeySizeInBits() int

	// DER exports the key. Public keys are SubjectPublicKeyInfo and private
	// keys are PKCS#1.
	DER() ([]byte, error)

	// PEM exports the key with a "PUBLIC KEY" or "RSA PRIVATE KEY" label.
	PEM() (string, error)

	// Close releases the handle. It is safe to call more than once.
	Close() error
}

// PublicKey is an engine handle to an RSA public key.
type PublicKey interface {
	Key

	// Encrypt pads and encrypts plaintext.
	Encrypt(plaintext []byte, padding Padding) ([]byte, error)

	// Duplicate returns an independent handle to the same key.
	Duplicate() (PublicKey, error)
}

// PrivateKey is an engine handle to an RSA private key.
type PrivateKey interface {
	Key

	// PublicKey derives an independent public key handle.
	PublicKey() (PublicKey, error)

	// Decrypt decrypts and unpads ciphertext. All failures return
	// ErrDecryption regardless of cause.
	Decrypt(ciphertext []byte, padding Padding) ([]byte, error)

	// Duplicate returns an independent handle to the same key.
	Duplicate() (PrivateKey, error)
}
