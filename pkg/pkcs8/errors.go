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

// Package pkcs8 handles the PKCS#8 PrivateKeyInfo container around RSA
// PKCS#1 private keys.
//
// Unwrap is a narrow byte-layout matcher for the single layout produced by
// common tooling for RSA keys of practical size: a two-byte long-form
// SEQUENCE, version 0, the rsaEncryption algorithm
// identifier with NULL parameters and a two-byte long-form OCTET STRING. It
// is not a general DER parser. Wrap builds that layout, and Encrypt and
// Decrypt handle the password protected EncryptedPrivateKeyInfo form.
package pkcs8

import "errors"

var (
	// ErrInvalidPKCS1 is returned when input expected to be a PKCS#1 RSA
	// private key is not a DER SEQUENCE.
	ErrInvalidPKCS1 = errors.New("pkcs8: invalid PKCS#1 private key")

	// ErrNotRSAKey is returned when a PKCS#8 container holds a non-RSA key.
	ErrNotRSAKey = errors.New("pkcs8: not an RSA private key")

	// ErrDecryptFailed is returned when an encrypted private key cannot be
	// decrypted with the supplied password.
	ErrDecryptFailed = errors.New("pkcs8: unable to decrypt private key")

	// ErrEmptyPassword is returned when encryption or decryption is
	// requested without a password.
	ErrEmptyPassword = errors.New("pkcs8: password is required")
)
