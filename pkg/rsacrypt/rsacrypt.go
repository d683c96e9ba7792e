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

// Package rsacrypt imports, exports and generates RSA keys and encrypts
// and decrypts with them.
//
// Every key is a handle onto key state owned by a crypto engine. Exactly
// one engine is compiled in: crypto/rsa by default, or a PKCS#11 token when
// built with -tags pkcs11. Keys should be closed when no longer needed; a
// key that becomes unreachable is released by the garbage collector.
//
// Every constructor enforces that the key size is at least 1024 bits and a
// multiple of 8. Violations fail with ErrIncorrectParameterSize. Every
// other failure is an *UnderlyingCryptoError carrying a numeric code.
//
//	key, err := rsacrypt.GeneratePrivateKey(rsacrypt.KeySize2048)
//	if err != nil {
//		return err
//	}
//	defer key.Close()
//
//	pub, err := key.PublicKey()
//	...
//	ciphertext, err := pub.Encrypt(message, rsacrypt.PKCS1OAEP)
package rsacrypt

import (
	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
)

// Padding selects the encryption padding scheme.
type Padding = backend.Padding

var (
	// PKCS1OAEP is RSAES-OAEP with SHA-1 and MGF1-SHA1.
	PKCS1OAEP = backend.PKCS1OAEP

	// InsecurePKCS1v15 is RSAES-PKCS1-v1_5. Check SupportsPadding before
	// relying on it.
	InsecurePKCS1v15 = backend.InsecurePKCS1v15
)

// ErrIncorrectParameterSize is returned when a key is smaller than 1024
// bits or its size is not a multiple of 8.
var ErrIncorrectParameterSize = backend.ErrIncorrectParameterSize

// UnderlyingCryptoError reports any failure other than a key size
// violation. Compare with errors.Is against the backend.Err* targets.
type UnderlyingCryptoError = backend.UnderlyingCryptoError

// EncryptedData is the raw output of Encrypt.
type EncryptedData []byte

// DecryptedData is the raw output of Decrypt.
type DecryptedData []byte
