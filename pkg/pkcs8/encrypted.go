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

package pkcs8

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/youmark/pkcs8"
)

// Encrypt converts a PKCS#1 RSA private key into a password protected
// EncryptedPrivateKeyInfo (PBES2, PBKDF2-HMAC-SHA256, AES-256-CBC).
func Encrypt(pkcs1 []byte, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	key, err := x509.ParsePKCS1PrivateKey(pkcs1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPKCS1, err)
	}
	der, err := pkcs8.MarshalPrivateKey(key, password, nil)
	if err != nil {
		return nil, fmt.Errorf("pkcs8: failed to encrypt private key: %w", err)
	}
	return der, nil
}

// Decrypt opens a password protected EncryptedPrivateKeyInfo and returns
// the RSA key it holds as PKCS#1 DER.
func Decrypt(der []byte, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	key, err := pkcs8.ParsePKCS8PrivateKey(der, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return x509.MarshalPKCS1PrivateKey(rsaKey), nil
}
