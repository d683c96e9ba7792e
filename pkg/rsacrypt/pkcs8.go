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
	"errors"
	"runtime"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/metrics"
	"github.com/jeremyhahn/go-rsacrypt/pkg/pem"
	"github.com/jeremyhahn/go-rsacrypt/pkg/pkcs8"
)

// NewPrivateKeyFromEncryptedPEM imports an "ENCRYPTED PRIVATE KEY"
// document. A wrong password fails with backend.ErrInvalidPassword.
func NewPrivateKeyFromEncryptedPEM(text string, password []byte) (*PrivateKey, error) {
	return importPrivateKey(metrics.OpImport, func(e backend.Engine) (backend.PrivateKey, error) {
		doc, err := backend.DecodePEM(text, backend.LabelEncryptedPrivateKey)
		if err != nil {
			return nil, err
		}
		pkcs1, err := pkcs8.Decrypt(doc.Bytes, password)
		if err != nil {
			return nil, pkcs8Error(err)
		}
		return e.PrivateKeyFromDER(pkcs1)
	})
}

func pkcs8Error(err error) error {
	switch {
	case errors.Is(err, pkcs8.ErrDecryptFailed), errors.Is(err, pkcs8.ErrEmptyPassword):
		return backend.NewCryptoError(backend.CodeInvalidPassword, err)
	case errors.Is(err, pkcs8.ErrNotRSAKey):
		return backend.NewCryptoError(backend.CodeNotRSAKey, err)
	}
	return backend.NewCryptoError(backend.CodeKeyExportFailed, err)
}

// PKCS8DER returns the key as an unencrypted PKCS#8 PrivateKeyInfo.
func (k *PrivateKey) PKCS8DER() (der []byte, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpExport, k.engine)(&err)

	if err := k.check(); err != nil {
		return nil, err
	}
	pkcs1, err := k.key.DER()
	if err != nil {
		return nil, err
	}
	der, err = pkcs8.Wrap(pkcs1)
	if err != nil {
		return nil, backend.NewCryptoError(backend.CodeKeyExportFailed, err)
	}
	return der, nil
}

// PKCS8PEM returns the key as a "PRIVATE KEY" document.
func (k *PrivateKey) PKCS8PEM() (string, error) {
	der, err := k.PKCS8DER()
	if err != nil {
		return "", err
	}
	return pem.Format(backend.LabelPrivateKey, der), nil
}

// EncryptedPKCS8PEM returns the key as an "ENCRYPTED PRIVATE KEY" document
// protected by password.
func (k *PrivateKey) EncryptedPKCS8PEM(password []byte) (text string, err error) {
	defer runtime.KeepAlive(k)
	defer observe(metrics.OpExport, k.engine)(&err)

	if err := k.check(); err != nil {
		return "", err
	}
	pkcs1, err := k.key.DER()
	if err != nil {
		return "", err
	}
	der, err := pkcs8.Encrypt(pkcs1, password)
	if err != nil {
		return "", pkcs8Error(err)
	}
	return pem.Format(backend.LabelEncryptedPrivateKey, der), nil
}
