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

package backend

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/jeremyhahn/go-rsacrypt/pkg/pem"
	"github.com/jeremyhahn/go-rsacrypt/pkg/pkcs8"
)

// PEM labels.
const (
	LabelPublicKey           = "PUBLIC KEY"
	LabelRSAPrivateKey       = "RSA PRIVATE KEY"
	LabelPrivateKey          = "PRIVATE KEY"
	LabelEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
)

// DecodePEM parses text and checks its label against the accepted set.
func DecodePEM(text string, labels ...string) (*pem.Document, error) {
	doc, err := pem.Parse(text)
	if err != nil {
		return nil, NewCryptoError(CodeInvalidPEMDocument, err)
	}
	for _, label := range labels {
		if doc.Type == label {
			return doc, nil
		}
	}
	return nil, NewCryptoError(CodeInvalidPEMDocument,
		fmt.Errorf("%w: unexpected label %q", pem.ErrInvalidPEMDocument, doc.Type))
}

// PublicKeyDERFromPEM returns the SubjectPublicKeyInfo DER of a
// "PUBLIC KEY" document.
func PublicKeyDERFromPEM(text string) ([]byte, error) {
	doc, err := DecodePEM(text, LabelPublicKey)
	if err != nil {
		return nil, err
	}
	return doc.Bytes, nil
}

// PrivateKeyDERFromPEM returns the PKCS#1 DER of an "RSA PRIVATE KEY" or
// "PRIVATE KEY" document. A "PRIVATE KEY" body must be an RSA
// PrivateKeyInfo recognized by pkcs8.Unwrap.
func PrivateKeyDERFromPEM(text string) ([]byte, error) {
	doc, err := DecodePEM(text, LabelRSAPrivateKey, LabelPrivateKey)
	if err != nil {
		return nil, err
	}
	if doc.Type == LabelRSAPrivateKey {
		return doc.Bytes, nil
	}
	inner, ok := pkcs8.Unwrap(doc.Bytes)
	if !ok {
		return nil, NewCryptoError(CodeInvalidPEMDocument,
			fmt.Errorf("%w: unrecognized PKCS#8 private key", pem.ErrInvalidPEMDocument))
	}
	return inner, nil
}

// PKCS1FromDER returns the PKCS#1 key inside a PKCS#8 container, or der
// itself when it is not one.
func PKCS1FromDER(der []byte) []byte {
	if inner, ok := pkcs8.Unwrap(der); ok {
		return inner
	}
	return der
}

// ParseRSAPublicKey decodes a SubjectPublicKeyInfo holding an RSA key.
func ParseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, NewCryptoError(CodeInvalidKeyEncoding, err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, NewCryptoError(CodeNotRSAKey, fmt.Errorf("unexpected key type %T", key))
	}
	return pub, nil
}

// ParseRSAPrivateKey decodes a PKCS#1 private key.
func ParseRSAPrivateKey(pkcs1 []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS1PrivateKey(pkcs1)
	if err != nil {
		return nil, NewCryptoError(CodeInvalidKeyEncoding, err)
	}
	return key, nil
}

// MarshalRSAPublicKey encodes pub as SubjectPublicKeyInfo DER.
func MarshalRSAPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, NewCryptoError(CodeKeyExportFailed, err)
	}
	return der, nil
}

// PublicKeyPEM formats SubjectPublicKeyInfo DER as a "PUBLIC KEY" document.
func PublicKeyPEM(der []byte) string {
	return pem.Format(LabelPublicKey, der)
}

// PrivateKeyPEM formats PKCS#1 DER as an "RSA PRIVATE KEY" document.
func PrivateKeyPEM(der []byte) string {
	return pem.Format(LabelRSAPrivateKey, der)
}
