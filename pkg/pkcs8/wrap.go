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
	encoding_asn1 "encoding/asn1"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

var oidRSAEncryption = encoding_asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

// Wrap places a PKCS#1 RSA private key inside an unencrypted PrivateKeyInfo.
// For keys of 1024 bits and above the result is accepted by Unwrap.
func Wrap(pkcs1 []byte) ([]byte, error) {
	if !isSequence(pkcs1) {
		return nil, ErrInvalidPKCS1
	}

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidRSAEncryption)
			b.AddASN1NULL()
		})
		b.AddASN1OctetString(pkcs1)
	})
	return b.Bytes()
}

// isSequence reports whether der is exactly one DER SEQUENCE element.
func isSequence(der []byte) bool {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, asn1.SEQUENCE) {
		return false
	}
	return input.Empty()
}
