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
	"bytes"
	"encoding/binary"
)

const (
	tagSequence    = 0x30
	tagOctetString = 0x04
	longForm2      = 0x82

	// headerLen is the size of a tag, a 0x82 length-of-length byte and a
	// two-byte length.
	headerLen = 4

	// PrefixLen is the number of bytes preceding the embedded PKCS#1 key.
	PrefixLen = headerLen + len(rsaPrefix) + headerLen
)

// rsaPrefix is INTEGER 0 followed by the AlgorithmIdentifier SEQUENCE for
// rsaEncryption (1.2.840.113549.1.1.1) with NULL parameters.
var rsaPrefix = [...]byte{
	0x02, 0x01, 0x00,
	0x30, 0x0d,
	0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01,
	0x05, 0x00,
}

// Unwrap returns the PKCS#1 key embedded in an RSA PrivateKeyInfo. The
// second return value is false when der does not have exactly the expected
// layout with consistent lengths; Unwrap never fails otherwise.
func Unwrap(der []byte) ([]byte, bool) {
	if len(der) < PrefixLen {
		return nil, false
	}
	if der[0] != tagSequence || der[1] != longForm2 {
		return nil, false
	}
	if int(binary.BigEndian.Uint16(der[2:4])) != len(der)-headerLen {
		return nil, false
	}
	if !bytes.Equal(der[headerLen:headerLen+len(rsaPrefix)], rsaPrefix[:]) {
		return nil, false
	}

	octet := der[headerLen+len(rsaPrefix):]
	if octet[0] != tagOctetString || octet[1] != longForm2 {
		return nil, false
	}
	if int(binary.BigEndian.Uint16(octet[2:4])) != len(der)-PrefixLen {
		return nil, false
	}

	return bytes.Clone(der[PrefixLen:]), true
}
