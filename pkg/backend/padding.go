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
	"crypto/sha1"
	"fmt"
	"strings"
)

const (
	// OAEPOverhead is the number of bytes OAEP with SHA-1 reserves in each
	// block: two digests plus two bytes.
	OAEPOverhead = 2*sha1.Size + 2

	// PKCS1v15Overhead is the minimum padding length of PKCS#1 v1.5
	// encryption.
	PKCS1v15Overhead = 11
)

type paddingKind uint8

const (
	paddingOAEP paddingKind = iota + 1
	paddingPKCS1v15
)

// Padding selects an encryption padding scheme. Values are only meant to be
// compared with PKCS1OAEP and InsecurePKCS1v15.
type Padding struct {
	kind paddingKind
}

var (
	// PKCS1OAEP is RSAES-OAEP with SHA-1 and MGF1-SHA-1 (RFC 8017 section 7.1).
	PKCS1OAEP = Padding{kind: paddingOAEP}

	// InsecurePKCS1v15 is RSAES-PKCS1-v1_5. It is vulnerable to padding
	// oracle attacks and exists only for interoperability.
	InsecurePKCS1v15 = Padding{kind: paddingPKCS1v15}
)

// String returns the short name used in configuration and the CLI.
func (p Padding) String() string {
	switch p.kind {
	case paddingOAEP:
		return "oaep"
	case paddingPKCS1v15:
		return "pkcs1v15"
	default:
		return "unknown"
	}
}

// overhead returns the bytes a padding reserves, or false for the zero value.
func (p Padding) overhead() (int, bool) {
	switch p.kind {
	case paddingOAEP:
		return OAEPOverhead, true
	case paddingPKCS1v15:
		return PKCS1v15Overhead, true
	default:
		return 0, false
	}
}

// ParsePadding maps a name returned by Padding.String back to its value.
func ParsePadding(name string) (Padding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "oaep", "pkcs1-oaep", "pkcs1_oaep":
		return PKCS1OAEP, nil
	case "pkcs1v15", "pkcs1-v1_5", "pkcs1v1_5":
		return InsecurePKCS1v15, nil
	default:
		return Padding{}, fmt.Errorf("%w: unknown padding %q", ErrUnsupportedPadding, name)
	}
}

// MaxPlaintextSize returns the largest message that can be encrypted with
// a key of the given size under padding. It is zero when nothing fits or
// the padding is unknown.
func MaxPlaintextSize(keySizeInBits int, padding Padding) int {
	overhead, ok := padding.overhead()
	if !ok {
		return 0
	}
	return max(keySizeInBits/8-overhead, 0)
}
