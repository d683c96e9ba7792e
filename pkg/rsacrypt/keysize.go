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

import "fmt"

// MinimumKeySize is the smallest key size in bits any constructor accepts.
const MinimumKeySize = 1024

// KeySize is an RSA modulus size in bits.
type KeySize struct {
	bitCount int
}

var (
	KeySize2048 = KeySize{bitCount: 2048}
	KeySize3072 = KeySize{bitCount: 3072}
	KeySize4096 = KeySize{bitCount: 4096}
)

// NewKeySize returns a KeySize of bits. It panics unless bits is positive
// and a multiple of 8; sizes below MinimumKeySize are representable but
// rejected by GeneratePrivateKey.
func NewKeySize(bits int) KeySize {
	if bits <= 0 || bits%8 != 0 {
		panic(fmt.Sprintf("rsacrypt: invalid key size %d", bits))
	}
	return KeySize{bitCount: bits}
}

// BitCount returns the size in bits.
func (s KeySize) BitCount() int {
	return s.bitCount
}

func (s KeySize) String() string {
	return fmt.Sprintf("%d", s.bitCount)
}

// checkKeySize enforces the invariant shared by every construction path.
func checkKeySize(bits int) error {
	if bits < MinimumKeySize || bits%8 != 0 {
		return ErrIncorrectParameterSize
	}
	return nil
}
