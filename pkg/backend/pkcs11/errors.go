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

package pkcs11

import "errors"

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("pkcs11: invalid configuration")

	// ErrLibraryNotFound is returned when the PKCS#11 library cannot be found.
	ErrLibraryNotFound = errors.New("pkcs11: library not found")

	// ErrTokenNotFound is returned when the specified token cannot be found.
	ErrTokenNotFound = errors.New("pkcs11: token not found")

	// ErrInvalidPINLength is returned when the user PIN is too short.
	// PKCS#11 typically requires PINs to be at least 4 characters.
	ErrInvalidPINLength = errors.New("pkcs11: invalid pin length, must be at least 4 characters")

	// ErrUnsupportedKey is returned when an imported key cannot be expressed
	// as a two-prime PKCS#11 RSA object.
	ErrUnsupportedKey = errors.New("pkcs11: unsupported RSA key")
)
