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
	"errors"
	"fmt"
	"strings"
)

// ErrIncorrectParameterSize is returned when a key is smaller than 1024 bits
// or its size is not a multiple of 8.
var ErrIncorrectParameterSize = errors.New("backend: incorrect parameter size")

// Codes raised by this module are negative. Positive codes are reported
// verbatim by an engine, e.g. a PKCS#11 CKR_* return value.
const (
	CodeInvalidPEMDocument int32 = -(iota + 1)
	CodeInvalidKeyEncoding
	CodeNotRSAKey
	CodeKeyGenerationFailed
	CodeMessageTooLong
	CodeEncryptionFailed
	CodeDecryptionFailed
	CodeUnsupportedPadding
	CodeKeyClosed
	CodeEngineUnavailable
	CodeInvalidPassword
	CodeKeyExportFailed
)

var codeNames = map[int32]string{
	CodeInvalidPEMDocument:  "invalid PEM document",
	CodeInvalidKeyEncoding:  "invalid key encoding",
	CodeNotRSAKey:           "not an RSA key",
	CodeKeyGenerationFailed: "key generation failed",
	CodeMessageTooLong:      "message too long",
	CodeEncryptionFailed:    "encryption failed",
	CodeDecryptionFailed:    "decryption failed",
	CodeUnsupportedPadding:  "unsupported padding",
	CodeKeyClosed:           "key closed",
	CodeEngineUnavailable:   "engine unavailable",
	CodeInvalidPassword:     "invalid password",
	CodeKeyExportFailed:     "key export failed",
}

// UnderlyingCryptoError reports a failure of the cryptographic engine or of
// the key material handed to it. Errors match each other under errors.Is
// when their codes are equal.
type UnderlyingCryptoError struct {
	Code int32
	Err  error
}

// NewCryptoError returns an UnderlyingCryptoError carrying code and cause.
func NewCryptoError(code int32, err error) *UnderlyingCryptoError {
	return &UnderlyingCryptoError{Code: code, Err: err}
}

func (e *UnderlyingCryptoError) Error() string {
	msg := fmt.Sprintf("backend: underlying crypto error %d", e.Code)
	if name, ok := codeNames[e.Code]; ok {
		msg += " (" + name + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnderlyingCryptoError) Unwrap() error {
	return e.Err
}

func (e *UnderlyingCryptoError) Is(target error) bool {
	t, ok := target.(*UnderlyingCryptoError)
	return ok && t.Code == e.Code
}

// CryptoErrorCode extracts the code of the first UnderlyingCryptoError in
// err's chain.
func CryptoErrorCode(err error) (int32, bool) {
	var cryptoErr *UnderlyingCryptoError
	if errors.As(err, &cryptoErr) {
		return cryptoErr.Code, true
	}
	return 0, false
}

// CodeName returns a snake_case name for code, suitable as a metric label.
// Engine codes all map to "engine_error".
func CodeName(code int32) string {
	name, ok := codeNames[code]
	if !ok {
		return "engine_error"
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// Targets for errors.Is. They carry no cause.
var (
	ErrInvalidPEM         = &UnderlyingCryptoError{Code: CodeInvalidPEMDocument}
	ErrInvalidKeyEncoding = &UnderlyingCryptoError{Code: CodeInvalidKeyEncoding}
	ErrNotRSAKey          = &UnderlyingCryptoError{Code: CodeNotRSAKey}
	ErrKeyGeneration      = &UnderlyingCryptoError{Code: CodeKeyGenerationFailed}
	ErrMessageTooLong     = &UnderlyingCryptoError{Code: CodeMessageTooLong}
	ErrEncryption         = &UnderlyingCryptoError{Code: CodeEncryptionFailed}
	ErrUnsupportedPadding = &UnderlyingCryptoError{Code: CodeUnsupportedPadding}
	ErrKeyClosed          = &UnderlyingCryptoError{Code: CodeKeyClosed}
	ErrEngineUnavailable  = &UnderlyingCryptoError{Code: CodeEngineUnavailable}
	ErrInvalidPassword    = &UnderlyingCryptoError{Code: CodeInvalidPassword}
	ErrKeyExport          = &UnderlyingCryptoError{Code: CodeKeyExportFailed}

	// ErrDecryption is the only error engines return from Decrypt, so the
	// reason a ciphertext was rejected is not observable.
	ErrDecryption = &UnderlyingCryptoError{Code: CodeDecryptionFailed}
)
