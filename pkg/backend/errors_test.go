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
	"testing"

	"github.com/jeremyhahn/go-rsacrypt/pkg/pem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorVariables ensures error variables carry meaningful messages.
func TestErrorVariables(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "ErrIncorrectParameterSize",
			err:     ErrIncorrectParameterSize,
			wantMsg: "backend: incorrect parameter size",
		},
		{
			name:    "ErrDecryption",
			err:     ErrDecryption,
			wantMsg: "backend: underlying crypto error -7 (decryption failed)",
		},
		{
			name:    "ErrInvalidPEM",
			err:     ErrInvalidPEM,
			wantMsg: "backend: underlying crypto error -1 (invalid PEM document)",
		},
		{
			name:    "engine code",
			err:     NewCryptoError(0x30, nil),
			wantMsg: "backend: underlying crypto error 48",
		},
		{
			name:    "with cause",
			err:     NewCryptoError(CodeKeyClosed, errors.New("released")),
			wantMsg: "backend: underlying crypto error -9 (key closed): released",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.wantMsg)
		})
	}
}

func TestCodesAreNegativeAndDistinct(t *testing.T) {
	seen := make(map[int32]bool)
	for code := range codeNames {
		assert.Less(t, code, int32(0))
		assert.False(t, seen[code])
		seen[code] = true
	}
	assert.Len(t, seen, 12)
}

func TestUnderlyingCryptoErrorIs(t *testing.T) {
	err := fmt.Errorf("import: %w", NewCryptoError(CodeInvalidPEMDocument, pem.ErrInvalidPEMDocument))

	assert.ErrorIs(t, err, ErrInvalidPEM)
	assert.ErrorIs(t, err, pem.ErrInvalidPEMDocument)
	assert.NotErrorIs(t, err, ErrDecryption)
	assert.NotErrorIs(t, err, ErrIncorrectParameterSize)

	code, ok := CryptoErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidPEMDocument, code)
}

func TestCryptoErrorCodeMissing(t *testing.T) {
	_, ok := CryptoErrorCode(ErrIncorrectParameterSize)
	assert.False(t, ok)

	_, ok = CryptoErrorCode(nil)
	assert.False(t, ok)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("device error")
	err := NewCryptoError(5, cause)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Nil(t, ErrDecryption.Unwrap())
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "decryption_failed", CodeName(CodeDecryptionFailed))
	assert.Equal(t, "not_an_rsa_key", CodeName(CodeNotRSAKey))
	assert.Equal(t, "engine_error", CodeName(0x00000005))
}
