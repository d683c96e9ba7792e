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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxPlaintextSize(t *testing.T) {
	tests := []struct {
		bits    int
		padding Padding
		want    int
	}{
		{1024, PKCS1OAEP, 86},
		{2048, PKCS1OAEP, 214},
		{3072, PKCS1OAEP, 342},
		{4096, PKCS1OAEP, 470},
		{1024, InsecurePKCS1v15, 117},
		{2048, InsecurePKCS1v15, 245},
		{4096, InsecurePKCS1v15, 501},
		{256, PKCS1OAEP, 0},
		{2048, Padding{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.padding.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, MaxPlaintextSize(tt.bits, tt.padding), "bits=%d", tt.bits)
		})
	}
}

func TestPaddingIdentity(t *testing.T) {
	assert.Equal(t, PKCS1OAEP, PKCS1OAEP)
	assert.NotEqual(t, PKCS1OAEP, InsecurePKCS1v15)
	assert.NotEqual(t, Padding{}, PKCS1OAEP)
	assert.Equal(t, "unknown", Padding{}.String())
}

func TestParsePadding(t *testing.T) {
	for _, p := range []Padding{PKCS1OAEP, InsecurePKCS1v15} {
		got, err := ParsePadding(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParsePadding(" OAEP ")
	require.NoError(t, err)
	assert.Equal(t, PKCS1OAEP, got)

	_, err = ParsePadding("pss")
	assert.ErrorIs(t, err, ErrUnsupportedPadding)
}
