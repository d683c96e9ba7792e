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

package rand

import (
	"bytes"
	"crypto/rsa"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"Software", ModeSoftware, false},
		{"tpm2", ModeTPM2, false},
		{" pkcs11 ", ModePKCS11, false},
		{"dice", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeConfig(t *testing.T) {
	assert.Equal(t, ModeAuto, normalizeConfig(nil).Mode)
	assert.Equal(t, ModeSoftware, normalizeConfig(ModeSoftware).Mode)
	assert.Equal(t, ModeAuto, normalizeConfig((*Config)(nil)).Mode)
	assert.Equal(t, ModeAuto, normalizeConfig("software").Mode)

	cfg := &Config{}
	assert.Equal(t, ModeAuto, normalizeConfig(cfg).Mode)
	assert.Equal(t, Mode(""), cfg.Mode, "caller config must not be modified")
}

func TestSoftwareResolver(t *testing.T) {
	rng, err := NewResolver(ModeSoftware)
	require.NoError(t, err)
	defer rng.Close()

	assert.True(t, rng.Available())
	assert.True(t, rng.Source().Available())

	a, err := rng.Rand(32)
	require.NoError(t, err)
	b, err := rng.Rand(32)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.False(t, bytes.Equal(a, b))

	buf := make([]byte, 64)
	n, err := io.ReadFull(rng, buf)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.NotEqual(t, make([]byte, 64), buf)
}

func TestResolverDrivesKeyGeneration(t *testing.T) {
	rng, err := NewResolver(nil)
	require.NoError(t, err)
	defer rng.Close()

	key, err := rsa.GenerateKey(rng, 2048)
	require.NoError(t, err)
	assert.Equal(t, 256, key.Size())
}

func TestUnknownMode(t *testing.T) {
	_, err := NewResolver(Mode("quantum"))
	assert.Error(t, err)
}

func TestFallbackWhenHardwareMissing(t *testing.T) {
	if tpm2Available() {
		t.Skip("TPM2 support compiled in")
	}

	_, err := NewResolver(ModeTPM2)
	assert.Error(t, err)

	rng, err := NewResolver(&Config{Mode: ModeTPM2, FallbackMode: ModeSoftware})
	require.NoError(t, err)
	defer rng.Close()

	data, err := rng.Rand(16)
	require.NoError(t, err)
	assert.Len(t, data, 16)
	assert.IsType(t, &SoftwareResolver{}, rng)
}

func TestPKCS11RequiresConfig(t *testing.T) {
	_, err := NewResolver(ModePKCS11)
	assert.Error(t, err)
}
