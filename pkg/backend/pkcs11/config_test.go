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

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLibrary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libtest.so")
	if err := os.WriteFile(path, []byte{}, 0600); err != nil {
		t.Fatalf("failed to create library stub: %v", err)
	}
	return path
}

func TestConfigValidate(t *testing.T) {
	lib := testLibrary(t)
	slot := 0
	negative := -1

	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{"nil", nil, ErrInvalidConfig},
		{"missing library", &Config{TokenLabel: "t"}, ErrInvalidConfig},
		{"library not found", &Config{Library: "/nonexistent/libpkcs11.so", TokenLabel: "t"}, ErrLibraryNotFound},
		{"no token selector", &Config{Library: lib}, ErrInvalidConfig},
		{"negative slot", &Config{Library: lib, Slot: &negative}, ErrInvalidConfig},
		{"short pin", &Config{Library: lib, TokenLabel: "t", PIN: "123"}, ErrInvalidPINLength},
		{"label", &Config{Library: lib, TokenLabel: "t", PIN: "1234"}, nil},
		{"slot", &Config{Library: lib, Slot: &slot}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				if tt.config.Logger == nil {
					t.Error("Validate() did not set a default logger")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigStringMasksPIN(t *testing.T) {
	slot := 2
	c := &Config{Library: "/usr/lib/libsofthsm2.so", TokenLabel: "rsacrypt", Slot: &slot, PIN: "secret-pin"}

	s := c.String()
	if strings.Contains(s, "secret-pin") {
		t.Errorf("String() leaked the PIN: %s", s)
	}
	if !strings.Contains(s, "Slot: 2") {
		t.Errorf("String() = %s, missing slot", s)
	}

	c.PIN = ""
	if !strings.Contains(c.String(), "PIN: <not set>") {
		t.Errorf("String() = %s, want unset PIN marker", c.String())
	}
}
