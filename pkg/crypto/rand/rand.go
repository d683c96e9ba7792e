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

// Package rand resolves the entropy source used for RSA key generation and
// encryption padding.
//
// Sources:
//   - Software: crypto/rand
//   - PKCS11: the random number generator of a PKCS#11 token (build tag pkcs11)
//   - TPM2: TPM2_GetRandom on a TPM 2.0 device or simulator (build tag tpm2)
//   - Auto: the first available of PKCS#11, TPM2 and software
//
// Every Resolver implements io.Reader and can be passed wherever
// crypto/rand.Reader is expected:
//
//	rng, err := rand.NewResolver(&rand.Config{
//	    Mode:         rand.ModeTPM2,
//	    FallbackMode: rand.ModeSoftware,
//	})
//	if err != nil {
//	    return err
//	}
//	defer rng.Close()
//	key, err := rsa.GenerateKey(rng, 2048)
//
// All Resolver implementations are safe for concurrent use.
package rand

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Mode specifies which RNG source to use.
type Mode string

const (
	// ModeAuto automatically selects the best available RNG.
	// Preference order: PKCS#11 > TPM2 > Software
	ModeAuto Mode = "auto"

	// ModeSoftware uses crypto/rand
	ModeSoftware Mode = "software"

	// ModeTPM2 uses Trusted Platform Module 2.0 hardware RNG
	ModeTPM2 Mode = "tpm2"

	// ModePKCS11 uses PKCS#11 hardware security module RNG
	ModePKCS11 Mode = "pkcs11"
)

// ParseMode validates a mode name. An empty name selects ModeAuto.
func ParseMode(name string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(name))); mode {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeSoftware, ModeTPM2, ModePKCS11:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown RNG mode: %s", name)
	}
}

// Config contains RNG configuration.
type Config struct {
	// Mode specifies the primary RNG source to use.
	// Defaults to ModeAuto if not specified.
	Mode Mode

	// FallbackMode specifies the RNG source to use if the primary source
	// cannot be opened or fails to produce bytes.
	// Typical usage: Mode=ModeTPM2, FallbackMode=ModeSoftware
	FallbackMode Mode

	// TPM2Config contains TPM2-specific configuration (if Mode=ModeTPM2).
	// If nil, defaults are used.
	TPM2Config *TPM2Config

	// PKCS11Config contains PKCS#11-specific configuration (if Mode=ModePKCS11).
	PKCS11Config *PKCS11Config
}

// TPM2Config contains configuration for TPM2 RNG.
type TPM2Config struct {
	// Device path to the TPM device (default: "/dev/tpmrm0")
	Device string

	// MaxRequestSize limits the bytes requested per TPM2_GetRandom call.
	// Default: 32
	MaxRequestSize int

	// UseSimulator connects to a TCP TPM simulator instead of a device.
	UseSimulator bool

	// SimulatorHost defaults to "localhost"
	SimulatorHost string

	// SimulatorPort defaults to 2321 (the swtpm command port)
	SimulatorPort int
}

// PKCS11Config contains configuration for PKCS#11 RNG.
type PKCS11Config struct {
	// Module path to the PKCS#11 library (e.g., /usr/lib/softhsm/libsofthsm2.so)
	Module string

	// TokenLabel selects the token by label. Either TokenLabel or Slot is required.
	TokenLabel string

	// Slot selects the token by slot number.
	Slot *int

	// PIN is the user PIN.
	PIN string
}

// Source represents a random number generator.
type Source interface {
	// Rand returns n random bytes.
	Rand(n int) ([]byte, error)

	// Available returns true if this RNG source is available and ready.
	Available() bool

	// Close closes the RNG and releases any resources.
	Close() error
}

// Resolver provides the main interface for generating random numbers.
// Applications should create a Resolver at startup and reuse it.
type Resolver interface {
	// Rand returns n random bytes from the configured RNG source.
	// If the primary source fails and FallbackMode is configured,
	// tries the fallback source.
	Rand(n int) ([]byte, error)

	// Read implements io.Reader so the Resolver can replace crypto/rand.Reader.
	Read(p []byte) (n int, err error)

	// Source returns the underlying RNG Source being used.
	Source() Source

	// Available returns true if at least one RNG source is available.
	Available() bool

	// Close closes the resolver and releases any resources.
	Close() error
}

// NewResolver creates a new RNG resolver. config may be nil, a Mode or a
// *Config; nil selects auto mode.
func NewResolver(config interface{}) (Resolver, error) {
	cfg := normalizeConfig(config)
	return newResolver(cfg)
}

// normalizeConfig converts various config types to *Config.
func normalizeConfig(config interface{}) *Config {
	if config == nil {
		return &Config{Mode: ModeAuto}
	}

	switch v := config.(type) {
	case Mode:
		return &Config{Mode: v}
	case *Config:
		if v == nil {
			return &Config{Mode: ModeAuto}
		}
		cfg := *v
		if cfg.Mode == "" {
			cfg.Mode = ModeAuto
		}
		return &cfg
	default:
		return &Config{Mode: ModeAuto}
	}
}

// newResolver creates the actual resolver implementation.
func newResolver(cfg *Config) (Resolver, error) {
	var (
		resolver Resolver
		err      error
	)

	switch cfg.Mode {
	case ModeAuto, "":
		return newAutoResolver(cfg)
	case ModeSoftware:
		return newSoftwareResolver()
	case ModeTPM2:
		resolver, err = newTPM2Resolver(cfg.TPM2Config)
	case ModePKCS11:
		resolver, err = newPKCS11Resolver(cfg.PKCS11Config)
	default:
		return nil, fmt.Errorf("unknown RNG mode: %s", cfg.Mode)
	}

	if cfg.FallbackMode == "" || cfg.FallbackMode == cfg.Mode {
		return resolver, err
	}

	fallback, fbErr := newResolver(&Config{
		Mode:         cfg.FallbackMode,
		TPM2Config:   cfg.TPM2Config,
		PKCS11Config: cfg.PKCS11Config,
	})
	if err != nil {
		if fbErr != nil {
			return nil, fmt.Errorf("%w (fallback: %v)", err, fbErr)
		}
		return fallback, nil
	}
	if fbErr != nil {
		return resolver, nil
	}
	return &autoResolver{resolver: resolver, fallback: fallback}, nil
}

// readFull fills p from a Rand implementation.
func readFull(rand func(int) ([]byte, error), p []byte) (int, error) {
	data, err := rand(len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}

// SoftwareResolver uses crypto/rand from the Go standard library.
type SoftwareResolver struct{}

var _ Resolver = (*SoftwareResolver)(nil)

func newSoftwareResolver() (Resolver, error) {
	return &SoftwareResolver{}, nil
}

func (s *SoftwareResolver) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

// Read implements io.Reader for compatibility with crypto/rand.Reader.
func (s *SoftwareResolver) Read(p []byte) (n int, err error) {
	return rand.Read(p)
}

func (s *SoftwareResolver) Source() Source {
	return &softwareSource{}
}

func (s *SoftwareResolver) Available() bool {
	return true
}

func (s *SoftwareResolver) Close() error {
	return nil
}

type softwareSource struct{}

func (s *softwareSource) Rand(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	return buf, err
}

func (s *softwareSource) Available() bool {
	return true
}

func (s *softwareSource) Close() error {
	return nil
}
