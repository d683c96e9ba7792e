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

//go:build pkcs11

package pkcs11

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/miekg/pkcs11"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
)

// EngineName identifies this engine in logs and metrics.
const EngineName = "pkcs11"

// Engine is the PKCS#11 implementation of backend.Engine. It owns one
// read-write session on the configured token.
type Engine struct {
	config     *Config
	ctx        *pkcs11.Ctx
	slot       uint
	session    pkcs11.SessionHandle
	loggedIn   bool
	mechanisms map[uint]bool
	mu         sync.Mutex
	closed     bool
}

var _ backend.Engine = (*Engine)(nil)

// NewEngine loads the PKCS#11 module, opens a session on the configured
// token and logs in when a PIN is set.
func NewEngine(config *Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := pkcs11.New(config.Library)
	if p == nil {
		return nil, fmt.Errorf("%w: failed to load %s", ErrLibraryNotFound, config.Library)
	}
	if err := p.Initialize(); err != nil {
		if err != pkcs11.Error(pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
			p.Destroy()
			return nil, fmt.Errorf("failed to initialize PKCS#11: %w", err)
		}
	}

	e := &Engine{config: config, ctx: p}
	if err := e.open(); err != nil {
		p.Destroy()
		return nil, err
	}

	config.Logger.Debugf("pkcs11: opened session on slot %d", e.slot)
	return e, nil
}

func (e *Engine) open() error {
	slot, err := findSlot(e.ctx, e.config)
	if err != nil {
		return err
	}
	e.slot = slot

	mechs, err := e.ctx.GetMechanismList(slot)
	if err != nil {
		return fmt.Errorf("failed to get mechanism list: %w", err)
	}
	e.mechanisms = make(map[uint]bool, len(mechs))
	for _, m := range mechs {
		e.mechanisms[m.Mechanism] = true
	}

	session, err := e.ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	e.session = session

	if e.config.PIN != "" {
		if err := e.ctx.Login(session, pkcs11.CKU_USER, e.config.PIN); err != nil {
			if err != pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
				e.ctx.CloseSession(session)
				return fmt.Errorf("failed to login: %w", err)
			}
		} else {
			e.loggedIn = true
		}
	}
	return nil
}

// findSlot returns the configured slot, or the first slot whose token
// carries the configured label.
func findSlot(p *pkcs11.Ctx, config *Config) (uint, error) {
	slots, err := p.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("failed to get slot list: %w", err)
	}

	if config.Slot != nil {
		want := uint(*config.Slot)
		for _, slot := range slots {
			if slot == want {
				return slot, nil
			}
		}
		return 0, fmt.Errorf("%w: slot %d", ErrTokenNotFound, want)
	}

	for _, slot := range slots {
		info, err := p.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if strings.TrimSpace(info.Label) == config.TokenLabel {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrTokenNotFound, config.TokenLabel)
}

func (e *Engine) Name() string {
	return EngineName
}

// SupportsPadding reports whether the token advertises the mechanism for
// padding.
func (e *Engine) SupportsPadding(padding backend.Padding) bool {
	mech, ok := mechanismType(padding)
	if !ok {
		return false
	}
	return e.mechanisms[mech]
}

func (e *Engine) PublicKeyFromPEM(text string) (backend.PublicKey, error) {
	der, err := backend.PublicKeyDERFromPEM(text)
	if err != nil {
		return nil, err
	}
	return e.PublicKeyFromDER(der)
}

func (e *Engine) PublicKeyFromDER(der []byte) (backend.PublicKey, error) {
	pub, err := backend.ParseRSAPublicKey(der)
	if err != nil {
		return nil, err
	}
	return e.importPublicKey(pub)
}

func (e *Engine) PrivateKeyFromPEM(text string) (backend.PrivateKey, error) {
	der, err := backend.PrivateKeyDERFromPEM(text)
	if err != nil {
		return nil, err
	}
	return e.privateKeyFromPKCS1(der)
}

func (e *Engine) PrivateKeyFromDER(der []byte) (backend.PrivateKey, error) {
	return e.privateKeyFromPKCS1(backend.PKCS1FromDER(der))
}

func (e *Engine) privateKeyFromPKCS1(der []byte) (backend.PrivateKey, error) {
	key, err := backend.ParseRSAPrivateKey(der)
	if err != nil {
		return nil, err
	}
	return e.importPrivateKey(key)
}

// GeneratePrivateKey generates a key pair on the token with public
// exponent 65537. The public half is destroyed immediately; PublicKey
// recreates it from the private object's attributes.
func (e *Engine) GeneratePrivateKey(bits int) (backend.PrivateKey, error) {
	publicKeyTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, bits),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, []byte{0x01, 0x00, 0x01}), // 65537
	}
	privateKeyTemplate := privateObjectTemplate()

	mechanism := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)}

	var handle pkcs11.ObjectHandle
	err := e.withSession(func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error {
		pubHandle, privHandle, err := ctx.GenerateKeyPair(session, mechanism, publicKeyTemplate, privateKeyTemplate)
		if err != nil {
			return cryptoError(backend.CodeKeyGenerationFailed, err)
		}
		if err := ctx.DestroyObject(session, pubHandle); err != nil {
			e.config.Logger.Warnf("pkcs11: failed to destroy generated public key: %v", err)
		}
		handle = privHandle
		return nil
	})
	if err != nil {
		return nil, err
	}

	key, err := e.newPrivateKey(handle)
	if err != nil {
		return nil, err
	}
	e.config.Logger.Debugf("pkcs11: generated %d-bit RSA key", bits)
	return key, nil
}

// Close logs out and closes the session, which destroys every session
// object this engine created. The module is left initialized because the
// PKCS#11 entropy source may share it.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.loggedIn {
		if err := e.ctx.Logout(e.session); err != nil {
			errs = append(errs, fmt.Errorf("logout: %w", err))
		}
	}
	if err := e.ctx.CloseSession(e.session); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	e.ctx.Destroy()

	return errors.Join(errs...)
}

// withSession runs fn with exclusive use of the engine session.
func (e *Engine) withSession(fn func(ctx *pkcs11.Ctx, session pkcs11.SessionHandle) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return backend.NewCryptoError(backend.CodeEngineUnavailable, errors.New("pkcs11: engine closed"))
	}
	return fn(e.ctx, e.session)
}

// cryptoError surfaces the token's CKR code when err carries one and
// falls back to code otherwise.
func cryptoError(code int32, err error) error {
	var ckr pkcs11.Error
	if errors.As(err, &ckr) {
		return backend.NewCryptoError(int32(ckr), err)
	}
	return backend.NewCryptoError(code, err)
}

func mechanismType(padding backend.Padding) (uint, bool) {
	switch padding {
	case backend.PKCS1OAEP:
		return pkcs11.CKM_RSA_PKCS_OAEP, true
	case backend.InsecurePKCS1v15:
		return pkcs11.CKM_RSA_PKCS, true
	}
	return 0, false
}

func mechanism(padding backend.Padding) []*pkcs11.Mechanism {
	if padding == backend.PKCS1OAEP {
		params := pkcs11.NewOAEPParams(pkcs11.CKM_SHA_1, pkcs11.CKG_MGF1_SHA1, pkcs11.CKZ_DATA_SPECIFIED, nil)
		return []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_OAEP, params)}
	}
	return []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}
}
