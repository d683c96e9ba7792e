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

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/backend/mocks"
	"github.com/jeremyhahn/go-rsacrypt/pkg/config"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
	"github.com/jeremyhahn/go-rsacrypt/pkg/metrics"
)

// useEngine installs e as the process engine for the duration of t.
func useEngine(t *testing.T, e backend.Engine) {
	t.Helper()
	engineMu.Lock()
	prev := engine
	engine = e
	engineMu.Unlock()

	t.Cleanup(func() {
		engineMu.Lock()
		engine = prev
		engineMu.Unlock()
	})
}

func TestPublicKeySizeViolationClosesEngineKey(t *testing.T) {
	for _, bits := range []int{512, 1016, 1028} {
		m := mocks.NewMockEngine()
		backing := &mocks.MockPublicKey{Bits: bits}
		m.PublicKeyFromDERFunc = func([]byte) (backend.PublicKey, error) { return backing, nil }
		useEngine(t, m)

		key, err := NewPublicKeyFromDER([]byte{0x30})
		assert.Nil(t, key)
		assert.ErrorIs(t, err, ErrIncorrectParameterSize, "bits=%d", bits)
		assert.Equal(t, 1, backing.CloseCalls(), "bits=%d", bits)
	}
}

func TestPrivateKeySizeViolationClosesEngineKey(t *testing.T) {
	m := mocks.NewMockEngine()
	backing := &mocks.MockPrivateKey{Bits: 768}
	m.PrivateKeyFromPEMFunc = func(string) (backend.PrivateKey, error) { return backing, nil }
	useEngine(t, m)

	key, err := NewPrivateKeyFromPEM("ignored")
	assert.Nil(t, key)
	assert.ErrorIs(t, err, ErrIncorrectParameterSize)
	assert.Equal(t, 1, backing.CloseCalls())

	// Size errors are never reported as crypto errors.
	var cryptoErr *UnderlyingCryptoError
	assert.False(t, errors.As(err, &cryptoErr))
}

func TestSizeViolationLogsCloseFailure(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Output: &buf})
	require.NoError(t, err)
	prev := logging.DefaultLogger()
	logging.SetDefault(logger)
	t.Cleanup(func() { logging.SetDefault(prev) })

	closeErr := backend.NewCryptoError(0x82, errors.New("object handle invalid"))
	m := mocks.NewMockEngine()
	backing := &mocks.MockPrivateKey{Bits: 768}
	backing.CloseErr = closeErr
	m.PrivateKeyFromDERFunc = func([]byte) (backend.PrivateKey, error) { return backing, nil }
	useEngine(t, m)

	key, err := NewPrivateKeyFromDER([]byte{0x30})
	assert.Nil(t, key)
	assert.ErrorIs(t, err, ErrIncorrectParameterSize)
	assert.NotErrorIs(t, err, closeErr)
	assert.Equal(t, 1, backing.CloseCalls())
	assert.Contains(t, buf.String(), "object handle invalid")
}

func TestGenerateBelowMinimumSkipsEngine(t *testing.T) {
	m := mocks.NewMockEngine()
	useEngine(t, m)

	_, err := GeneratePrivateKey(NewKeySize(512))
	assert.ErrorIs(t, err, ErrIncorrectParameterSize)
	_, err = GeneratePrivateKey(KeySize{})
	assert.ErrorIs(t, err, ErrIncorrectParameterSize)
	assert.Empty(t, m.Generated())
}

func TestGenerateRechecksSize(t *testing.T) {
	m := mocks.NewMockEngine()
	backing := &mocks.MockPrivateKey{Bits: 1000}
	m.GenerateFunc = func(int) (backend.PrivateKey, error) { return backing, nil }
	useEngine(t, m)

	_, err := GeneratePrivateKey(NewKeySize(1024))
	assert.ErrorIs(t, err, ErrIncorrectParameterSize)
	assert.Equal(t, []int{1024}, m.Generated())
	assert.Equal(t, 1, backing.CloseCalls())
}

func TestEngineCodesPassThrough(t *testing.T) {
	m := mocks.NewMockEngine()
	engineErr := backend.NewCryptoError(0x00000130, errors.New("CKR_DOMAIN_PARAMS_INVALID"))
	m.PublicKeyFromPEMFunc = func(string) (backend.PublicKey, error) { return nil, engineErr }
	useEngine(t, m)

	_, err := NewPublicKeyFromPEM("ignored")
	code, ok := backend.CryptoErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, int32(0x130), code)
}

func TestCloseReleasesEngineKeyOnce(t *testing.T) {
	m := mocks.NewMockEngine()
	backing := &mocks.MockPrivateKey{Bits: 2048}
	m.PrivateKeyFromDERFunc = func([]byte) (backend.PrivateKey, error) { return backing, nil }
	useEngine(t, m)

	key, err := NewPrivateKeyFromDER(nil)
	require.NoError(t, err)

	require.NoError(t, key.Close())
	require.NoError(t, key.Close())
	assert.Equal(t, 1, backing.CloseCalls())
}

func TestClosedKeyDoesNotReachEngine(t *testing.T) {
	m := mocks.NewMockEngine()
	decrypts := 0
	backing := &mocks.MockPrivateKey{
		Bits: 2048,
		DecryptFunc: func([]byte, backend.Padding) ([]byte, error) {
			decrypts++
			return []byte("plain"), nil
		},
	}
	m.PrivateKeyFromDERFunc = func([]byte) (backend.PrivateKey, error) { return backing, nil }
	useEngine(t, m)

	key, err := NewPrivateKeyFromDER(nil)
	require.NoError(t, err)
	_, err = key.Decrypt(make([]byte, 256), PKCS1OAEP)
	require.NoError(t, err)
	require.NoError(t, key.Close())

	_, err = key.Decrypt(make([]byte, 256), PKCS1OAEP)
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	_, err = key.PublicKey()
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	_, err = key.Clone()
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	assert.Equal(t, 1, decrypts)
	assert.Equal(t, 2048, key.KeySizeInBits())
}

func TestDerivedPublicKeyIsOwnedSeparately(t *testing.T) {
	m := mocks.NewMockEngine()
	public := &mocks.MockPublicKey{Bits: 2048}
	backing := &mocks.MockPrivateKey{Bits: 2048, Public: public}
	m.PrivateKeyFromDERFunc = func([]byte) (backend.PrivateKey, error) { return backing, nil }
	useEngine(t, m)

	key, err := NewPrivateKeyFromDER(nil)
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	require.NoError(t, key.Close())
	assert.Equal(t, 0, public.CloseCalls())
	require.NoError(t, pub.Close())
	assert.Equal(t, 1, public.CloseCalls())
}

func TestMaximumEncryptSize(t *testing.T) {
	m := mocks.NewMockEngine()
	m.PublicKeyFromDERFunc = func([]byte) (backend.PublicKey, error) {
		return &mocks.MockPublicKey{Bits: 2048}, nil
	}
	useEngine(t, m)

	key, err := NewPublicKeyFromDER(nil)
	require.NoError(t, err)
	defer key.Close()

	assert.Equal(t, 214, key.MaximumEncryptSize(PKCS1OAEP))
	assert.Equal(t, 245, key.MaximumEncryptSize(InsecurePKCS1v15))
}

func TestEngineNameAndPadding(t *testing.T) {
	m := mocks.NewMockEngine()
	m.SupportsPaddingFunc = func(p backend.Padding) bool { return p == PKCS1OAEP }
	useEngine(t, m)

	assert.Equal(t, "mock", EngineName())
	assert.True(t, SupportsPadding(PKCS1OAEP))
	assert.False(t, SupportsPadding(InsecurePKCS1v15))
}

func TestConfigureAfterEngineCreated(t *testing.T) {
	useEngine(t, mocks.NewMockEngine())
	assert.ErrorIs(t, Configure(config.Default()), ErrAlreadyConfigured)
	assert.ErrorIs(t, Configure(nil), config.ErrInvalidConfig)
}

func TestShutdownClosesEngine(t *testing.T) {
	m := mocks.NewMockEngine()
	useEngine(t, m)

	require.NoError(t, Shutdown())
	require.NoError(t, Shutdown())
	assert.Equal(t, 1, m.CloseCalls)
}

func TestOperationMetrics(t *testing.T) {
	metrics.Enable()
	m := mocks.NewMockEngine()
	m.PublicKeyFromPEMFunc = func(string) (backend.PublicKey, error) { return nil, backend.ErrInvalidPEM }
	m.PublicKeyFromDERFunc = func([]byte) (backend.PublicKey, error) {
		return &mocks.MockPublicKey{Bits: 2048}, nil
	}
	useEngine(t, m)

	failures := metrics.OperationsTotal.WithLabelValues(metrics.OpImport, "mock", metrics.StatusError)
	successes := metrics.OperationsTotal.WithLabelValues(metrics.OpImport, "mock", metrics.StatusSuccess)
	pemErrors := metrics.ErrorsTotal.WithLabelValues(metrics.OpImport, "mock", "invalid_pem_document")
	beforeFail := testutil.ToFloat64(failures)
	beforeOK := testutil.ToFloat64(successes)
	beforePEM := testutil.ToFloat64(pemErrors)

	_, err := NewPublicKeyFromPEM("bad")
	require.Error(t, err)
	key, err := NewPublicKeyFromDER(nil)
	require.NoError(t, err)
	defer key.Close()

	assert.Equal(t, beforeFail+1, testutil.ToFloat64(failures))
	assert.Equal(t, beforeOK+1, testutil.ToFloat64(successes))
	assert.Equal(t, beforePEM+1, testutil.ToFloat64(pemErrors))
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "incorrect_parameter_size", errorType(ErrIncorrectParameterSize))
	assert.Equal(t, "message_too_long", errorType(backend.ErrMessageTooLong))
	assert.Equal(t, "engine_error", errorType(backend.NewCryptoError(5, nil)))
	assert.Equal(t, "unknown", errorType(errors.New("boom")))
}
