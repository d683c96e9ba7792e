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

package software

import (
	"crypto/x509"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/crypto/rand"
)

var testEngine = sync.OnceValue(func() *Engine {
	e, err := NewEngine(nil)
	if err != nil {
		panic(err)
	}
	return e
})

var generatedKey = sync.OnceValue(func() backend.PrivateKey {
	key, err := testEngine().GeneratePrivateKey(2048)
	if err != nil {
		panic(err)
	}
	return key
})

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../rsacrypt/testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestEngineName(t *testing.T) {
	assert.Equal(t, "software", testEngine().Name())
}

func TestSupportsPadding(t *testing.T) {
	e := testEngine()
	assert.True(t, e.SupportsPadding(backend.PKCS1OAEP))
	assert.True(t, e.SupportsPadding(backend.InsecurePKCS1v15))
	assert.False(t, e.SupportsPadding(backend.Padding{}))
}

func TestGeneratePrivateKey(t *testing.T) {
	key := generatedKey()
	assert.Equal(t, 2048, key.KeySizeInBits())

	der, err := key.DER()
	require.NoError(t, err)
	parsed, err := x509.ParsePKCS1PrivateKey(der)
	require.NoError(t, err)
	assert.Equal(t, 65537, parsed.E)
}

func TestGeneratePrivateKeyFailure(t *testing.T) {
	_, err := testEngine().GeneratePrivateKey(8)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrKeyGeneration)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := generatedKey()
	pub, err := key.PublicKey()
	require.NoError(t, err)
	defer pub.Close()

	for _, padding := range []backend.Padding{backend.PKCS1OAEP, backend.InsecurePKCS1v15} {
		t.Run(padding.String(), func(t *testing.T) {
			max := backend.MaxPlaintextSize(2048, padding)
			for _, n := range []int{0, 1, max} {
				msg := []byte(strings.Repeat("m", n))
				ct, err := pub.Encrypt(msg, padding)
				require.NoError(t, err)
				assert.Len(t, ct, 256)

				pt, err := key.Decrypt(ct, padding)
				require.NoError(t, err)
				assert.Equal(t, msg, append([]byte{}, pt...))
			}
		})
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	pub, err := generatedKey().PublicKey()
	require.NoError(t, err)

	a, err := pub.Encrypt([]byte("same"), backend.PKCS1OAEP)
	require.NoError(t, err)
	b, err := pub.Encrypt([]byte("same"), backend.PKCS1OAEP)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptMessageTooLong(t *testing.T) {
	pub, err := generatedKey().PublicKey()
	require.NoError(t, err)

	_, err = pub.Encrypt(make([]byte, 215), backend.PKCS1OAEP)
	assert.ErrorIs(t, err, backend.ErrMessageTooLong)

	_, err = pub.Encrypt(make([]byte, 246), backend.InsecurePKCS1v15)
	assert.ErrorIs(t, err, backend.ErrMessageTooLong)
}

func TestDecryptRejectsBadCiphertext(t *testing.T) {
	key := generatedKey()

	tests := []struct {
		name       string
		ciphertext []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 255)},
		{"long", make([]byte, 257)},
		{"zeros", make([]byte, 256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := key.Decrypt(tt.ciphertext, backend.PKCS1OAEP)
			assert.ErrorIs(t, err, backend.ErrDecryption)
		})
	}
}

func TestDecryptWrongPaddingIsOpaque(t *testing.T) {
	key := generatedKey()
	pub, err := key.PublicKey()
	require.NoError(t, err)

	ct, err := pub.Encrypt([]byte("hello"), backend.InsecurePKCS1v15)
	require.NoError(t, err)

	_, err = key.Decrypt(ct, backend.PKCS1OAEP)
	require.Error(t, err)
	code, ok := backend.CryptoErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, backend.CodeDecryptionFailed, code)
}

func TestUnsupportedPadding(t *testing.T) {
	key := generatedKey()
	pub, err := key.PublicKey()
	require.NoError(t, err)

	_, err = pub.Encrypt([]byte("x"), backend.Padding{})
	assert.ErrorIs(t, err, backend.ErrUnsupportedPadding)
	_, err = key.Decrypt(make([]byte, 256), backend.Padding{})
	assert.ErrorIs(t, err, backend.ErrUnsupportedPadding)
}

func TestPrivateKeyFromPEMFormats(t *testing.T) {
	e := testEngine()

	pkcs1, err := e.PrivateKeyFromPEM(readTestdata(t, "rsa2048.pem"))
	require.NoError(t, err)
	defer pkcs1.Close()

	pkcs8, err := e.PrivateKeyFromPEM(readTestdata(t, "rsa2048_pkcs8.pem"))
	require.NoError(t, err)
	defer pkcs8.Close()

	a, err := pkcs1.DER()
	require.NoError(t, err)
	b, err := pkcs8.DER()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	pem, err := pkcs1.PEM()
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(readTestdata(t, "rsa2048.pem")), pem)
}

func TestPrivateKeyFromDERFormats(t *testing.T) {
	e := testEngine()

	for _, name := range []string{"rsa2048.der", "rsa2048_pkcs8.der"} {
		t.Run(name, func(t *testing.T) {
			key, err := e.PrivateKeyFromDER([]byte(readTestdata(t, name)))
			require.NoError(t, err)
			defer key.Close()
			assert.Equal(t, 2048, key.KeySizeInBits())
		})
	}
}

func TestPublicKeyFromPEMAndDER(t *testing.T) {
	e := testEngine()

	fromPEM, err := e.PublicKeyFromPEM(readTestdata(t, "rsa2048_pub.pem"))
	require.NoError(t, err)
	fromDER, err := e.PublicKeyFromDER([]byte(readTestdata(t, "rsa2048_pub.der")))
	require.NoError(t, err)

	a, err := fromPEM.DER()
	require.NoError(t, err)
	b, err := fromDER.DER()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, []byte(readTestdata(t, "rsa2048_pub.der")), a)
}

func TestImportRejectsGarbage(t *testing.T) {
	e := testEngine()

	_, err := e.PublicKeyFromDER([]byte{0x30, 0x00})
	assert.ErrorIs(t, err, backend.ErrInvalidKeyEncoding)

	_, err = e.PrivateKeyFromDER([]byte("not a key"))
	assert.ErrorIs(t, err, backend.ErrInvalidKeyEncoding)

	_, err = e.PublicKeyFromPEM("garbage")
	assert.ErrorIs(t, err, backend.ErrInvalidPEM)

	// A private key document is not accepted as a public key.
	_, err = e.PublicKeyFromPEM(readTestdata(t, "rsa2048.pem"))
	assert.ErrorIs(t, err, backend.ErrInvalidPEM)
}

func TestDerivedPublicKeyMatchesFile(t *testing.T) {
	e := testEngine()
	key, err := e.PrivateKeyFromPEM(readTestdata(t, "rsa2048.pem"))
	require.NoError(t, err)

	pub, err := key.PublicKey()
	require.NoError(t, err)
	der, err := pub.DER()
	require.NoError(t, err)
	assert.Equal(t, []byte(readTestdata(t, "rsa2048_pub.der")), der)

	// The derived key outlives its source.
	require.NoError(t, key.Close())
	_, err = pub.Encrypt([]byte("still usable"), backend.PKCS1OAEP)
	assert.NoError(t, err)
}

func TestDuplicateIsIndependent(t *testing.T) {
	e := testEngine()
	key, err := e.PrivateKeyFromPEM(readTestdata(t, "rsa2048.pem"))
	require.NoError(t, err)

	dup, err := key.Duplicate()
	require.NoError(t, err)
	require.NoError(t, key.Close())

	pub, err := dup.PublicKey()
	require.NoError(t, err)
	ct, err := pub.Encrypt([]byte("hi"), backend.PKCS1OAEP)
	require.NoError(t, err)
	pt, err := dup.Decrypt(ct, backend.PKCS1OAEP)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(pt))

	pubDup, err := pub.Duplicate()
	require.NoError(t, err)
	require.NoError(t, pub.Close())
	assert.Equal(t, 2048, pubDup.KeySizeInBits())
}

func TestClosedKey(t *testing.T) {
	e := testEngine()
	key, err := e.PrivateKeyFromPEM(readTestdata(t, "rsa2048.pem"))
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	require.NoError(t, key.Close())
	require.NoError(t, key.Close())
	require.NoError(t, pub.Close())

	assert.Equal(t, 0, key.KeySizeInBits())
	_, err = key.DER()
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	_, err = key.Decrypt(make([]byte, 256), backend.PKCS1OAEP)
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	_, err = key.Duplicate()
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	_, err = pub.Encrypt([]byte("x"), backend.PKCS1OAEP)
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
	_, err = pub.PEM()
	assert.ErrorIs(t, err, backend.ErrKeyClosed)
}

type closeCountingResolver struct {
	rand.Resolver
	closed int
}

func (r *closeCountingResolver) Close() error {
	r.closed++
	return nil
}

func TestEngineClose(t *testing.T) {
	software, err := rand.NewResolver(rand.ModeSoftware)
	require.NoError(t, err)
	random := &closeCountingResolver{Resolver: software}

	e, err := NewEngine(&Config{Random: random})
	require.NoError(t, err)
	key, err := e.PrivateKeyFromPEM(readTestdata(t, "rsa2048.pem"))
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, random.closed)

	_, err = e.GeneratePrivateKey(2048)
	assert.ErrorIs(t, err, backend.ErrEngineUnavailable)
	_, err = e.PublicKeyFromPEM(readTestdata(t, "rsa2048_pub.pem"))
	assert.ErrorIs(t, err, backend.ErrEngineUnavailable)

	// Existing keys keep working for decryption.
	_, err = key.Decrypt(make([]byte, 256), backend.PKCS1OAEP)
	assert.True(t, errors.Is(err, backend.ErrDecryption))
}

func TestKnownCiphertexts(t *testing.T) {
	key, err := testEngine().PrivateKeyFromPEM(readTestdata(t, "rsa2048.pem"))
	require.NoError(t, err)
	defer key.Close()

	msg, err := hex.DecodeString(strings.TrimSpace(readTestdata(t, "oaep_sha1_msg.hex")))
	require.NoError(t, err)

	tests := []struct {
		file    string
		padding backend.Padding
	}{
		{"oaep_sha1_ct.hex", backend.PKCS1OAEP},
		{"pkcs1v15_ct.hex", backend.InsecurePKCS1v15},
	}
	for _, tt := range tests {
		t.Run(tt.padding.String(), func(t *testing.T) {
			ct, err := hex.DecodeString(strings.TrimSpace(readTestdata(t, tt.file)))
			require.NoError(t, err)
			pt, err := key.Decrypt(ct, tt.padding)
			require.NoError(t, err)
			assert.Equal(t, msg, pt)
		})
	}
}
