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

// Package pkcs11 implements the crypto engine on a PKCS#11 token.
//
// Keys live on the token as session objects (CKA_TOKEN false), so they
// disappear when the engine closes its session. Private objects are created
// extractable and not sensitive, which lets DER export read them back.
//
// # Usage Example
//
//	engine, err := pkcs11.NewEngine(&pkcs11.Config{
//		Library:    "/usr/lib/softhsm/libsofthsm2.so",
//		TokenLabel: "rsacrypt",
//		PIN:        "user1234",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	key, err := engine.GeneratePrivateKey(2048)
//
// # Testing with SoftHSM
//
//	softhsm2-util --init-token --slot 0 --label "rsacrypt" \
//		--so-pin "admin1234" --pin "user1234"
//
//	RSACRYPT_PKCS11_LIBRARY=/usr/lib/softhsm/libsofthsm2.so \
//	RSACRYPT_PKCS11_TOKEN_LABEL=rsacrypt \
//	RSACRYPT_PKCS11_PIN=user1234 \
//	go test -tags pkcs11 ./pkg/backend/pkcs11/...
//
// # Padding Support
//
// SupportsPadding reflects the token's mechanism list: CKM_RSA_PKCS_OAEP
// for OAEP and CKM_RSA_PKCS for PKCS#1 v1.5. OAEP uses SHA-1 with MGF1-SHA1
// and an empty label.
//
// # Thread Safety
//
// A PKCS#11 session is not safe for concurrent use, so every call into the
// token holds the engine mutex.
package pkcs11
