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

package cli

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/rsacrypt"
)

func (a *app) newEncryptCommand() *cobra.Command {
	var (
		in        string
		out       string
		padding   string
		useBase64 bool
	)
	cmd := &cobra.Command{
		Use:   "encrypt <name>",
		Short: "Encrypt data with a stored public key",
		Long: `Encrypt a single message with the public key stored under name. The
message must fit the key: at most k-42 bytes with OAEP and k-11 bytes with
pkcs1v15, where k is the key size in bytes. Without --out the ciphertext is
printed base64 encoded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := backend.ParsePadding(padding)
			if err != nil {
				return err
			}
			store, err := a.keystore()
			if err != nil {
				return err
			}
			key, err := store.LoadPublic(args[0])
			if err != nil {
				return err
			}
			defer key.Close()

			data, err := a.readInput(in)
			if err != nil {
				return err
			}
			if limit := key.MaximumEncryptSize(p); len(data) > limit {
				a.printVerbose("Message is %d bytes, key %s accepts at most %d", len(data), args[0], limit)
			}

			ciphertext, err := key.Encrypt(data, p)
			if err != nil {
				return fmt.Errorf("failed to encrypt: %w", err)
			}

			if toStdout(out) {
				return a.printer().PrintCiphertext(ciphertext)
			}
			output := []byte(ciphertext)
			if useBase64 {
				output = []byte(base64.StdEncoding.EncodeToString(ciphertext) + "\n")
			}
			return a.writeOutput(out, output, 0644)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "plaintext file (- for stdin)")
	cmd.Flags().StringVar(&out, "out", "-", "ciphertext file (- for base64 on stdout)")
	cmd.Flags().StringVar(&padding, "padding", rsacrypt.PKCS1OAEP.String(), "padding scheme (oaep, pkcs1v15)")
	cmd.Flags().BoolVar(&useBase64, "base64", false, "base64 encode the ciphertext file")
	return cmd
}

func (a *app) newDecryptCommand() *cobra.Command {
	var (
		in        string
		out       string
		padding   string
		password  string
		useBase64 bool
	)
	cmd := &cobra.Command{
		Use:   "decrypt <name>",
		Short: "Decrypt data with a stored private key",
		Long: `Decrypt a ciphertext with the private key stored under name. Use
--base64 for ciphertext printed by the encrypt command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := backend.ParsePadding(padding)
			if err != nil {
				return err
			}
			store, err := a.keystore()
			if err != nil {
				return err
			}

			data, err := a.readInput(in)
			if err != nil {
				return err
			}
			if useBase64 {
				data, err = base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
				if err != nil {
					return fmt.Errorf("invalid base64 input: %w", err)
				}
			}

			key, err := store.Load(args[0], []byte(password))
			if err != nil {
				return err
			}
			defer key.Close()

			plaintext, err := key.Decrypt(data, p)
			if err != nil {
				return fmt.Errorf("failed to decrypt: %w", err)
			}

			if toStdout(out) {
				return a.printer().PrintPlaintext(plaintext)
			}
			return a.writeOutput(out, plaintext, 0600)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "ciphertext file (- for stdin)")
	cmd.Flags().StringVar(&out, "out", "-", "plaintext file (- for stdout)")
	cmd.Flags().StringVar(&padding, "padding", rsacrypt.PKCS1OAEP.String(), "padding scheme (oaep, pkcs1v15)")
	cmd.Flags().StringVar(&password, "password", "", "password of an encrypted stored key")
	cmd.Flags().BoolVar(&useBase64, "base64", false, "ciphertext input is base64 encoded")
	return cmd
}
