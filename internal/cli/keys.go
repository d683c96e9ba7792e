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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/keystore"
	"github.com/jeremyhahn/go-rsacrypt/pkg/pem"
	"github.com/jeremyhahn/go-rsacrypt/pkg/rsacrypt"
)

// Export formats
const (
	formatPEM   = "pem"
	formatDER   = "der"
	formatPKCS8 = "pkcs8"
)

var errPublicPKCS8 = errors.New("pkcs8 format applies to private keys only")

// parsedKey is a key read from a file. Exactly one of private and public
// is set.
type parsedKey struct {
	private   *rsacrypt.PrivateKey
	public    *rsacrypt.PublicKey
	format    string
	encrypted bool
}

func (k *parsedKey) Close() error {
	if k.private != nil {
		return k.private.Close()
	}
	return k.public.Close()
}

func (k *parsedKey) info(name string) (*KeyInfo, error) {
	var (
		info *KeyInfo
		err  error
	)
	if k.private != nil {
		info, err = privateKeyInfo(name, k.private, k.encrypted)
	} else {
		info, err = publicKeyInfo(name, k.public)
	}
	if err != nil {
		return nil, err
	}
	info.Format = k.format
	return info, nil
}

// parseKeyFile accepts every PEM and DER layout the library imports.
func parseKeyFile(data, password []byte) (*parsedKey, error) {
	text := string(data)
	doc, err := pem.Parse(text)
	if err != nil {
		priv, err := rsacrypt.NewPrivateKeyFromDER(data)
		if err == nil {
			return &parsedKey{private: priv, format: "DER private key"}, nil
		}
		if errors.Is(err, rsacrypt.ErrIncorrectParameterSize) {
			return nil, err
		}
		pub, err := rsacrypt.NewPublicKeyFromDER(data)
		if err != nil {
			return nil, fmt.Errorf("unrecognized key file: %w", err)
		}
		return &parsedKey{public: pub, format: "DER public key"}, nil
	}

	format := "PEM " + doc.Type
	switch doc.Type {
	case backend.LabelPublicKey:
		pub, err := rsacrypt.NewPublicKeyFromPEM(text)
		if err != nil {
			return nil, err
		}
		return &parsedKey{public: pub, format: format}, nil
	case backend.LabelEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, keystore.ErrPasswordRequired
		}
		priv, err := rsacrypt.NewPrivateKeyFromEncryptedPEM(text, password)
		if err != nil {
			return nil, err
		}
		return &parsedKey{private: priv, format: format, encrypted: true}, nil
	default:
		priv, err := rsacrypt.NewPrivateKeyFromPEM(text)
		if err != nil {
			return nil, err
		}
		return &parsedKey{private: priv, format: format}, nil
	}
}

func publicKeyInfo(name string, key *rsacrypt.PublicKey) (*KeyInfo, error) {
	der, err := key.DER()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(der)
	return &KeyInfo{
		Name:        name,
		Type:        "public",
		Bits:        key.KeySizeInBits(),
		Engine:      rsacrypt.EngineName(),
		Fingerprint: "SHA256:" + hex.EncodeToString(sum[:]),
		MaxOAEP:     key.MaximumEncryptSize(rsacrypt.PKCS1OAEP),
		MaxPKCS1v15: key.MaximumEncryptSize(rsacrypt.InsecurePKCS1v15),
	}, nil
}

func privateKeyInfo(name string, key *rsacrypt.PrivateKey, encrypted bool) (*KeyInfo, error) {
	pub, err := key.PublicKey()
	if err != nil {
		return nil, err
	}
	defer pub.Close()

	info, err := publicKeyInfo(name, pub)
	if err != nil {
		return nil, err
	}
	info.Type = "private"
	info.Encrypted = encrypted
	return info, nil
}

func (a *app) newGenerateCommand() *cobra.Command {
	var (
		bits      int
		password  string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "generate [name]",
		Short: "Generate a new RSA key pair",
		Long: `Generate a new RSA key pair with public exponent 65537 and save it in
the key store. A random name is chosen when none is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := keystore.NewName()
			if len(args) == 1 {
				name = args[0]
			}
			if err := keystore.ValidateName(name); err != nil {
				return err
			}
			if bits <= 0 || bits%8 != 0 {
				return fmt.Errorf("invalid key size %d: must be a positive multiple of 8", bits)
			}

			store, err := a.keystore()
			if err != nil {
				return err
			}

			a.printVerbose("Generating %d-bit key: %s", bits, name)
			key, err := rsacrypt.GeneratePrivateKey(rsacrypt.NewKeySize(bits))
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			defer key.Close()

			if err := store.Save(name, key, []byte(password), overwrite); err != nil {
				return err
			}
			info, err := privateKeyInfo(name, key, password != "")
			if err != nil {
				return err
			}
			return a.printer().PrintKeyInfo(info)
		},
	}
	cmd.Flags().IntVarP(&bits, "size", "s", rsacrypt.KeySize2048.BitCount(), "key size in bits")
	cmd.Flags().StringVar(&password, "password", "", "encrypt the stored private key with this password")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing key with the same name")
	return cmd
}

func (a *app) newImportCommand() *cobra.Command {
	var (
		in         string
		inPassword string
		password   string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:   "import <name>",
		Short: "Import a key file into the key store",
		Long: `Import a PEM or DER encoded RSA key. Accepted layouts are PKCS#1
("RSA PRIVATE KEY"), PKCS#8 ("PRIVATE KEY"), encrypted PKCS#8
("ENCRYPTED PRIVATE KEY") and SubjectPublicKeyInfo ("PUBLIC KEY").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := keystore.ValidateName(name); err != nil {
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
			key, err := parseKeyFile(data, []byte(inPassword))
			if err != nil {
				return fmt.Errorf("failed to import key: %w", err)
			}
			defer key.Close()

			a.printVerbose("Importing %s as %s", key.format, name)
			if key.private != nil {
				err = store.Save(name, key.private, []byte(password), overwrite)
			} else {
				err = store.SavePublic(name, key.public, overwrite)
			}
			if err != nil {
				return err
			}

			info, err := key.info(name)
			if err != nil {
				return err
			}
			info.Encrypted = key.private != nil && password != ""
			return a.printer().PrintKeyInfo(info)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "key file to import (- for stdin)")
	cmd.Flags().StringVar(&inPassword, "in-password", "", "password of an encrypted PKCS#8 input")
	cmd.Flags().StringVar(&password, "password", "", "encrypt the stored private key with this password")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing key with the same name")
	return cmd
}

func (a *app) newExportCommand() *cobra.Command {
	var (
		public         bool
		format         string
		out            string
		password       string
		exportPassword string
	)
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export a key from the key store",
		Long: `Export a key as PEM (PKCS#1 private or SubjectPublicKeyInfo public),
DER, or PKCS#8 PEM. --export-password encrypts PKCS#8 output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			store, err := a.keystore()
			if err != nil {
				return err
			}

			var (
				data []byte
				perm os.FileMode = 0600
			)
			if public {
				data, err = exportPublic(store, name, format)
				perm = 0644
			} else {
				data, err = exportPrivate(store, name, format, []byte(password), []byte(exportPassword))
			}
			if err != nil {
				return err
			}

			if err := a.writeOutput(out, data, perm); err != nil {
				return err
			}
			if toStdout(out) {
				return nil
			}
			return a.printer().PrintSuccess(fmt.Sprintf("Exported key %s to %s", name, out))
		},
	}
	cmd.Flags().BoolVar(&public, "public", false, "export the public key")
	cmd.Flags().StringVarP(&format, "format", "f", formatPEM, "output format (pem, der, pkcs8)")
	cmd.Flags().StringVar(&out, "out", "-", "output file (- for stdout)")
	cmd.Flags().StringVar(&password, "password", "", "password of an encrypted stored key")
	cmd.Flags().StringVar(&exportPassword, "export-password", "", "encrypt pkcs8 output with this password")
	return cmd
}

func exportPublic(store *keystore.Store, name, format string) ([]byte, error) {
	if format == formatPKCS8 {
		return nil, errPublicPKCS8
	}
	if err := checkExportFormat(format); err != nil {
		return nil, err
	}
	key, err := store.LoadPublic(name)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	if format == formatDER {
		return key.DER()
	}
	text, err := key.PEM()
	return []byte(text + "\n"), err
}

func exportPrivate(store *keystore.Store, name, format string, password, exportPassword []byte) ([]byte, error) {
	if err := checkExportFormat(format); err != nil {
		return nil, err
	}
	key, err := store.Load(name, password)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	var text string
	switch format {
	case formatDER:
		return key.DER()
	case formatPKCS8:
		if len(exportPassword) > 0 {
			text, err = key.EncryptedPKCS8PEM(exportPassword)
		} else {
			text, err = key.PKCS8PEM()
		}
	default:
		text, err = key.PEM()
	}
	if err != nil {
		return nil, err
	}
	return []byte(text + "\n"), nil
}

func checkExportFormat(format string) error {
	switch format {
	case formatPEM, formatDER, formatPKCS8:
		return nil
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}
}

func (a *app) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all keys",
		Long:  `List all keys in the key store`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.keystore()
			if err != nil {
				return err
			}
			a.printVerbose("Listing keys in %s", a.settings.Keystore.Dir)
			entries, err := store.List()
			if err != nil {
				return err
			}
			return a.printer().PrintKeyList(entries)
		},
	}
}

func (a *app) newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a key",
		Long:  `Delete the private and public parts of a key from the key store`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.keystore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			return a.printer().PrintSuccess(fmt.Sprintf("Deleted key %s", args[0]))
		},
	}
}

func (a *app) newInspectCommand() *cobra.Command {
	var (
		in       string
		password string
	)
	cmd := &cobra.Command{
		Use:   "inspect [name]",
		Short: "Show key details",
		Long: `Show the size, fingerprint and encryption limits of a key file given
with --in, or of the public part of a stored key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.inspectStored(args[0])
			}
			data, err := a.readInput(in)
			if err != nil {
				return err
			}
			key, err := parseKeyFile(data, []byte(password))
			if err != nil {
				return err
			}
			defer key.Close()

			info, err := key.info("")
			if err != nil {
				return err
			}
			return a.printer().PrintKeyInfo(info)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "key file to inspect (- for stdin)")
	cmd.Flags().StringVar(&password, "password", "", "password of an encrypted PKCS#8 file")
	return cmd
}

func (a *app) inspectStored(name string) error {
	store, err := a.keystore()
	if err != nil {
		return err
	}
	entries, err := store.List()
	if err != nil {
		return err
	}

	key, err := store.LoadPublic(name)
	if err != nil {
		return err
	}
	defer key.Close()

	info, err := publicKeyInfo(name, key)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == name && e.HasPrivate {
			info.Type = "private"
			info.Encrypted = e.Encrypted
		}
	}
	return a.printer().PrintKeyInfo(info)
}
