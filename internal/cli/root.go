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

// Package cli implements the rsacrypt command line tool.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-rsacrypt/pkg/config"
	"github.com/jeremyhahn/go-rsacrypt/pkg/keystore"
	"github.com/jeremyhahn/go-rsacrypt/pkg/logging"
	"github.com/jeremyhahn/go-rsacrypt/pkg/metrics"
	"github.com/jeremyhahn/go-rsacrypt/pkg/rsacrypt"
	"github.com/jeremyhahn/go-rsacrypt/pkg/storage/file"
)

// app carries the state of one CLI invocation
type app struct {
	cfg      *Config
	settings *config.Config
	logger   *logging.Logger
	store    *keystore.Store

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rsacrypt",
		Short: "rsacrypt - RSA key management and encryption tool",
		Long: `rsacrypt generates, imports and exports RSA keys and encrypts and
decrypts data with RSA-OAEP (SHA-1) or PKCS#1 v1.5 padding.

Keys are kept in a directory key store. Settings are read from an optional
YAML file and RSACRYPT_* environment variables; flags take precedence.

The crypto engine is chosen at build time: the default build uses Go's
crypto/rsa, the pkcs11 build tag uses a PKCS#11 token.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	// Persistent flags (available to all commands)
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfg.ConfigFile, "config", "",
		"config file (YAML)")
	flags.StringVar(&a.cfg.KeyDir, "key-dir", "",
		"key store directory (default $HOME/.rsacrypt/keys)")
	flags.StringVarP(&a.cfg.OutputFormat, "output", "o", string(OutputFormatText),
		"output format (text, json, yaml)")
	flags.BoolVarP(&a.cfg.Verbose, "verbose", "v", false,
		"verbose output")
	flags.StringVar(&a.cfg.MetricsTextfile, "metrics-textfile", "",
		"write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		a.newVersionCommand(),
		a.newGenerateCommand(),
		a.newImportCommand(),
		a.newExportCommand(),
		a.newListCommand(),
		a.newDeleteCommand(),
		a.newInspectCommand(),
		a.newEncryptCommand(),
		a.newDecryptCommand(),
	)

	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)
	return cmd
}

// Execute runs the CLI with the process arguments and standard streams.
func Execute() error {
	return Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Run executes one CLI invocation. Errors are printed to errOut in the
// selected output format and returned.
func Run(args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{cfg: NewConfig(), in: in, out: out, errOut: errOut}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if ferr := a.finish(); err == nil {
		err = ferr
	}
	if err != nil {
		_ = NewPrinter(a.cfg.OutputFormat, errOut).PrintError(err)
	}
	return err
}

// setup resolves configuration, logging and the engine before any
// subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	settings, err := a.cfg.Resolve(config.New())
	if err != nil {
		return err
	}
	a.settings = settings

	opts := settings.LoggerOptions()
	opts.Output = a.errOut
	logger, err := logging.New(opts)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	a.logger = logger
	a.logger.Debugf("cli: %s", a.cfg)

	if err := rsacrypt.Configure(settings); err != nil {
		if !errors.Is(err, rsacrypt.ErrAlreadyConfigured) {
			return err
		}
		a.logger.Debugf("cli: engine already initialized, keeping its configuration")
	}
	return nil
}

// finish writes the metrics textfile and releases the engine. It runs
// after every invocation, including failed ones.
func (a *app) finish() error {
	var errs []error
	if a.settings != nil && a.settings.Metrics.Textfile != "" {
		errs = append(errs, metrics.WriteTextfile(a.settings.Metrics.Textfile))
	}
	errs = append(errs, rsacrypt.Shutdown())
	return errors.Join(errs...)
}

// keystore opens the directory key store on first use.
func (a *app) keystore() (*keystore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	fs, err := file.New(a.settings.Keystore.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}
	store, err := keystore.New(&keystore.Config{
		Backend: fs,
		Name:    "file",
		Logger:  a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) printer() *Printer {
	return NewPrinter(a.cfg.OutputFormat, a.out)
}

// printVerbose prints a message if verbose mode is enabled
func (a *app) printVerbose(format string, args ...any) {
	if a.cfg.Verbose {
		fmt.Fprintf(a.errOut, "[VERBOSE] "+format+"\n", args...)
	}
}

// readInput reads path, or standard input when path is empty or "-".
func (a *app) readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(a.in)
	}
	return os.ReadFile(path)
}

// writeOutput writes data to path, or standard output when path is empty
// or "-".
func (a *app) writeOutput(path string, data []byte, perm os.FileMode) error {
	if path == "" || path == "-" {
		_, err := a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func toStdout(path string) bool {
	return path == "" || path == "-"
}
