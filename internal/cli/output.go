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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/keystore"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates an --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// KeyInfo describes a key for display
type KeyInfo struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Type        string `json:"type" yaml:"type"`
	Format      string `json:"format,omitempty" yaml:"format,omitempty"`
	Bits        int    `json:"bits" yaml:"bits"`
	Engine      string `json:"engine" yaml:"engine"`
	Encrypted   bool   `json:"encrypted" yaml:"encrypted"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	MaxOAEP     int    `json:"max_oaep_plaintext" yaml:"max_oaep_plaintext"`
	MaxPKCS1v15 int    `json:"max_pkcs1v15_plaintext" yaml:"max_pkcs1v15_plaintext"`
}

// VersionInfo is printed by the version command
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Engine    string `json:"engine" yaml:"engine"`
	OS        string `json:"os" yaml:"os"`
	Arch      string `json:"arch" yaml:"arch"`
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer. Unknown formats print text.
func NewPrinter(format string, writer io.Writer) *Printer {
	f, err := ParseOutputFormat(format)
	if err != nil {
		f = OutputFormatText
	}
	return &Printer{
		format: f,
		writer: writer,
	}
}

// Structured reports whether the printer emits JSON or YAML.
func (p *Printer) Structured() bool {
	return p.format != OutputFormatText
}

// PrintKeyInfo prints detailed key information
func (p *Printer) PrintKeyInfo(info *KeyInfo) error {
	if p.Structured() {
		return p.printStructured(info)
	}
	fmt.Fprintln(p.writer, "Key Information:")
	if info.Name != "" {
		fmt.Fprintf(p.writer, "  Name:        %s\n", info.Name)
	}
	fmt.Fprintf(p.writer, "  Type:        %s\n", info.Type)
	if info.Format != "" {
		fmt.Fprintf(p.writer, "  Format:      %s\n", info.Format)
	}
	fmt.Fprintf(p.writer, "  Size:        %d bits\n", info.Bits)
	fmt.Fprintf(p.writer, "  Engine:      %s\n", info.Engine)
	fmt.Fprintf(p.writer, "  Encrypted:   %t\n", info.Encrypted)
	fmt.Fprintf(p.writer, "  Fingerprint: %s\n", info.Fingerprint)
	fmt.Fprintf(p.writer, "  Max OAEP:    %d bytes\n", info.MaxOAEP)
	fmt.Fprintf(p.writer, "  Max PKCS#1:  %d bytes\n", info.MaxPKCS1v15)
	return nil
}

// PrintKeyList prints a list of keys
func (p *Printer) PrintKeyList(entries []keystore.Entry) error {
	if p.Structured() {
		if entries == nil {
			entries = []keystore.Entry{}
		}
		return p.printStructured(map[string]any{"keys": entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(p.writer, "No keys found")
		return nil
	}
	fmt.Fprintf(p.writer, "%-40s %-8s %-9s\n", "NAME", "PRIVATE", "ENCRYPTED")
	fmt.Fprintln(p.writer, strings.Repeat("-", 59))
	for _, e := range entries {
		fmt.Fprintf(p.writer, "%-40s %-8t %-9t\n", e.Name, e.HasPrivate, e.Encrypted)
	}
	return nil
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	if p.Structured() {
		return p.printStructured(map[string]any{
			"status":  "success",
			"message": message,
		})
	}
	fmt.Fprintln(p.writer, message)
	return nil
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	if p.Structured() {
		data := map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
		if code, ok := backend.CryptoErrorCode(err); ok {
			data["code"] = code
			data["error_type"] = backend.CodeName(code)
		}
		return p.printStructured(data)
	}
	fmt.Fprintf(p.writer, "Error: %v\n", err)
	return nil
}

// PrintCiphertext prints ciphertext base64 encoded
func (p *Printer) PrintCiphertext(ciphertext []byte) error {
	encoded := base64.StdEncoding.EncodeToString(ciphertext)
	if p.Structured() {
		return p.printStructured(map[string]any{"ciphertext": encoded})
	}
	fmt.Fprintln(p.writer, encoded)
	return nil
}

// PrintPlaintext writes plaintext as-is in text mode and base64 encoded
// otherwise.
func (p *Printer) PrintPlaintext(plaintext []byte) error {
	if p.Structured() {
		return p.printStructured(map[string]any{
			"plaintext": base64.StdEncoding.EncodeToString(plaintext),
		})
	}
	_, err := p.writer.Write(plaintext)
	return err
}

// PrintVersion prints build information
func (p *Printer) PrintVersion(info VersionInfo) error {
	if p.Structured() {
		return p.printStructured(info)
	}
	fmt.Fprintf(p.writer, "rsacrypt version %s\n", info.Version)
	fmt.Fprintf(p.writer, "Git commit: %s\n", info.Commit)
	fmt.Fprintf(p.writer, "Build date: %s\n", info.BuildDate)
	fmt.Fprintf(p.writer, "Go version: %s\n", info.GoVersion)
	fmt.Fprintf(p.writer, "Engine:     %s\n", info.Engine)
	fmt.Fprintf(p.writer, "OS/Arch:    %s/%s\n", info.OS, info.Arch)
	return nil
}

func (p *Printer) printStructured(data any) error {
	if p.format == OutputFormatYAML {
		encoder := yaml.NewEncoder(p.writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	}
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
