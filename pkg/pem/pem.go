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

// Package pem implements the strict PEM envelope used for RSA key material.
//
// Unlike encoding/pem, the parser accepts exactly one block per input with
// no headers and requires the body to be wrapped at 64 columns. The
// formatter produces the same layout with lines joined by "\n" and no
// trailing newline, so Parse(doc.String()) returns doc for any non-empty body.
package pem

import (
	"encoding/base64"
	"errors"
	"strings"
)

const (
	// LineLength is the number of base64 characters per body line.
	LineLength = 64

	beginPrefix = "-----BEGIN "
	endPrefix   = "-----END "
	boundary    = "-----"
)

// ErrInvalidPEMDocument is returned when the input is not a well-formed
// PEM document.
var ErrInvalidPEMDocument = errors.New("pem: invalid PEM document")

// Document is a labeled binary blob.
type Document struct {
	Type  string
	Bytes []byte
}

// New returns a document holding a copy of der under the given label.
func New(label string, der []byte) *Document {
	return &Document{
		Type:  label,
		Bytes: append([]byte(nil), der...),
	}
}

// Parse decodes a single PEM document. Carriage returns and blank lines
// are ignored.
func Parse(text string) (*Document, error) {
	lines := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	if len(lines) < 3 {
		return nil, ErrInvalidPEMDocument
	}

	label, ok := parseBoundary(lines[0], beginPrefix)
	if !ok {
		return nil, ErrInvalidPEMDocument
	}
	endLabel, ok := parseBoundary(lines[len(lines)-1], endPrefix)
	if !ok || endLabel != label {
		return nil, ErrInvalidPEMDocument
	}

	body := lines[1 : len(lines)-1]
	for i, line := range body {
		if len(line) > LineLength {
			return nil, ErrInvalidPEMDocument
		}
		if i < len(body)-1 && len(line) != LineLength {
			return nil, ErrInvalidPEMDocument
		}
	}

	der, err := base64.StdEncoding.DecodeString(strings.Join(body, ""))
	if err != nil {
		return nil, ErrInvalidPEMDocument
	}

	return &Document{Type: label, Bytes: der}, nil
}

// parseBoundary extracts the label from a BEGIN or END line.
func parseBoundary(line, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}
	return strings.CutSuffix(rest, boundary)
}

// String formats the document as PEM text.
func (d *Document) String() string {
	encoded := base64.StdEncoding.EncodeToString(d.Bytes)

	lines := make([]string, 0, len(encoded)/LineLength+3)
	lines = append(lines, beginPrefix+d.Type+boundary)
	for len(encoded) > LineLength {
		lines = append(lines, encoded[:LineLength])
		encoded = encoded[LineLength:]
	}
	if encoded != "" {
		lines = append(lines, encoded)
	}
	lines = append(lines, endPrefix+d.Type+boundary)

	return strings.Join(lines, "\n")
}

// Format is shorthand for New(label, der).String().
func Format(label string, der []byte) string {
	return (&Document{Type: label, Bytes: der}).String()
}
