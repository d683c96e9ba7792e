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

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordOperation(t *testing.T) {
	Enable()

	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpGenerate, "software", StatusSuccess, 0.5)

	count := testutil.CollectAndCount(OperationsTotal)
	if count != 1 {
		t.Errorf("Expected 1 operation recorded, got %d", count)
	}

	histCount := testutil.CollectAndCount(OperationDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", histCount)
	}

	RecordOperation(OpDecrypt, "pkcs11", StatusError, 0.1)

	count = testutil.CollectAndCount(OperationsTotal)
	if count != 2 {
		t.Errorf("Expected 2 operations recorded, got %d", count)
	}

	got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpGenerate, "software", StatusSuccess))
	if got != 1 {
		t.Errorf("Expected generate counter of 1, got %v", got)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()

	RecordOperation(OpGenerate, "software", StatusSuccess, 0.5)

	count := testutil.CollectAndCount(OperationsTotal)
	if count != 0 {
		t.Errorf("Expected 0 operations when disabled, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	Enable()

	ErrorsTotal.Reset()

	RecordError(OpEncrypt, "software", "message_too_long")
	RecordError(OpEncrypt, "software", "message_too_long")
	RecordError(OpImport, "software", "invalid_pem_document")

	count := testutil.CollectAndCount(ErrorsTotal)
	if count != 2 {
		t.Errorf("Expected 2 error series, got %d", count)
	}

	got := testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpEncrypt, "software", "message_too_long"))
	if got != 2 {
		t.Errorf("Expected message_too_long counter of 2, got %v", got)
	}
}

func TestRecordErrorWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	ErrorsTotal.Reset()

	RecordError(OpLoad, "file", "key_not_found")

	count := testutil.CollectAndCount(ErrorsTotal)
	if count != 0 {
		t.Errorf("Expected 0 errors when disabled, got %d", count)
	}
}

func TestOpenKeys(t *testing.T) {
	Enable()
	OpenKeys.Reset()

	KeyOpened("software")
	KeyOpened("software")
	KeyClosed("software")

	got := testutil.ToFloat64(OpenKeys.WithLabelValues("software"))
	if got != 1 {
		t.Errorf("Expected 1 open key, got %v", got)
	}
}

func TestSetKeysTotal(t *testing.T) {
	Enable()
	KeysTotal.Reset()

	SetKeysTotal("file", 3)

	got := testutil.ToFloat64(KeysTotal.WithLabelValues("file"))
	if got != 3 {
		t.Errorf("Expected 3 keys, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	RecordOperation(OpEncrypt, "software", StatusSuccess, 0.01)

	path := filepath.Join(t.TempDir(), "rsacrypt.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "rsacrypt_operations_total") {
		t.Errorf("Expected textfile to contain rsacrypt_operations_total")
	}
}

func TestWriteTextfileBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "rsacrypt.prom")
	if err := WriteTextfile(path); err == nil {
		t.Error("Expected error for missing directory")
	}
}
