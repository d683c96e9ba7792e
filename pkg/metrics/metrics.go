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

// Package metrics provides Prometheus instrumentation for go-rsacrypt
// operations. Counters and histograms are labeled with the operation and
// the crypto engine that served it.
package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all rsacrypt metrics
	Namespace = "rsacrypt"

	// Label names
	LabelOperation = "operation"
	LabelEngine    = "engine"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelStore     = "store"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpGenerate = "generate"
	OpImport   = "import"
	OpExport   = "export"
	OpDerive   = "derive"
	OpClone    = "clone"
	OpEncrypt  = "encrypt"
	OpDecrypt  = "decrypt"
	OpStore    = "store"
	OpLoad     = "load"
	OpDelete   = "delete"
	OpList     = "list"
)

var (
	// OperationsTotal tracks the total number of operations by type, engine, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of rsacrypt operations by type, engine, and status",
		},
		[]string{LabelOperation, LabelEngine, LabelStatus},
	)

	// OperationDuration tracks the duration of operations in seconds.
	// Buckets cover everything from a public key operation to 4096-bit generation.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of rsacrypt operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelOperation, LabelEngine},
	)

	// ErrorsTotal tracks the total number of errors by operation, engine, and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, engine, and error type",
		},
		[]string{LabelOperation, LabelEngine, LabelErrorType},
	)

	// KeysTotal tracks the number of keys held by each key store.
	KeysTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keys_total",
			Help:      "Number of keys held by each key store",
		},
		[]string{LabelStore},
	)

	// OpenKeys tracks key handles that have been created and not yet closed.
	OpenKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "open_keys",
			Help:      "Number of engine key handles currently open",
		},
		[]string{LabelEngine},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	key, err := rsacrypt.GeneratePrivateKey(rsacrypt.KeySize2048)
//	status := StatusSuccess
//	if err != nil {
//	    status = StatusError
//	}
//	RecordOperation(OpGenerate, "software", status, time.Since(start).Seconds())
func RecordOperation(operation, engine, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, engine, status).Inc()
	OperationDuration.WithLabelValues(operation, engine).Observe(duration)
}

// RecordError records an error event. errorType should be a short stable
// identifier such as "message_too_long" or "incorrect_parameter_size".
func RecordError(operation, engine, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, engine, errorType).Inc()
}

// SetKeysTotal sets the number of keys in a store.
func SetKeysTotal(store string, count float64) {
	if !enabled.Load() {
		return
	}
	KeysTotal.WithLabelValues(store).Set(count)
}

// KeyOpened increments the open handle gauge for an engine.
func KeyOpened(engine string) {
	if !enabled.Load() {
		return
	}
	OpenKeys.WithLabelValues(engine).Inc()
}

// KeyClosed decrements the open handle gauge for an engine.
func KeyClosed(engine string) {
	if !enabled.Load() {
		return
	}
	OpenKeys.WithLabelValues(engine).Dec()
}

// WriteTextfile writes all registered metrics to path in the text
// exposition format, for collection by the node exporter textfile
// collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("metrics: failed to write textfile: %w", err)
	}
	return nil
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
