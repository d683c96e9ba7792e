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
	"errors"
	"time"

	"github.com/jeremyhahn/go-rsacrypt/pkg/backend"
	"github.com/jeremyhahn/go-rsacrypt/pkg/metrics"
)

// observe starts timing op and returns a func that records the outcome
// held in *errp.
//
//	defer observe(metrics.OpEncrypt, k.engine)(&err)
func observe(op, engine string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		status := metrics.StatusSuccess
		if *errp != nil {
			status = metrics.StatusError
			metrics.RecordError(op, engine, errorType(*errp))
		}
		metrics.RecordOperation(op, engine, status, time.Since(start).Seconds())
	}
}

func errorType(err error) string {
	if errors.Is(err, ErrIncorrectParameterSize) {
		return "incorrect_parameter_size"
	}
	if code, ok := backend.CryptoErrorCode(err); ok {
		return backend.CodeName(code)
	}
	return "unknown"
}
