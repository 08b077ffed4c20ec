// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Tracer returns the logger used to trace the work of a command at the given
// verbosity (0 disables tracing).
func Tracer(name string, verbosity int) logr.Logger {
	if verbosity <= 0 {
		return logr.Discard()
	}
	stdr.SetVerbosity(verbosity)
	return stdr.New(log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)).WithName(name)
}
