// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build hil

package dut

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGcov runs against a flashed board: it passes when the firmware returns
// from app_main, which is when the coverage data has been dumped.
//
//	KATOOL_DUT_PORT=/dev/ttyUSB0 go test -tags hil ./katool/internal/dut
func TestGcov(t *testing.T) {
	name := os.Getenv(PortEnv)
	if name == "" {
		t.Skip(PortEnv + " not set")
	}
	baud := 115200
	if s := os.Getenv(BaudEnv); s != "" {
		var err error
		baud, err = strconv.Atoi(s)
		require.NoError(t, err)
	}
	p, err := Open(name, baud)
	require.NoError(t, err)
	defer p.Close()

	line, err := WaitFor(p, []byte(BootMarker), DefaultTimeout, true)
	require.NoError(t, err)
	t.Log(string(line))
}
