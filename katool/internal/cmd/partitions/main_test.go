// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partitions

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLog(t *testing.T) {
	log := newLog("partitions", "patch.json")
	assert.Equal(t, os.Stdout, log.Out)
	assert.Equal(t, os.Stderr, log.Err)
	assert.Equal(t, "partitions", log.Prefix)

	log = newLog("partitions", "")
	assert.Equal(t, os.Stderr, log.Out)
	assert.Equal(t, os.Stderr, log.Err)
}
