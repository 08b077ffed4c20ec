// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sdkconfig reads the JSON rendition of the ESP-IDF SDK
// configuration generated by a full build.
package sdkconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"

	"github.com/keycard-access/tools/katool/internal/partition"
)

// ErrNotFound is returned by Read if the build directory does not contain the
// generated configuration, usually because no full build was run yet.
var ErrNotFound = errors.New(`could not find "sdkconfig.json" file, you need to run a full build first`)

// Config maps the configuration names (without the CONFIG_ prefix) to their
// values.
type Config map[string]any

// Path returns the location of sdkconfig.json in the build directory.
func Path(buildDir string) string {
	return filepath.Join(buildDir, "config", "sdkconfig.json")
}

// Read reads the SDK configuration generated in buildDir.
func Read(buildDir string) (Config, error) {
	name := Path(buildDir)
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// Parse decodes the content of sdkconfig.json.
func Parse(data []byte) (Config, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var cfg Config
	if err := d.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Config{}
	}
	return cfg, nil
}

// Uint returns the named configuration as an unsigned integer. The boolean
// result is false if the name is not set.
func (c Config) Uint(name string) (uint64, bool, error) {
	v, ok := c[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	var (
		u   uint64
		err error
	)
	switch v := v.(type) {
	case json.Number:
		var i int64
		if i, err = v.Int64(); err == nil {
			u, err = safecast.ToUint64(i)
		}
	case string:
		u, err = strconv.ParseUint(strings.TrimSpace(v), 0, 64)
	case float64:
		u, err = safecast.ToUint64(v)
	case int:
		u, err = safecast.ToUint64(v)
	default:
		err = fmt.Errorf("unexpected type %T", v)
	}
	if err != nil {
		return 0, true, fmt.Errorf("bad %s value %v: %w", name, v, err)
	}
	return u, true, nil
}

// PartitionTableOffset returns CONFIG_PARTITION_TABLE_OFFSET or its default.
func (c Config) PartitionTableOffset() (uint64, error) {
	ofs, ok, err := c.Uint("PARTITION_TABLE_OFFSET")
	if err != nil || !ok {
		return partition.DefaultTableOffset, err
	}
	return ofs, nil
}
