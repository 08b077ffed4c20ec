// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package parttool queries ESP-IDF's parttool.py for the offset and size of
// the partitions described by a partition table CSV file.
package parttool

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/keycard-access/tools/katool/internal/partition"
	"github.com/keycard-access/tools/katool/internal/proc"
	"github.com/keycard-access/tools/katool/internal/util"
)

// Script returns the location of parttool.py in an ESP-IDF installation.
func Script(frameworkDir string) string {
	return filepath.Join(frameworkDir, "components", "partition_table", "parttool.py")
}

// Selector selects a partition by type and subtype.
type Selector struct {
	Type    string
	Subtype string
}

// OTAData selects the OTA data partition.
var OTAData = &Selector{Type: "data", Subtype: "ota"}

// Tool describes how to run parttool.py.
type Tool struct {
	Runner       proc.Runner
	Python       string
	FrameworkDir string
	Table        partition.Range // partition table region
	CSV          string          // partition table file
	Log          *util.Log
}

// Args returns the command line arguments (after the interpreter) that query
// the partition selected by sel, or the default boot partition if sel is nil.
func (t *Tool) Args(sel *Selector) []string {
	args := []string{
		Script(t.FrameworkDir),
		"-q",
		"--partition-table-offset", t.Table.Hex(),
		"--partition-table-file", t.CSV,
		"get_partition_info",
		"--info", "offset", "size",
	}
	if sel == nil {
		return append(args, "--partition-boot-default")
	}
	return append(args, "--partition-type", sel.Type, "--partition-subtype", sel.Subtype)
}

// Query returns the region of the partition selected by sel (the default boot
// partition if sel is nil). The boolean result is false if parttool.py cannot
// be run, fails or the partition does not exist. A failed invocation dumps the
// captured tool output to the diagnostic stream.
func (t *Tool) Query(ctx context.Context, sel *Selector) (partition.Range, bool) {
	r, err := t.Runner.Run(ctx, t.Python, t.Args(sel)...)
	if err != nil || !r.Success() {
		t.Log.Error("unable to call ESP-IDF's parttool.py")
		if err != nil {
			t.Log.Dump(err.Error())
		}
		t.Log.Dump(r.Stdout)
		t.Log.Dump(r.Stderr)
		return partition.Range{}, false
	}
	pr, ok, err := ParseInfo(r.Stdout)
	if err != nil {
		t.Log.Warn("unexpected parttool.py output: %v", err)
	}
	return pr, ok
}

// BootApp returns the region of the partition that the bootloader runs by
// default.
func (t *Tool) BootApp(ctx context.Context) (partition.Range, bool) {
	return t.Query(ctx, nil)
}

// OTAData returns the OTA data region. Single app layouts have none.
func (t *Tool) OTAData(ctx context.Context) (*partition.Range, bool) {
	r, ok := t.Query(ctx, OTAData)
	if !ok {
		return nil, false
	}
	return &r, true
}

// ParseInfo parses the "offset size" line printed by get_partition_info.
// Both numbers are hexadecimal, the 0x prefix is optional. The boolean result
// is false if out does not contain two numbers, which is how parttool.py
// reports a partition that does not exist.
func ParseInfo(out string) (partition.Range, bool, error) {
	f := strings.Fields(out)
	if len(f) < 2 {
		return partition.Range{}, false, nil
	}
	ofs, err := parseHex(f[0])
	if err != nil {
		return partition.Range{}, false, err
	}
	size, err := parseHex(f[1])
	if err != nil {
		return partition.Range{}, false, err
	}
	return partition.Range{Offset: ofs, Size: size}, true, nil
}

func parseHex(s string) (uint64, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	u, err := strconv.ParseUint(h, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("bad hex number %q", s)
	}
	return u, nil
}
