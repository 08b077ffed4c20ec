// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package partition describes the flash layout of an ESP32 firmware: the
// bootloader, the partition table, the boot application and the OTA data
// regions.
package partition

import (
	"fmt"
	"strconv"
)

const (
	// DefaultTableOffset is the partition table offset used when the SDK
	// configuration does not set CONFIG_PARTITION_TABLE_OFFSET.
	DefaultTableOffset = 0x8000

	// TableSize is the fixed size of the partition table region.
	TableSize = 0x1000

	// DefaultBootloaderAddr is the second stage bootloader offset of the
	// MCUs not listed in zeroBootloaderMCUs.
	DefaultBootloaderAddr = 0x1000

	DefaultMCU = "esp32"
)

// The bootloader of these MCUs is placed at the beginning of the flash.
var zeroBootloaderMCUs = []string{"esp32c3", "esp32s3"}

// Range is a region of flash memory.
type Range struct {
	Offset uint64
	Size   uint64
}

func (r Range) End() uint64 {
	return r.Offset + r.Size
}

// Hex returns the offset formatted the way the flashing tools expect it.
func (r Range) Hex() string {
	return Hex(r.Offset)
}

func (r Range) String() string {
	return fmt.Sprintf("(%#x, %#x)", r.Offset, r.Size)
}

// Hex formats a flash address as a 0x prefixed lower case hex number.
func Hex(addr uint64) string {
	return "0x" + strconv.FormatUint(addr, 16)
}

// TableRange returns the partition table region starting at offset.
func TableRange(offset uint64) Range {
	return Range{Offset: offset, Size: TableSize}
}

// DefaultBootloaderOffset returns the bootloader offset for mcu.
func DefaultBootloaderOffset(mcu string) uint64 {
	for _, m := range zeroBootloaderMCUs {
		if m == mcu {
			return 0
		}
	}
	return DefaultBootloaderAddr
}

// BootloaderRange returns the bootloader region. The bootloader must fit
// before the partition table so its size is the gap between the two, or zero
// if the bootloader starts after the table.
func BootloaderRange(table Range, offset uint64) Range {
	var size uint64
	if table.Offset > offset {
		size = table.Offset - offset
	}
	return Range{Offset: offset, Size: size}
}

// Layout is the set of regions that must be flashed together with the
// application image.
type Layout struct {
	Table      Range
	Bootloader Range
	BootApp    Range
	OTAData    *Range // nil for single app layouts
}
