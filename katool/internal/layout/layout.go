// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout computes the flash layout of the firmware from the SDK
// configuration, the board description and parttool.py.
package layout

import (
	"context"
	"errors"
	"fmt"

	"github.com/keycard-access/tools/katool/internal/partition"
	"github.com/keycard-access/tools/katool/internal/sdkconfig"
)

// ErrNoBootPartition means that the application offset is unknown so no
// image can be flashed or merged.
var ErrNoBootPartition = errors.New("parttool was unable to determine the boot partition")

// Querier resolves the partitions of a partition table.
type Querier interface {
	BootApp(ctx context.Context) (partition.Range, bool)
	OTAData(ctx context.Context) (*partition.Range, bool)
}

// Board is the part of the board description that affects the layout.
type Board struct {
	MCU              string
	BootloaderOffset *uint64 // overrides the MCU default if not nil
}

func (b Board) bootloaderOffset() uint64 {
	if b.BootloaderOffset != nil {
		return *b.BootloaderOffset
	}
	mcu := b.MCU
	if mcu == "" {
		mcu = partition.DefaultMCU
	}
	return partition.DefaultBootloaderOffset(mcu)
}

// Table returns the partition table region set in sdk.
func Table(sdk sdkconfig.Config) (partition.Range, error) {
	ofs, err := sdk.PartitionTableOffset()
	return partition.TableRange(ofs), err
}

// Compute returns the layout of the partition table at table. The querier is
// created by newQuerier for the table region. The missing boot partition is
// the only error: the OTA data region is optional.
func Compute(
	ctx context.Context,
	table partition.Range,
	board Board,
	newQuerier func(table partition.Range) Querier,
) (partition.Layout, error) {
	l := partition.Layout{
		Table:      table,
		Bootloader: partition.BootloaderRange(table, board.bootloaderOffset()),
	}
	q := newQuerier(table)
	app, ok := q.BootApp(ctx)
	if !ok {
		return l, ErrNoBootPartition
	}
	l.BootApp = app
	l.OTAData, _ = q.OTAData(ctx)
	return l, nil
}

// FromSDKConfig is Compute with the table region taken from sdk.
func FromSDKConfig(
	ctx context.Context,
	sdk sdkconfig.Config,
	board Board,
	newQuerier func(table partition.Range) Querier,
) (partition.Layout, error) {
	table, err := Table(sdk)
	if err != nil {
		return partition.Layout{}, fmt.Errorf("sdkconfig: %w", err)
	}
	return Compute(ctx, table, board, newQuerier)
}
