// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flashimg resolves the images that make up the firmware of a
// PlatformIO build and the changes the build environment needs to flash them
// when compilation is skipped.
package flashimg

import (
	"context"
	"errors"
	"fmt"

	"github.com/keycard-access/tools/katool/internal/buildenv"
	"github.com/keycard-access/tools/katool/internal/layout"
	"github.com/keycard-access/tools/katool/internal/mergebin"
	"github.com/keycard-access/tools/katool/internal/partition"
	"github.com/keycard-access/tools/katool/internal/parttool"
	"github.com/keycard-access/tools/katool/internal/proc"
	"github.com/keycard-access/tools/katool/internal/sdkconfig"
	"github.com/keycard-access/tools/katool/internal/util"
)

// ErrSkipped is returned by Resolve in lenient mode when the SDK
// configuration was not generated yet.
var ErrSkipped = errors.New("skipped")

// Options control Resolve.
type Options struct {
	// Strict makes a missing sdkconfig.json an error. Otherwise a warning is
	// printed and Resolve returns ErrSkipped.
	Strict bool
	Runner proc.Runner
	Log    *util.Log
}

// Firmware is the resolved set of images.
type Firmware struct {
	Layout partition.Layout
	CSV    string           // partition table file
	App    buildenv.Image   // application image
	Extra  []buildenv.Image // bootloader, partition table, OTA data
}

// All returns the application image followed by the extra images.
func (fw *Firmware) All() []buildenv.Image {
	return append([]buildenv.Image{fw.App}, fw.Extra...)
}

// Resolve computes the flash layout of the build described by cfg.
func Resolve(ctx context.Context, cfg *buildenv.Config, o Options) (*Firmware, error) {
	if cfg.BuildDir == "" {
		return nil, errors.New("build directory not set")
	}
	sdk, err := sdkconfig.Read(cfg.BuildDir)
	if err != nil {
		if errors.Is(err, sdkconfig.ErrNotFound) && !o.Strict {
			o.Log.Warn("%v", err)
			return nil, ErrSkipped
		}
		return nil, err
	}
	board, err := cfg.Board.Layout()
	if err != nil {
		return nil, err
	}
	fw := &Firmware{CSV: cfg.PartitionsCSV()}
	newQuerier := func(table partition.Range) layout.Querier {
		return &parttool.Tool{
			Runner:       o.Runner,
			Python:       cfg.PythonExe,
			FrameworkDir: cfg.FrameworkDir,
			Table:        table,
			CSV:          fw.CSV,
			Log:          o.Log,
		}
	}
	fw.Layout, err = layout.FromSDKConfig(ctx, sdk, board, newQuerier)
	if err != nil {
		if errors.Is(err, layout.ErrNoBootPartition) {
			return nil, fmt.Errorf("%w from %s", err, fw.CSV)
		}
		return nil, err
	}
	fw.Extra = buildenv.ExtraImages(fw.Layout, cfg.BuildDir)
	all := buildenv.AllImages(fw.Layout, cfg.BuildDir, cfg.AppImage())
	fw.App = all[0]
	return fw, nil
}

// Check prints a warning for every partition of the table that is not flashed
// when compilation is skipped.
func (fw *Firmware) Check(log *util.Log) error {
	ws, err := partition.CheckFile(fw.CSV)
	for _, w := range ws {
		log.Warn("%s", w)
	}
	return err
}

// Patch returns the changes to the build environment. The flash variables
// are patched only when compilation is skipped, the mergebin target is always
// registered if merge is set.
func (fw *Firmware) Patch(cfg *buildenv.Config, noBuild, merge bool) buildenv.Patch {
	var p buildenv.Patch
	if noBuild {
		p = buildenv.FlashPatch(fw.Extra, fw.Layout.BootApp.Offset)
	}
	if merge {
		p.Targets = append(p.Targets, mergebin.NewCommand(cfg, fw.All()).Target())
	}
	return p
}
