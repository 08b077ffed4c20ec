// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mergebin merges the application, bootloader, partition table and
// OTA data images into a single flash image, either with esptool.py or
// in-process.
package mergebin

import (
	"path/filepath"
	"strings"

	"github.com/keycard-access/tools/katool/internal/buildenv"
)

const (
	TargetName  = "mergebin"
	OutputName  = "merged.bin"
	Description = "Generate a pre-bundled flash image"
	Title       = "Merging all bin files into one..."

	// The build system resolves these to the board flash mode and frequency.
	FlashModePlaceholder = "${__get_board_flash_mode(__env__)}"
	FlashFreqPlaceholder = "${__get_board_f_flash(__env__)}"
)

// Command describes an esptool.py merge_bin invocation.
type Command struct {
	Python    string
	Esptool   string // esptool.py path
	Chip      string
	Output    string
	FlashMode string
	FlashFreq string
	FlashSize string
	Images    []buildenv.Image // in the order passed to esptool.py
}

// NewCommand returns the merge_bin command for cfg. Empty flash mode and
// frequency are left to the build system.
func NewCommand(cfg *buildenv.Config, imgs []buildenv.Image) *Command {
	c := &Command{
		Python:    cfg.PythonExe,
		Esptool:   cfg.Esptool(),
		Chip:      cfg.Board.MCU,
		Output:    filepath.Join(cfg.BuildDir, OutputName),
		FlashMode: cfg.Board.FlashMode,
		FlashFreq: cfg.Board.FlashFreq,
		FlashSize: cfg.Board.FlashSize,
		Images:    imgs,
	}
	if c.FlashMode == "" {
		c.FlashMode = FlashModePlaceholder
	}
	if c.FlashFreq == "" {
		c.FlashFreq = FlashFreqPlaceholder
	}
	return c
}

// Args returns the arguments passed to the Python interpreter.
func (c *Command) Args() []string {
	args := []string{
		c.Esptool,
		"--chip", c.Chip,
		"merge_bin",
		"--output", c.Output,
		"--flash_mode", c.FlashMode,
		"--flash_freq", c.FlashFreq,
		"--flash_size", c.FlashSize,
	}
	for _, img := range c.Images {
		args = append(args, img.Offset, img.Path)
	}
	return args
}

func quote(s string) string {
	return `"` + s + `"`
}

// String returns the command line. The paths are quoted.
func (c *Command) String() string {
	cmd := []string{
		quote(c.Python), quote(c.Esptool),
		"--chip", c.Chip,
		"merge_bin",
		"--output", quote(c.Output),
		"--flash_mode", c.FlashMode,
		"--flash_freq", c.FlashFreq,
		"--flash_size", c.FlashSize,
	}
	for _, img := range c.Images {
		cmd = append(cmd, img.Offset, quote(img.Path))
	}
	return strings.Join(cmd, " ")
}

// Target returns the mergebin custom target running c. It depends on all the
// merged images.
func (c *Command) Target() buildenv.Target {
	deps := make([]string, len(c.Images))
	for i, img := range c.Images {
		deps[i] = img.Path
	}
	return buildenv.Target{
		Name:        TargetName,
		Description: Description,
		Deps:        deps,
		Output:      c.Output,
		Command:     c.String(),
		Title:       Title,
	}
}
