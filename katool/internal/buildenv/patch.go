// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buildenv describes the build environment: the configuration the
// commands read and the changes (patches) they ask the build system to make.
package buildenv

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/keycard-access/tools/katool/internal/partition"
)

// Build environment variables.
const (
	FlashExtraImages = "FLASH_EXTRA_IMAGES"
	AppOffset        = "ESP32_APP_OFFSET"
)

// Image is a binary flashed at Offset (0x prefixed hex string).
type Image struct {
	Offset string `json:"offset"`
	Path   string `json:"path"`
}

func (i Image) String() string {
	return i.Offset + ":" + i.Path
}

// ExtraImages returns the images that must be flashed together with the
// application: bootloader, partition table and, if present, the initial OTA
// data. The order is the one passed to the flashing tool.
func ExtraImages(l partition.Layout, buildDir string) []Image {
	imgs := []Image{
		{l.Bootloader.Hex(), filepath.Join(buildDir, "bootloader.bin")},
		{l.Table.Hex(), filepath.Join(buildDir, "partitions.bin")},
	}
	if l.OTAData != nil {
		imgs = append(imgs, Image{l.OTAData.Hex(), filepath.Join(buildDir, "ota_data_initial.bin")})
	}
	return imgs
}

// AllImages returns the application image followed by the ExtraImages.
func AllImages(l partition.Layout, buildDir, appImage string) []Image {
	app := Image{l.BootApp.Hex(), filepath.Join(buildDir, appImage)}
	return append([]Image{app}, ExtraImages(l, buildDir)...)
}

// Target is a custom build target the build system must register.
type Target struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Deps        []string `json:"deps"`
	Output      string   `json:"output"`
	Command     string   `json:"command"`
	Title       string   `json:"title,omitempty"` // printed when the action runs
}

// Patch is the set of changes to the build environment computed by a command.
// The caller applies it to its build system.
type Patch struct {
	Prepend map[string][]Image `json:"prepend,omitempty"`
	Replace map[string]string  `json:"replace,omitempty"`
	Targets []Target           `json:"targets,omitempty"`
}

// FlashPatch returns the patch that makes a build with skipped compilation
// flash the previously built images at the right offsets.
func FlashPatch(extra []Image, appOffset uint64) Patch {
	return Patch{
		Prepend: map[string][]Image{FlashExtraImages: slices.Clone(extra)},
		Replace: map[string]string{AppOffset: partition.Hex(appOffset)},
	}
}

func (p Patch) Empty() bool {
	return len(p.Prepend) == 0 && len(p.Replace) == 0 && len(p.Targets) == 0
}

// Env is an in-memory build environment.
type Env struct {
	Lists   map[string][]Image
	Vars    map[string]string
	Targets map[string]Target
}

func NewEnv() *Env {
	return &Env{
		Lists:   map[string][]Image{},
		Vars:    map[string]string{},
		Targets: map[string]Target{},
	}
}

// Apply applies p to e. Prepended images go before the existing ones, in the
// patch order. Registering a target again replaces it.
func (e *Env) Apply(p Patch) {
	for k, imgs := range p.Prepend {
		e.Lists[k] = append(slices.Clone(imgs), e.Lists[k]...)
	}
	for k, v := range p.Replace {
		e.Vars[k] = v
	}
	for _, t := range p.Targets {
		e.Targets[t.Name] = t
	}
}

// Encode writes p to w in the given format: json or yaml.
func (p Patch) Encode(w io.Writer, format string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", "json":
		data, err = json.MarshalIndent(p, "", "  ")
		data = append(data, '\n')
	case "yaml", "yml":
		data, err = yaml.Marshal(p)
	default:
		return fmt.Errorf("unknown patch format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodePatch parses a patch written by Encode in either format.
func DecodePatch(data []byte) (Patch, error) {
	var p Patch
	err := yaml.Unmarshal(data, &p)
	return p, err
}
