// Copyright 2025 The Keycard Access Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buildenv

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keycard-access/tools/katool/internal/partition"
)

func testLayout(ota bool) partition.Layout {
	l := partition.Layout{
		Table:      partition.TableRange(0x8000),
		Bootloader: partition.Range{Offset: 0x1000, Size: 0x7000},
		BootApp:    partition.Range{Offset: 0x10000, Size: 0x100000},
	}
	if ota {
		l.OTAData = &partition.Range{Offset: 0xd000, Size: 0x2000}
	}
	return l
}

func TestAllImages(t *testing.T) {
	got := AllImages(testLayout(false), "/b", "firmware.bin")
	want := []Image{
		{"0x10000", "/b/firmware.bin"},
		{"0x1000", "/b/bootloader.bin"},
		{"0x8000", "/b/partitions.bin"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AllImages mismatch (-want +got):\n%s", diff)
	}

	got = ExtraImages(testLayout(true), "/b")
	require.Len(t, got, 3)
	assert.Equal(t, Image{"0xd000", "/b/ota_data_initial.bin"}, got[2])
	assert.Equal(t, "0xd000:/b/ota_data_initial.bin", got[2].String())
}

func TestEnvApply(t *testing.T) {
	e := NewEnv()
	e.Lists[FlashExtraImages] = []Image{{"0x300000", "fs.bin"}}
	e.Vars[AppOffset] = "0x10000"

	p := FlashPatch(ExtraImages(testLayout(false), "/b"), 0x20000)
	p.Targets = []Target{{Name: "mergebin", Command: "a"}}
	e.Apply(p)
	e.Apply(Patch{Targets: []Target{{Name: "mergebin", Command: "b"}}})

	want := []Image{
		{"0x1000", "/b/bootloader.bin"},
		{"0x8000", "/b/partitions.bin"},
		{"0x300000", "fs.bin"},
	}
	if diff := cmp.Diff(want, e.Lists[FlashExtraImages]); diff != "" {
		t.Errorf("FLASH_EXTRA_IMAGES mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "0x20000", e.Vars[AppOffset])
	assert.Equal(t, "b", e.Targets["mergebin"].Command)
}

func TestPatchEncode(t *testing.T) {
	p := FlashPatch([]Image{{"0x1000", "bootloader.bin"}}, 0x10000)
	assert.False(t, p.Empty())
	assert.True(t, Patch{}.Empty())

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, p.Encode(&buf, format))
			assert.Contains(t, buf.String(), "ESP32_APP_OFFSET")
			got, err := DecodePatch(buf.Bytes())
			require.NoError(t, err)
			if diff := cmp.Diff(p, got); diff != "" {
				t.Errorf("decoded patch mismatch (-want +got):\n%s", diff)
			}
		})
	}
	assert.Error(t, p.Encode(&bytes.Buffer{}, "toml"))
}

func TestConfigHelpers(t *testing.T) {
	c := &Config{ProgName: "program"}
	assert.Equal(t, "firmware.bin", c.AppImage())
	c.ProgName = ""
	assert.Equal(t, "firmware.bin", c.AppImage())
	c.ProgName = "gate"
	assert.Equal(t, "gate.bin", c.AppImage())

	assert.False(t, c.NoBuild())
	c.Targets = []string{"upload", "nobuild"}
	assert.True(t, c.NoBuild())

	fw := t.TempDir()
	ptDir := filepath.Join(fw, "components", "partition_table")
	require.NoError(t, os.MkdirAll(ptDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ptDir, "partitions_two_ota.csv"), nil, 0o644))
	c = &Config{FrameworkDir: fw, ProjectDir: "/proj"}
	c.Board.Partitions = "partitions_two_ota.csv"
	assert.Equal(t, filepath.Join(ptDir, "partitions_two_ota.csv"), c.PartitionsCSV())
	c.Board.Partitions = "custom.csv"
	assert.Equal(t, "/proj/custom.csv", c.PartitionsCSV())
	c.Board.Partitions = "/abs/custom.csv"
	assert.Equal(t, "/abs/custom.csv", c.PartitionsCSV())
}

func TestBoardLayout(t *testing.T) {
	lb, err := Board{MCU: "esp32s3"}.Layout()
	require.NoError(t, err)
	assert.Nil(t, lb.BootloaderOffset)

	lb, err = Board{MCU: "esp32s3", BootloaderOffset: "0x2000"}.Layout()
	require.NoError(t, err)
	require.NotNil(t, lb.BootloaderOffset)
	assert.Equal(t, uint64(0x2000), *lb.BootloaderOffset)

	_, err = Board{BootloaderOffset: "x"}.Layout()
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "katool.yaml"), []byte(`
build_dir: /build/from/file
pio_env: esp32dev
targets: [nobuild]
board:
  mcu: esp32s3
  flash_size: 8MB
  bootloader_offset: "0x0"
`), 0o644))
	t.Setenv("KATOOL_PROG_NAME", "gate")
	t.Setenv("KATOOL_BOARD_FLASH_SIZE", "16MB")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"-project-dir", dir, "-build-dir", "/build/from/flag"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectDir)
	assert.Equal(t, "/build/from/flag", cfg.BuildDir)
	assert.Equal(t, "gate", cfg.ProgName)
	assert.Equal(t, "python3", cfg.PythonExe)
	assert.Equal(t, "esp32s3", cfg.Board.MCU)
	assert.Equal(t, "16MB", cfg.Board.FlashSize)
	assert.Equal(t, "0x0", cfg.Board.BootloaderOffset)
	assert.Equal(t, DefaultPartitions, cfg.Board.Partitions)
	assert.True(t, cfg.NoBuild())
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"-project-dir", dir}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "esp32", cfg.Board.MCU)
	assert.Equal(t, DefaultFlashSize, cfg.Board.FlashSize)
	assert.Equal(t, DefaultProgName, cfg.ProgName)
	assert.Empty(t, cfg.BuildDir)
	assert.False(t, cfg.NoBuild())
}

func TestLoadMissingConfigFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"-config", filepath.Join(t.TempDir(), "none.yaml")}))
	_, err := Load(fs)
	assert.Error(t, err)
}
